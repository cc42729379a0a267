package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/yukikurage/taskboard/internal/services"
)

type createTaskArgs struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       string   `json:"priority"`
	Deadline       string   `json:"deadline"`
	EstimatedHours *float64 `json:"estimated_hours"`
	RequiredSkills []string `json:"required_skills"`
	Format         string   `json:"format"`
}

type assignTaskArgs struct {
	TaskID   string `json:"task_id"`
	WorkerID string `json:"worker_id"`
	Format   string `json:"format"`
}

type updateTaskArgs struct {
	TaskID         string    `json:"task_id"`
	Title          *string   `json:"title"`
	Description    *string   `json:"description"`
	Priority       *string   `json:"priority"`
	Deadline       *string   `json:"deadline"`
	ClearDeadline  bool      `json:"clear_deadline"`
	EstimatedHours *float64  `json:"estimated_hours"`
	RequiredSkills *[]string `json:"required_skills"`
	Progress       *int      `json:"progress"`
	Note           string    `json:"note"`
	HoursLogged    *float64  `json:"hours_logged"`
	Reject         bool      `json:"reject"`
	Reason         string    `json:"reason"`
	Format         string    `json:"format"`
}

func (a updateTaskArgs) hasEdits() bool {
	return a.Title != nil || a.Description != nil || a.Priority != nil || a.Deadline != nil ||
		a.ClearDeadline || a.EstimatedHours != nil || a.RequiredSkills != nil
}

type deleteTaskArgs struct {
	TaskID  string `json:"task_id"`
	Confirm bool   `json:"confirm"`
	Format  string `json:"format"`
}

type listTasksArgs struct {
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	AssignedTo string `json:"assigned_to"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Format     string `json:"format"`
}

type taskRefArgs struct {
	TaskID string `json:"task_id"`
	Limit  int    `json:"limit"`
	Format string `json:"format"`
}

// decodeArgs strictly decodes tool arguments. Unknown fields are rejected so
// a misspelled optional field does not silently do nothing.
func decodeArgs(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid arguments: %v", services.ErrValidation, err)
	}
	return nil
}

func requireString(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", services.ErrValidation, field)
	}
	return nil
}

func requireUUID(field, value string) error {
	if err := requireString(field, value); err != nil {
		return err
	}
	return optionalUUID(field, value)
}

func optionalUUID(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%w: %s must be a UUID", services.ErrValidation, field)
	}
	return nil
}

func checkEnum(field, value string, allowed []string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %s", services.ErrValidation, field, strings.Join(allowed, ", "))
}

func checkFormat(value string) (string, error) {
	if err := checkEnum("format", value, formatEnum); err != nil {
		return "", err
	}
	if value == "" {
		return FormatStructured, nil
	}
	return value, nil
}
