package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/taskboard/internal/logging"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/services"
)

// ErrUnknownTool is returned for a tool name the dispatcher does not serve.
var ErrUnknownTool = errors.New("unknown tool")

// Result is the outcome of one tool call. Exactly one of Data and Summary
// is set, depending on the requested format.
type Result struct {
	Tool     string   `json:"tool"`
	Data     any      `json:"data,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Dispatcher validates tool arguments and runs them against the services.
type Dispatcher struct {
	lifecycle *services.LifecycleService
	matching  *services.MatchingService
	loc       *time.Location
	log       *logging.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(lifecycle *services.LifecycleService, matching *services.MatchingService, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Dispatcher{
		lifecycle: lifecycle,
		matching:  matching,
		loc:       time.Local,
		log:       log.WithComponent("agent_tools"),
	}
}

// Dispatch runs the named tool on behalf of actorID.
func (d *Dispatcher) Dispatch(ctx context.Context, actorID, name string, args json.RawMessage) (*Result, error) {
	var (
		res *Result
		err error
	)

	switch name {
	case ToolCreateTask:
		res, err = d.createTask(ctx, actorID, args)
	case ToolAssignTask:
		res, err = d.assignTask(ctx, args)
	case ToolUpdateTask:
		res, err = d.updateTask(ctx, args)
	case ToolDeleteTask:
		res, err = d.deleteTask(ctx, args)
	case ToolListTasks:
		res, err = d.listTasks(ctx, args)
	case ToolGetTaskDetails:
		res, err = d.getTaskDetails(ctx, args)
	case ToolRecommendWorkers:
		res, err = d.recommendWorkers(ctx, args)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if err != nil {
		d.log.Info("tool call failed", "tool", name, "actor_id", actorID, "error", err)
		return nil, err
	}
	res.Tool = name
	return res, nil
}

func (d *Dispatcher) createTask(ctx context.Context, actorID string, raw json.RawMessage) (*Result, error) {
	var args createTaskArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := requireString("title", args.Title); err != nil {
		return nil, err
	}
	if err := requireString("description", args.Description); err != nil {
		return nil, err
	}
	if err := checkEnum("priority", args.Priority, priorityEnum); err != nil {
		return nil, err
	}
	format, err := checkFormat(args.Format)
	if err != nil {
		return nil, err
	}
	deadline, dateOnly, err := services.ParseDeadline(args.Deadline, d.loc)
	if err != nil {
		return nil, err
	}

	out, err := d.lifecycle.CreateTask(ctx, services.CreateTaskInput{
		Title:            args.Title,
		Description:      args.Description,
		Priority:         models.TaskPriority(args.Priority),
		Deadline:         deadline,
		DeadlineDateOnly: dateOnly,
		EstimatedHours:   args.EstimatedHours,
		RequiredSkills:   args.RequiredSkills,
		CreatedBy:        actorID,
	})
	if err != nil {
		return nil, err
	}
	return taskResult(format, out, "Created"), nil
}

func (d *Dispatcher) assignTask(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args assignTaskArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := requireUUID("task_id", args.TaskID); err != nil {
		return nil, err
	}
	if err := requireUUID("worker_id", args.WorkerID); err != nil {
		return nil, err
	}
	format, err := checkFormat(args.Format)
	if err != nil {
		return nil, err
	}

	out, err := d.lifecycle.Assign(ctx, args.TaskID, args.WorkerID)
	if err != nil {
		return nil, err
	}
	return taskResult(format, out, "Assigned"), nil
}

func (d *Dispatcher) updateTask(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args updateTaskArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := requireUUID("task_id", args.TaskID); err != nil {
		return nil, err
	}
	format, err := checkFormat(args.Format)
	if err != nil {
		return nil, err
	}
	if args.Priority != nil {
		if err := checkEnum("priority", *args.Priority, priorityEnum); err != nil {
			return nil, err
		}
	}
	if args.Reject && args.Progress != nil {
		return nil, fmt.Errorf("%w: reject and progress cannot be combined", services.ErrValidation)
	}
	if !args.Reject && args.Progress == nil && !args.hasEdits() {
		return nil, fmt.Errorf("%w: nothing to update", services.ErrValidation)
	}

	var progress services.ProgressInput
	if args.Progress != nil {
		progress = services.ProgressInput{
			TaskID:      args.TaskID,
			Progress:    *args.Progress,
			Note:        args.Note,
			HoursLogged: args.HoursLogged,
		}
	}

	// The status change must be legal before any field is written.
	if args.hasEdits() {
		switch {
		case args.Reject:
			err = d.lifecycle.CheckReject(ctx, args.TaskID, args.Reason)
		case args.Progress != nil:
			err = d.lifecycle.CheckProgress(ctx, progress)
		}
		if err != nil {
			return nil, err
		}
	}

	var (
		out      *services.TaskResult
		warnings []string
		verb     = "Updated"
	)

	if args.hasEdits() {
		input := services.EditTaskInput{
			Title:          args.Title,
			Description:    args.Description,
			ClearDeadline:  args.ClearDeadline,
			EstimatedHours: args.EstimatedHours,
			RequiredSkills: args.RequiredSkills,
		}
		if args.Priority != nil {
			p := models.TaskPriority(*args.Priority)
			input.Priority = &p
		}
		if args.Deadline != nil && !args.ClearDeadline {
			deadline, dateOnly, err := services.ParseDeadline(*args.Deadline, d.loc)
			if err != nil {
				return nil, err
			}
			input.Deadline = deadline
			input.DeadlineDateOnly = dateOnly
			input.ClearDeadline = deadline == nil
		}
		if out, err = d.lifecycle.EditFields(ctx, args.TaskID, input); err != nil {
			return nil, err
		}
		warnings = out.Warnings
	}

	if args.Progress != nil || args.Reject {
		if args.Reject {
			out, err = d.lifecycle.OverrideReject(ctx, args.TaskID, args.Reason)
			verb = "Rejected"
		} else {
			out, err = d.lifecycle.UpdateProgress(ctx, progress)
			verb = "Recorded progress on"
		}
		if err != nil {
			return nil, err
		}
		out.Warnings = append(warnings, out.Warnings...)
	}

	return taskResult(format, out, verb), nil
}

func (d *Dispatcher) deleteTask(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args deleteTaskArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := requireUUID("task_id", args.TaskID); err != nil {
		return nil, err
	}
	format, err := checkFormat(args.Format)
	if err != nil {
		return nil, err
	}

	if err := d.lifecycle.DeleteTask(ctx, args.TaskID, args.Confirm); err != nil {
		return nil, err
	}

	if format == FormatSummary {
		return &Result{Summary: fmt.Sprintf("Deleted task %s.", args.TaskID)}, nil
	}
	return &Result{Data: map[string]any{"task_id": args.TaskID, "deleted": true}}, nil
}

func (d *Dispatcher) listTasks(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args listTasksArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := checkEnum("status", args.Status, statusEnum); err != nil {
		return nil, err
	}
	if err := checkEnum("priority", args.Priority, priorityEnum); err != nil {
		return nil, err
	}
	if err := optionalUUID("assigned_to", args.AssignedTo); err != nil {
		return nil, err
	}
	format, err := checkFormat(args.Format)
	if err != nil {
		return nil, err
	}

	if args.Page <= 0 {
		args.Page = 1
	}
	if args.Limit <= 0 || args.Limit > maxListLimit {
		args.Limit = maxListLimit
	}

	input := services.ListTasksInput{Page: args.Page, PageSize: args.Limit}
	if args.Status != "" {
		st := models.TaskStatus(args.Status)
		input.Status = &st
	}
	if args.Priority != "" {
		p := models.TaskPriority(args.Priority)
		input.Priority = &p
	}
	if args.AssignedTo != "" {
		input.AssignedTo = &args.AssignedTo
	}

	tasks, total, err := d.lifecycle.ListTasks(ctx, input)
	if err != nil {
		return nil, err
	}

	if format == FormatSummary {
		return &Result{Summary: summarizeTaskList(tasks, total)}, nil
	}
	return &Result{Data: map[string]any{"tasks": tasks, "total": total}}, nil
}

func (d *Dispatcher) getTaskDetails(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args taskRefArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := requireUUID("task_id", args.TaskID); err != nil {
		return nil, err
	}
	format, err := checkFormat(args.Format)
	if err != nil {
		return nil, err
	}

	task, err := d.lifecycle.GetTask(ctx, args.TaskID)
	if err != nil {
		return nil, err
	}
	if format == FormatSummary {
		return &Result{Summary: summarizeTaskDetail(task)}, nil
	}
	return &Result{Data: task}, nil
}

func (d *Dispatcher) recommendWorkers(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var args taskRefArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := requireUUID("task_id", args.TaskID); err != nil {
		return nil, err
	}
	format, err := checkFormat(args.Format)
	if err != nil {
		return nil, err
	}
	if args.Limit <= 0 {
		args.Limit = d.matching.DefaultLimit()
	}

	candidates, err := d.matching.RecommendForTask(ctx, args.TaskID, args.Limit)
	if err != nil {
		return nil, err
	}
	if format == FormatSummary {
		return &Result{Summary: summarizeCandidates(candidates)}, nil
	}
	return &Result{Data: candidates}, nil
}

func taskResult(format string, out *services.TaskResult, verb string) *Result {
	res := &Result{Warnings: out.Warnings}
	if format == FormatSummary {
		res.Summary = summarizeTask(verb, out.Task)
		return res
	}
	res.Data = out.Task
	return res
}
