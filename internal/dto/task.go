package dto

import (
	"time"

	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/utils"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Role     models.UserRole `json:"role"`
}

// TaskUpdateDTO represents one progress report
type TaskUpdateDTO struct {
	ID           uint64            `json:"id"`
	WorkerID     *string           `json:"worker_id"`
	Progress     int               `json:"progress"`
	Note         string            `json:"note,omitempty"`
	HoursLogged  *float64          `json:"hours_logged,omitempty"`
	StatusBefore models.TaskStatus `json:"status_before"`
	StatusAfter  models.TaskStatus `json:"status_after"`
	CreatedAt    time.Time         `json:"created_at"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID               string              `json:"id"`
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Status           models.TaskStatus   `json:"status"`
	Priority         models.TaskPriority `json:"priority"`
	Progress         int                 `json:"progress"`
	Deadline         *time.Time          `json:"deadline"`
	DeadlineDateOnly bool                `json:"deadline_date_only"`
	AssignedTo       *string             `json:"assigned_to"`
	CreatedBy        string              `json:"created_by"`
	EstimatedHours   *float64            `json:"estimated_hours"`
	RejectionReason  *string             `json:"rejection_reason,omitempty"`
	RequiredSkills   []string            `json:"required_skills"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	AcceptedAt       *time.Time          `json:"accepted_at"`
	CompletedAt      *time.Time          `json:"completed_at"`
	Creator          *UserDTO            `json:"creator,omitempty"`
	Assignee         *WorkerDTO          `json:"assignee,omitempty"`
	Updates          []TaskUpdateDTO     `json:"updates,omitempty"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// TaskMutationResponse is returned by every state-changing task endpoint
type TaskMutationResponse struct {
	Task     TaskDTO  `json:"task"`
	Warnings []string `json:"warnings,omitempty"`
}

// CreateTaskRequest is the body of POST /tasks
type CreateTaskRequest struct {
	Title          string   `json:"title" binding:"required"`
	Description    string   `json:"description" binding:"required"`
	Priority       string   `json:"priority" binding:"omitempty,oneof=low medium high"`
	Deadline       string   `json:"deadline"`
	EstimatedHours *float64 `json:"estimated_hours"`
	RequiredSkills []string `json:"required_skills"`
}

// UpdateTaskRequest is the body of PATCH /tasks/:id. Omitted fields are unchanged.
type UpdateTaskRequest struct {
	Title               *string   `json:"title"`
	Description         *string   `json:"description"`
	Priority            *string   `json:"priority" binding:"omitempty,oneof=low medium high"`
	Deadline            *string   `json:"deadline"`
	ClearDeadline       bool      `json:"clear_deadline"`
	EstimatedHours      *float64  `json:"estimated_hours"`
	ClearEstimatedHours bool      `json:"clear_estimated_hours"`
	RequiredSkills      *[]string `json:"required_skills"`
}

// AssignTaskRequest is the body of POST /tasks/:id/assign
type AssignTaskRequest struct {
	WorkerID string `json:"worker_id" binding:"required,uuid"`
}

// RespondRequest is the body of POST /tasks/:id/respond
type RespondRequest struct {
	Decision string `json:"decision" binding:"required,oneof=accept reject"`
	Reason   string `json:"reason"`
}

// ProgressRequest is the body of POST /tasks/:id/progress
type ProgressRequest struct {
	Progress    *int     `json:"progress" binding:"required,min=0,max=100"`
	Note        string   `json:"note"`
	HoursLogged *float64 `json:"hours_logged"`
}

// RejectRequest is the body of POST /tasks/:id/reject
type RejectRequest struct {
	Reason string `json:"reason"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	}
}

// ToTaskUpdateDTO converts a TaskUpdate model to TaskUpdateDTO
func ToTaskUpdateDTO(u models.TaskUpdate) TaskUpdateDTO {
	return TaskUpdateDTO{
		ID:           u.ID,
		WorkerID:     u.WorkerID,
		Progress:     u.Progress,
		Note:         u.Note,
		HoursLogged:  u.HoursLogged,
		StatusBefore: u.StatusBefore,
		StatusAfter:  u.StatusAfter,
		CreatedAt:    u.CreatedAt,
	}
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:               task.ID,
		Title:            task.Title,
		Description:      task.Description,
		Status:           task.Status,
		Priority:         task.Priority,
		Progress:         task.Progress,
		Deadline:         task.Deadline,
		DeadlineDateOnly: task.DeadlineDateOnly,
		AssignedTo:       task.AssignedTo,
		CreatedBy:        task.CreatedBy,
		EstimatedHours:   task.EstimatedHours,
		RejectionReason:  task.RejectionReason,
		RequiredSkills:   task.SkillNames(),
		CreatedAt:        task.CreatedAt,
		UpdatedAt:        task.UpdatedAt,
		AcceptedAt:       task.AcceptedAt,
		CompletedAt:      task.CompletedAt,
	}

	// Include creator if preloaded
	if task.Creator.ID != "" {
		creator := ToUserDTO(task.Creator)
		dto.Creator = &creator
	}

	if task.Assignee != nil {
		assignee := ToWorkerDTO(*task.Assignee)
		dto.Assignee = &assignee
	}

	if len(task.Updates) > 0 {
		dto.Updates = make([]TaskUpdateDTO, len(task.Updates))
		for i, u := range task.Updates {
			dto.Updates[i] = ToTaskUpdateDTO(u)
		}
	}

	return dto
}

// ToTaskListResponse converts a page of tasks to TaskListResponse
func ToTaskListResponse(tasks []models.Task, params utils.PaginationParams, total int64) TaskListResponse {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}

	return TaskListResponse{
		Tasks:      items,
		Pagination: utils.NewPaginationResponse(params, total),
	}
}
