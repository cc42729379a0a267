package repository

import (
	"context"

	"github.com/yukikurage/taskboard/internal/models"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// ReplaceSkills replaces the required skills of a task
	ReplaceSkills(ctx context.Context, taskID string, skills []string) error

	// FindByID finds a task by ID with optional preloading
	FindByID(ctx context.Context, id string, preload ...string) (*models.Task, error)

	// FindDetail returns the task with skills, creator, assignee profile and history
	FindDetail(ctx context.Context, id string) (*models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	// UpdateFields updates non-status columns
	UpdateFields(ctx context.Context, id string, fields map[string]any) error

	// Transition applies fields only if the task still matches cond.
	// It reports false when another writer changed the task first.
	Transition(ctx context.Context, id string, cond TransitionCondition, fields map[string]any) (bool, error)

	// Delete soft deletes a task if it still matches cond
	Delete(ctx context.Context, id string, cond TransitionCondition) (bool, error)

	// AppendUpdate appends a progress history row
	AppendUpdate(ctx context.Context, update *models.TaskUpdate) error

	// ListUpdates lists a task's progress history, oldest first
	ListUpdates(ctx context.Context, taskID string) ([]models.TaskUpdate, error)

	// CountActiveByAssignee counts active assignments per worker
	CountActiveByAssignee(ctx context.Context) (map[string]int, error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	Status     *models.TaskStatus
	Priority   *models.TaskPriority
	AssignedTo *string
	CreatedBy  *string
	Page       int
	PageSize   int
}

// TransitionCondition is the state a task must still be in for a
// conditional write to apply. When CheckAssignee is set, AssignedTo must
// match too (nil meaning unassigned).
type TransitionCondition struct {
	Status        models.TaskStatus
	CheckAssignee bool
	AssignedTo    *string
}

// WorkerRepository defines the interface for worker profile data access.
// The ledger columns (current_workload, tasks_completed) are only written
// through AdjustWorkload, IncrementTasksCompleted and SetWorkload.
type WorkerRepository interface {
	// Create creates a new worker profile
	Create(ctx context.Context, profile *models.WorkerProfile) error

	// FindByID finds a profile with its user and skills
	FindByID(ctx context.Context, userID string) (*models.WorkerProfile, error)

	// List lists profiles with their user and skills
	List(ctx context.Context, filter WorkerFilter) ([]models.WorkerProfile, error)

	// Update updates the descriptive columns of a profile
	Update(ctx context.Context, profile *models.WorkerProfile) error

	// ReplaceSkills replaces a worker's skills
	ReplaceSkills(ctx context.Context, userID string, skills []string) error

	// AdjustWorkload atomically adds delta to current_workload, clamped at
	// zero, and returns the new value
	AdjustWorkload(ctx context.Context, userID string, delta int) (int, error)

	// IncrementTasksCompleted atomically adds one completed task
	IncrementTasksCompleted(ctx context.Context, userID string) error

	// SetWorkload overwrites current_workload if it still equals from.
	// Only reconciliation calls it.
	SetWorkload(ctx context.Context, userID string, from, to int) (bool, error)

	// ListWorkloads returns current_workload for every profile
	ListWorkloads(ctx context.Context) (map[string]int, error)
}

// WorkerFilter holds filtering options for listing workers
type WorkerFilter struct {
	AvailableOnly bool
	Department    string
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// CreateWithWorkerProfile creates a user and their worker profile
	// within a single transaction.
	CreateWithWorkerProfile(ctx context.Context, user *models.User, profile *models.WorkerProfile) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id string) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}
