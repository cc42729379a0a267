package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/logging"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/utils"
	"gorm.io/gorm"
)

// Respond decisions
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

// LifecycleService drives tasks through their status machine and keeps the
// workload ledger in step with it.
//
// Every status change is a conditional write against the status (and
// assignee) the caller observed. When another caller changed the task first
// the write matches no row, the operation fails with ErrInvalidTransition
// and no ledger delta is issued.
type LifecycleService struct {
	tasks   repository.TaskRepository
	workers repository.WorkerRepository
	users   repository.UserRepository
	ledger  *Ledger
	log     *logging.Logger
	now     func() time.Time
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(
	tasks repository.TaskRepository,
	workers repository.WorkerRepository,
	users repository.UserRepository,
	ledger *Ledger,
	log *logging.Logger,
) *LifecycleService {
	if log == nil {
		log = logging.NopLogger()
	}
	return &LifecycleService{
		tasks:   tasks,
		workers: workers,
		users:   users,
		ledger:  ledger,
		log:     log.WithComponent("lifecycle"),
		now:     time.Now,
	}
}

// TaskResult is a task after a successful operation. Warnings lists
// secondary writes that failed without failing the operation.
type TaskResult struct {
	Task     *models.Task `json:"task"`
	Warnings []string     `json:"warnings,omitempty"`
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title            string
	Description      string
	Priority         models.TaskPriority
	Deadline         *time.Time
	DeadlineDateOnly bool
	EstimatedHours   *float64
	RequiredSkills   []string
	CreatedBy        string
}

// EditTaskInput represents the non-status fields an edit may change.
// Nil fields are left untouched.
type EditTaskInput struct {
	Title               *string
	Description         *string
	Priority            *models.TaskPriority
	Deadline            *time.Time
	DeadlineDateOnly    bool
	ClearDeadline       bool
	EstimatedHours      *float64
	ClearEstimatedHours bool
	RequiredSkills      *[]string
}

// RespondInput is a worker's answer to an invitation
type RespondInput struct {
	TaskID   string
	WorkerID string
	Decision string
	Reason   string
}

// ProgressInput reports progress on an accepted or ongoing task. An empty
// WorkerID skips the assignee check (administrative updates).
type ProgressInput struct {
	TaskID      string
	WorkerID    string
	Progress    int
	Note        string
	HoursLogged *float64
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	Status     *models.TaskStatus
	Priority   *models.TaskPriority
	AssignedTo *string
	CreatedBy  *string
	Page       int
	PageSize   int
}

// CreateTask validates input and creates a pending task.
func (s *LifecycleService) CreateTask(ctx context.Context, input CreateTaskInput) (*TaskResult, error) {
	if strings.TrimSpace(input.CreatedBy) == "" {
		return nil, ErrAuthRequired
	}
	if _, err := s.users.FindByID(ctx, input.CreatedBy); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown creator", ErrAuthRequired)
		}
		return nil, fmt.Errorf("failed to verify creator: %w", err)
	}

	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, validationErrorf("description is required")
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, validationErrorf("invalid priority %q", priority)
	}

	if input.Deadline != nil && deadlineExpired(*input.Deadline, input.DeadlineDateOnly, s.now()) {
		return nil, validationErrorf("deadline must be in the future")
	}
	if err := validateHours("estimated hours", input.EstimatedHours, false); err != nil {
		return nil, err
	}
	skills, err := validateSkills(input.RequiredSkills)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:            title,
		Description:      description,
		Status:           models.TaskStatusPending,
		Priority:         priority,
		Deadline:         input.Deadline,
		DeadlineDateOnly: input.Deadline != nil && input.DeadlineDateOnly,
		EstimatedHours:   input.EstimatedHours,
		CreatedBy:        input.CreatedBy,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	var warnings []string
	if len(skills) > 0 {
		if err := s.tasks.ReplaceSkills(ctx, task.ID, skills); err != nil {
			s.log.Warn("failed to save required skills", "task_id", task.ID, "error", err)
			warnings = append(warnings, "required skills could not be saved")
		}
	}

	s.log.Info("task created", "task_id", task.ID, "created_by", task.CreatedBy)
	return s.result(ctx, task, warnings), nil
}

// Assign invites a worker to a task. Assigning an active task to a
// different worker moves its workload from the previous assignee.
// Assigning it to its current active assignee changes nothing.
func (s *LifecycleService) Assign(ctx context.Context, taskID, workerID string) (*TaskResult, error) {
	if strings.TrimSpace(workerID) == "" {
		return nil, validationErrorf("worker id is required")
	}

	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.workers.FindByID(ctx, workerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: worker %s", ErrNotFound, workerID)
		}
		return nil, fmt.Errorf("failed to find worker: %w", err)
	}

	if task.Status.IsTerminal() {
		return nil, transitionErrorf("cannot assign a %s task", task.Status)
	}
	if task.Status.IsActive() && task.IsAssignedTo(workerID) {
		return s.result(ctx, task, nil), nil
	}

	previous := task.AssignedTo
	wasActive := task.Status.IsActive()

	ok, err := s.tasks.Transition(ctx, task.ID, observed(task), map[string]any{
		"status":      models.TaskStatusInvited,
		"assigned_to": workerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}
	if !ok {
		return nil, transitionErrorf("task %s changed concurrently", task.ID)
	}

	if wasActive && previous != nil {
		_ = s.ledger.Adjust(ctx, *previous, -1, "reassigned away")
	}
	_ = s.ledger.Adjust(ctx, workerID, +1, "assigned")

	s.log.Info("task assigned", "task_id", task.ID, "worker_id", workerID, "from_status", task.Status)
	task.Status = models.TaskStatusInvited
	task.AssignedTo = &workerID
	return s.result(ctx, task, nil), nil
}

// Respond records the invited worker's accept or reject decision.
func (s *LifecycleService) Respond(ctx context.Context, input RespondInput) (*TaskResult, error) {
	decision := strings.ToLower(strings.TrimSpace(input.Decision))
	if decision != DecisionAccept && decision != DecisionReject {
		return nil, validationErrorf("decision must be %q or %q", DecisionAccept, DecisionReject)
	}
	reason, err := validateReason(input.Reason)
	if err != nil {
		return nil, err
	}

	task, err := s.findTask(ctx, input.TaskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusInvited {
		return nil, transitionErrorf("cannot respond to a %s task", task.Status)
	}
	if !task.IsAssignedTo(input.WorkerID) {
		return nil, transitionErrorf("task is not assigned to %s", input.WorkerID)
	}

	fields := map[string]any{}
	next := models.TaskStatusAccepted
	if decision == DecisionAccept {
		// accepted_at records the first acceptance only
		if task.AcceptedAt == nil {
			fields["accepted_at"] = s.now()
		}
	} else {
		next = models.TaskStatusRejected
		if reason != "" {
			fields["rejection_reason"] = reason
		}
	}
	fields["status"] = next

	ok, err := s.tasks.Transition(ctx, task.ID, observed(task), fields)
	if err != nil {
		return nil, fmt.Errorf("failed to record response: %w", err)
	}
	if !ok {
		return nil, transitionErrorf("task %s changed concurrently", task.ID)
	}

	if next == models.TaskStatusRejected {
		_ = s.ledger.Adjust(ctx, input.WorkerID, -1, "invitation rejected")
	}

	s.log.Info("invitation answered", "task_id", task.ID, "worker_id", input.WorkerID, "decision", decision)
	task.Status = next
	return s.result(ctx, task, nil), nil
}

// UpdateProgress records progress on an accepted or ongoing task. Progress
// below 100 moves it to ongoing; 100 completes it.
func (s *LifecycleService) UpdateProgress(ctx context.Context, input ProgressInput) (*TaskResult, error) {
	note, err := validateProgress(input)
	if err != nil {
		return nil, err
	}

	task, err := s.findTask(ctx, input.TaskID)
	if err != nil {
		return nil, err
	}
	if err := progressAllowed(task, input.WorkerID); err != nil {
		return nil, err
	}

	before := task.Status
	next := models.TaskStatusOngoing
	fields := map[string]any{"progress": input.Progress}
	if input.Progress == 100 {
		next = models.TaskStatusCompleted
		fields["completed_at"] = s.now()
	}
	fields["status"] = next

	ok, err := s.tasks.Transition(ctx, task.ID, observed(task), fields)
	if err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}
	if !ok {
		return nil, transitionErrorf("task %s changed concurrently", task.ID)
	}

	var warnings []string
	update := &models.TaskUpdate{
		TaskID:       task.ID,
		WorkerID:     task.AssignedTo,
		Progress:     input.Progress,
		Note:         note,
		HoursLogged:  input.HoursLogged,
		StatusBefore: before,
		StatusAfter:  next,
	}
	if err := s.tasks.AppendUpdate(ctx, update); err != nil {
		s.log.Warn("failed to append progress history", "task_id", task.ID, "error", err)
		warnings = append(warnings, "progress history could not be saved")
	}

	if next == models.TaskStatusCompleted && task.AssignedTo != nil {
		_ = s.ledger.Adjust(ctx, *task.AssignedTo, -1, "completed")
		_ = s.ledger.RecordCompletion(ctx, *task.AssignedTo, "completed")
		s.log.Info("task completed", "task_id", task.ID, "worker_id", *task.AssignedTo)
	}

	task.Status = next
	task.Progress = input.Progress
	return s.result(ctx, task, warnings), nil
}

// DeleteTask removes a task. confirmed must be true. Deleting an active
// task releases its assignee's workload first and restores it if the
// delete does not go through.
func (s *LifecycleService) DeleteTask(ctx context.Context, taskID string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return err
	}

	released := false
	if task.Status.IsActive() && task.AssignedTo != nil {
		released = s.ledger.Adjust(ctx, *task.AssignedTo, -1, "deleted") == nil
	}

	ok, err := s.tasks.Delete(ctx, task.ID, observed(task))
	if err == nil && !ok {
		err = transitionErrorf("task %s changed concurrently", task.ID)
	}
	if err != nil {
		if released {
			_ = s.ledger.Adjust(ctx, *task.AssignedTo, +1, "delete failed")
		}
		if errors.Is(err, ErrInvalidTransition) {
			return err
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.log.Info("task deleted", "task_id", task.ID, "status", task.Status)
	return nil
}

// EditFields changes non-status fields of a task.
func (s *LifecycleService) EditFields(ctx context.Context, taskID string, input EditTaskInput) (*TaskResult, error) {
	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}

	if input.Title != nil {
		title, err := validateTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		fields["title"] = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, validationErrorf("description cannot be empty")
		}
		fields["description"] = description
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, validationErrorf("invalid priority %q", *input.Priority)
		}
		fields["priority"] = *input.Priority
	}

	switch {
	case input.ClearDeadline:
		fields["deadline"] = nil
		fields["deadline_date_only"] = false
	case input.Deadline != nil:
		if !task.Status.IsTerminal() && deadlineExpired(*input.Deadline, input.DeadlineDateOnly, s.now()) {
			return nil, validationErrorf("deadline must be in the future")
		}
		fields["deadline"] = *input.Deadline
		fields["deadline_date_only"] = input.DeadlineDateOnly
	}

	switch {
	case input.ClearEstimatedHours:
		fields["estimated_hours"] = nil
	case input.EstimatedHours != nil:
		if err := validateHours("estimated hours", input.EstimatedHours, false); err != nil {
			return nil, err
		}
		fields["estimated_hours"] = *input.EstimatedHours
	}

	var skills []string
	if input.RequiredSkills != nil {
		if skills, err = validateSkills(*input.RequiredSkills); err != nil {
			return nil, err
		}
	}

	if err := s.tasks.UpdateFields(ctx, task.ID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task %s", ErrNotFound, task.ID)
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	var warnings []string
	if input.RequiredSkills != nil {
		if err := s.tasks.ReplaceSkills(ctx, task.ID, skills); err != nil {
			s.log.Warn("failed to save required skills", "task_id", task.ID, "error", err)
			warnings = append(warnings, "required skills could not be saved")
		}
	}

	return s.result(ctx, task, warnings), nil
}

// OverrideReject moves any non-terminal task to rejected.
func (s *LifecycleService) OverrideReject(ctx context.Context, taskID, reason string) (*TaskResult, error) {
	reason, err := validateReason(reason)
	if err != nil {
		return nil, err
	}

	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		return nil, transitionErrorf("task is already %s", task.Status)
	}

	fields := map[string]any{"status": models.TaskStatusRejected}
	if reason != "" {
		fields["rejection_reason"] = reason
	}

	ok, err := s.tasks.Transition(ctx, task.ID, observed(task), fields)
	if err != nil {
		return nil, fmt.Errorf("failed to reject task: %w", err)
	}
	if !ok {
		return nil, transitionErrorf("task %s changed concurrently", task.ID)
	}

	if task.Status.IsActive() && task.AssignedTo != nil {
		_ = s.ledger.Adjust(ctx, *task.AssignedTo, -1, "rejected by administrator")
	}

	s.log.Info("task rejected by administrator", "task_id", task.ID, "from_status", task.Status)
	task.Status = models.TaskStatusRejected
	return s.result(ctx, task, nil), nil
}

// CheckProgress reports the error UpdateProgress would return for input
// against the task's current state, without writing anything.
func (s *LifecycleService) CheckProgress(ctx context.Context, input ProgressInput) error {
	if _, err := validateProgress(input); err != nil {
		return err
	}
	task, err := s.findTask(ctx, input.TaskID)
	if err != nil {
		return err
	}
	return progressAllowed(task, input.WorkerID)
}

// CheckReject reports the error OverrideReject would return, without
// writing anything.
func (s *LifecycleService) CheckReject(ctx context.Context, taskID, reason string) error {
	if _, err := validateReason(reason); err != nil {
		return err
	}
	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return transitionErrorf("task is already %s", task.Status)
	}
	return nil
}

// GetTask returns a task with its skills, people and history
func (s *LifecycleService) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.tasks.FindDetail(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// ListTasks returns a filtered page of tasks
func (s *LifecycleService) ListTasks(ctx context.Context, input ListTasksInput) ([]models.Task, int64, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, 0, validationErrorf("invalid status %q", *input.Status)
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, 0, validationErrorf("invalid priority %q", *input.Priority)
	}

	tasks, total, err := s.tasks.List(ctx, repository.TaskFilter{
		Status:     input.Status,
		Priority:   input.Priority,
		AssignedTo: input.AssignedTo,
		CreatedBy:  input.CreatedBy,
		Page:       input.Page,
		PageSize:   input.PageSize,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// ListUpdates returns a task's progress history, oldest first
func (s *LifecycleService) ListUpdates(ctx context.Context, taskID string) ([]models.TaskUpdate, error) {
	if _, err := s.findTask(ctx, taskID); err != nil {
		return nil, err
	}
	updates, err := s.tasks.ListUpdates(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task updates: %w", err)
	}
	return updates, nil
}

func (s *LifecycleService) findTask(ctx context.Context, taskID string) (*models.Task, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, validationErrorf("task id is required")
	}
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// result reloads the committed task. If the reload fails the caller still
// gets the locally updated copy.
func (s *LifecycleService) result(ctx context.Context, fallback *models.Task, warnings []string) *TaskResult {
	task, err := s.tasks.FindDetail(ctx, fallback.ID)
	if err != nil {
		s.log.Warn("failed to reload task", "task_id", fallback.ID, "error", err)
		task = fallback
	}
	return &TaskResult{Task: task, Warnings: warnings}
}

// observed is the condition for writing over exactly the state we read.
func observed(task *models.Task) repository.TransitionCondition {
	return repository.TransitionCondition{
		Status:        task.Status,
		CheckAssignee: true,
		AssignedTo:    task.AssignedTo,
	}
}

func validateProgress(input ProgressInput) (string, error) {
	if input.Progress < 0 || input.Progress > 100 {
		return "", validationErrorf("progress must be between 0 and 100")
	}
	if err := validateHours("hours logged", input.HoursLogged, true); err != nil {
		return "", err
	}
	note := strings.TrimSpace(input.Note)
	if len(note) > constants.MaxProgressNoteSize {
		return "", validationErrorf("note exceeds %d characters", constants.MaxProgressNoteSize)
	}
	return note, nil
}

func progressAllowed(task *models.Task, workerID string) error {
	if task.Status != models.TaskStatusAccepted && task.Status != models.TaskStatusOngoing {
		return transitionErrorf("cannot update progress on a %s task", task.Status)
	}
	if workerID != "" && !task.IsAssignedTo(workerID) {
		return transitionErrorf("task is not assigned to %s", workerID)
	}
	return nil
}

func validateReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > constants.MaxRejectionReason {
		return "", validationErrorf("reason exceeds %d characters", constants.MaxRejectionReason)
	}
	return reason, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", validationErrorf("title is required")
	}
	if len(title) > constants.MaxTitleLength {
		return "", validationErrorf("title exceeds %d characters", constants.MaxTitleLength)
	}
	return title, nil
}

func validateHours(field string, hours *float64, allowZero bool) error {
	if hours == nil {
		return nil
	}
	if *hours < 0 || (!allowZero && *hours == 0) {
		if allowZero {
			return validationErrorf("%s cannot be negative", field)
		}
		return validationErrorf("%s must be positive", field)
	}
	return nil
}

func validateSkills(skills []string) ([]string, error) {
	normalized := utils.NormalizeSkills(skills)
	if len(normalized) > constants.MaxSkillsPerRecord {
		return nil, validationErrorf("at most %d skills are allowed", constants.MaxSkillsPerRecord)
	}
	for _, s := range normalized {
		if len(s) > constants.MaxSkillLength {
			return nil, validationErrorf("skill %q exceeds %d characters", s, constants.MaxSkillLength)
		}
	}
	return normalized, nil
}
