package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yukikurage/taskboard/internal/dto"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/middleware"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/services"
	"github.com/yukikurage/taskboard/internal/utils"
)

type TaskHandler struct {
	lifecycle *services.LifecycleService
	matching  *services.MatchingService
	loc       *time.Location
}

func NewTaskHandler(lifecycle *services.LifecycleService, matching *services.MatchingService) *TaskHandler {
	return &TaskHandler{
		lifecycle: lifecycle,
		matching:  matching,
		loc:       time.Local,
	}
}

// ListTasks returns a page of tasks. Workers only see tasks assigned to them.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	params := utils.GetPaginationParams(c)
	input := services.ListTasksInput{Page: params.Page, PageSize: params.Limit}

	if v := c.Query("status"); v != "" {
		st := models.TaskStatus(v)
		input.Status = &st
	}
	if v := c.Query("priority"); v != "" {
		p := models.TaskPriority(v)
		input.Priority = &p
	}
	if v := c.Query("created_by"); v != "" {
		input.CreatedBy = &v
	}
	if v := c.Query("assigned_to"); v != "" {
		if _, err := uuid.Parse(v); err != nil {
			apierrors.BadRequest(c, "Invalid assigned_to")
			return
		}
		input.AssignedTo = &v
	}
	if !middleware.IsAdmin(c) {
		input.AssignedTo = &userID
	}

	tasks, total, err := h.lifecycle.ListTasks(c.Request.Context(), input)
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params, total))
}

// GetTask returns a specific task by ID
// Task is already loaded with relations by RequireTaskAccess middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// CreateTask creates a new pending task
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FromBindError(c, err)
		return
	}

	deadline, dateOnly, err := services.ParseDeadline(req.Deadline, h.loc)
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	out, err := h.lifecycle.CreateTask(c.Request.Context(), services.CreateTaskInput{
		Title:            req.Title,
		Description:      req.Description,
		Priority:         models.TaskPriority(req.Priority),
		Deadline:         deadline,
		DeadlineDateOnly: dateOnly,
		EstimatedHours:   req.EstimatedHours,
		RequiredSkills:   req.RequiredSkills,
		CreatedBy:        userID,
	})
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	respondTask(c, http.StatusCreated, out)
}

// UpdateTask edits non-status fields
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FromBindError(c, err)
		return
	}

	input := services.EditTaskInput{
		Title:               req.Title,
		Description:         req.Description,
		ClearDeadline:       req.ClearDeadline,
		EstimatedHours:      req.EstimatedHours,
		ClearEstimatedHours: req.ClearEstimatedHours,
		RequiredSkills:      req.RequiredSkills,
	}
	if req.Priority != nil {
		p := models.TaskPriority(*req.Priority)
		input.Priority = &p
	}
	if req.Deadline != nil && !req.ClearDeadline {
		deadline, dateOnly, err := services.ParseDeadline(*req.Deadline, h.loc)
		if err != nil {
			apierrors.FromServiceError(c, err)
			return
		}
		input.Deadline = deadline
		input.DeadlineDateOnly = dateOnly
		input.ClearDeadline = deadline == nil
	}

	out, err := h.lifecycle.EditFields(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	respondTask(c, http.StatusOK, out)
}

// DeleteTask deletes a task. The request must carry ?confirm=true.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))

	if err := h.lifecycle.DeleteTask(c.Request.Context(), c.Param("id"), confirmed); err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

// AssignTask invites a worker to the task, reassigning it if needed
func (h *TaskHandler) AssignTask(c *gin.Context) {
	var req dto.AssignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FromBindError(c, err)
		return
	}

	out, err := h.lifecycle.Assign(c.Request.Context(), c.Param("id"), req.WorkerID)
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	respondTask(c, http.StatusOK, out)
}

// RespondToTask records the current worker's answer to an invitation
func (h *TaskHandler) RespondToTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req dto.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FromBindError(c, err)
		return
	}

	out, err := h.lifecycle.Respond(c.Request.Context(), services.RespondInput{
		TaskID:   c.Param("id"),
		WorkerID: userID,
		Decision: req.Decision,
		Reason:   req.Reason,
	})
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	respondTask(c, http.StatusOK, out)
}

// UpdateProgress reports progress. Administrators may report on behalf of
// the assignee.
func (h *TaskHandler) UpdateProgress(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req dto.ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FromBindError(c, err)
		return
	}

	input := services.ProgressInput{
		TaskID:      c.Param("id"),
		Progress:    *req.Progress,
		Note:        req.Note,
		HoursLogged: req.HoursLogged,
	}
	if !middleware.IsAdmin(c) {
		input.WorkerID = userID
	}

	out, err := h.lifecycle.UpdateProgress(c.Request.Context(), input)
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	respondTask(c, http.StatusOK, out)
}

// RejectTask rejects any non-terminal task as an administrator
func (h *TaskHandler) RejectTask(c *gin.Context) {
	var req dto.RejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.FromBindError(c, err)
			return
		}
	}

	out, err := h.lifecycle.OverrideReject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	respondTask(c, http.StatusOK, out)
}

// ListUpdates returns the task's progress history
func (h *TaskHandler) ListUpdates(c *gin.Context) {
	updates, err := h.lifecycle.ListUpdates(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	items := make([]dto.TaskUpdateDTO, len(updates))
	for i, u := range updates {
		items[i] = dto.ToTaskUpdateDTO(u)
	}
	c.JSON(http.StatusOK, gin.H{"updates": items})
}

// RecommendWorkers ranks available workers for the task
func (h *TaskHandler) RecommendWorkers(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.matching.DefaultLimit())))
	if err != nil || limit < 0 {
		apierrors.BadRequest(c, "Invalid limit")
		return
	}

	candidates, err := h.matching.RecommendForTask(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"candidates": dto.ToCandidateDTOs(candidates)})
}

func respondTask(c *gin.Context, status int, out *services.TaskResult) {
	c.JSON(status, dto.TaskMutationResponse{
		Task:     dto.ToTaskDTO(*out.Task),
		Warnings: out.Warnings,
	})
}
