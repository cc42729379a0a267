package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskboard/internal/dto"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/middleware"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/services"
)

// WorkerHandler serves worker profiles and ad-hoc matching.
type WorkerHandler struct {
	workers  *services.WorkerService
	matching *services.MatchingService
}

func NewWorkerHandler(workers *services.WorkerService, matching *services.MatchingService) *WorkerHandler {
	return &WorkerHandler{
		workers:  workers,
		matching: matching,
	}
}

// ListWorkers lists worker profiles, optionally only available ones
func (h *WorkerHandler) ListWorkers(c *gin.Context) {
	availableOnly, _ := strconv.ParseBool(c.Query("available"))

	workers, err := h.workers.ListWorkers(c.Request.Context(), repository.WorkerFilter{
		AvailableOnly: availableOnly,
		Department:    c.Query("department"),
	})
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workers": dto.ToWorkerDTOs(workers)})
}

// GetWorker returns one profile. Workers may only read their own.
func (h *WorkerHandler) GetWorker(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	workerID := c.Param("id")
	if !middleware.IsAdmin(c) && workerID != userID {
		apierrors.NotFound(c, "Worker not found")
		return
	}

	worker, err := h.workers.GetWorker(c.Request.Context(), workerID)
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToWorkerDTO(*worker))
}

// UpdateWorker changes the descriptive fields and skills of a profile
func (h *WorkerHandler) UpdateWorker(c *gin.Context) {
	var req dto.UpdateWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FromBindError(c, err)
		return
	}

	worker, err := h.workers.UpdateWorker(c.Request.Context(), c.Param("id"), services.UpdateWorkerInput{
		Department:       req.Department,
		Designation:      req.Designation,
		Availability:     req.Availability,
		PerformanceScore: req.PerformanceScore,
		HourlyRate:       req.HourlyRate,
		Skills:           req.Skills,
	})
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToWorkerDTO(*worker))
}

// RankWorkers ranks available workers against a skill list
func (h *WorkerHandler) RankWorkers(c *gin.Context) {
	var req dto.RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FromBindError(c, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = h.matching.DefaultLimit()
	}

	candidates, err := h.matching.RankForSkills(c.Request.Context(), req.Skills, req.Limit)
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"candidates": dto.ToCandidateDTOs(candidates)})
}
