package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/repository"
	"gorm.io/gorm"
)

// WorkerService manages the descriptive part of worker profiles. The
// workload counters belong to the Ledger.
type WorkerService struct {
	workers repository.WorkerRepository
}

// NewWorkerService creates a new WorkerService
func NewWorkerService(workers repository.WorkerRepository) *WorkerService {
	return &WorkerService{workers: workers}
}

// UpdateWorkerInput represents profile fields to change. Nil fields are left untouched.
type UpdateWorkerInput struct {
	Department       *string
	Designation      *string
	Availability     *bool
	PerformanceScore *float64
	HourlyRate       *float64
	Skills           *[]string
}

// ListWorkers lists worker profiles
func (s *WorkerService) ListWorkers(ctx context.Context, filter repository.WorkerFilter) ([]models.WorkerProfile, error) {
	workers, err := s.workers.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	return workers, nil
}

// GetWorker returns a worker profile
func (s *WorkerService) GetWorker(ctx context.Context, userID string) (*models.WorkerProfile, error) {
	worker, err := s.workers.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: worker %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to find worker: %w", err)
	}
	return worker, nil
}

// UpdateWorker updates a worker's profile and skills
func (s *WorkerService) UpdateWorker(ctx context.Context, userID string, input UpdateWorkerInput) (*models.WorkerProfile, error) {
	worker, err := s.GetWorker(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Department != nil {
		worker.Department = strings.TrimSpace(*input.Department)
	}
	if input.Designation != nil {
		worker.Designation = strings.TrimSpace(*input.Designation)
	}
	if input.Availability != nil {
		worker.Availability = *input.Availability
	}
	if input.PerformanceScore != nil {
		if *input.PerformanceScore < 0 || *input.PerformanceScore > 1 {
			return nil, validationErrorf("performance score must be between 0 and 1")
		}
		worker.PerformanceScore = *input.PerformanceScore
	}
	if input.HourlyRate != nil {
		if *input.HourlyRate <= 0 {
			return nil, validationErrorf("hourly rate must be positive")
		}
		worker.HourlyRate = input.HourlyRate
	}

	var skills []string
	if input.Skills != nil {
		if skills, err = validateSkills(*input.Skills); err != nil {
			return nil, err
		}
	}

	if err := s.workers.Update(ctx, worker); err != nil {
		return nil, fmt.Errorf("failed to update worker: %w", err)
	}
	if input.Skills != nil {
		if err := s.workers.ReplaceSkills(ctx, userID, skills); err != nil {
			return nil, fmt.Errorf("failed to update worker skills: %w", err)
		}
	}

	return s.GetWorker(ctx, userID)
}
