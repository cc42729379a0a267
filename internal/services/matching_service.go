package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/matching"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/utils"
	"gorm.io/gorm"
)

// MatchingService loads candidate snapshots and ranks them.
type MatchingService struct {
	tasks   repository.TaskRepository
	workers repository.WorkerRepository
	opts    matching.Options
}

// NewMatchingService creates a new MatchingService
func NewMatchingService(tasks repository.TaskRepository, workers repository.WorkerRepository, opts matching.Options) *MatchingService {
	return &MatchingService{
		tasks:   tasks,
		workers: workers,
		opts:    opts,
	}
}

// RecommendForTask ranks available workers against a task's required skills.
// The current assignee is included so callers can compare.
func (s *MatchingService) RecommendForTask(ctx context.Context, taskID string, limit int) ([]matching.Candidate, error) {
	task, err := s.tasks.FindByID(ctx, taskID, "Skills")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return s.RankForSkills(ctx, task.SkillNames(), limit)
}

// RankForSkills ranks available workers against an ad-hoc skill set.
// A non-positive limit returns every candidate.
func (s *MatchingService) RankForSkills(ctx context.Context, skills []string, limit int) ([]matching.Candidate, error) {
	workers, err := s.workers.List(ctx, repository.WorkerFilter{AvailableOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	ranked := matching.Rank(utils.NormalizeSkills(skills), workers, s.opts)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// DefaultLimit is the candidate count used when a caller does not ask for one.
func (s *MatchingService) DefaultLimit() int {
	return constants.DefaultCandidateLimit
}
