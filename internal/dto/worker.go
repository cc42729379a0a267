package dto

import (
	"github.com/yukikurage/taskboard/internal/matching"
	"github.com/yukikurage/taskboard/internal/models"
)

// WorkerDTO represents a worker profile in API responses
type WorkerDTO struct {
	UserID           string   `json:"user_id"`
	Username         string   `json:"username,omitempty"`
	Department       string   `json:"department"`
	Designation      string   `json:"designation"`
	Availability     bool     `json:"availability"`
	CurrentWorkload  int      `json:"current_workload"`
	PerformanceScore float64  `json:"performance_score"`
	TasksCompleted   int      `json:"tasks_completed"`
	HourlyRate       *float64 `json:"hourly_rate"`
	Skills           []string `json:"skills"`
}

// CandidateDTO is one ranked worker with its score breakdown
type CandidateDTO struct {
	Worker            WorkerDTO     `json:"worker"`
	Score             float64       `json:"score"`
	Band              matching.Band `json:"band"`
	SkillMatchPct     float64       `json:"skill_match_pct"`
	WorkloadCapacity  float64       `json:"workload_capacity"`
	Performance       float64       `json:"performance"`
	AvailabilityBonus float64       `json:"availability_bonus"`
	MatchedSkills     []string      `json:"matched_skills"`
}

// UpdateWorkerRequest is the body of PATCH /workers/:id
type UpdateWorkerRequest struct {
	Department       *string   `json:"department"`
	Designation      *string   `json:"designation"`
	Availability     *bool     `json:"availability"`
	PerformanceScore *float64  `json:"performance_score"`
	HourlyRate       *float64  `json:"hourly_rate"`
	Skills           *[]string `json:"skills"`
}

// RankRequest is the body of POST /matching/rank
type RankRequest struct {
	Skills []string `json:"skills"`
	Limit  int      `json:"limit" binding:"min=0"`
}

// ToWorkerDTO converts a WorkerProfile model to WorkerDTO
func ToWorkerDTO(w models.WorkerProfile) WorkerDTO {
	return WorkerDTO{
		UserID:           w.UserID,
		Username:         w.User.Username,
		Department:       w.Department,
		Designation:      w.Designation,
		Availability:     w.Availability,
		CurrentWorkload:  w.CurrentWorkload,
		PerformanceScore: w.PerformanceScore,
		TasksCompleted:   w.TasksCompleted,
		HourlyRate:       w.HourlyRate,
		Skills:           w.SkillNames(),
	}
}

// ToWorkerDTOs converts a slice of profiles
func ToWorkerDTOs(workers []models.WorkerProfile) []WorkerDTO {
	out := make([]WorkerDTO, len(workers))
	for i, w := range workers {
		out[i] = ToWorkerDTO(w)
	}
	return out
}

// ToCandidateDTOs converts ranked candidates
func ToCandidateDTOs(candidates []matching.Candidate) []CandidateDTO {
	out := make([]CandidateDTO, len(candidates))
	for i, c := range candidates {
		out[i] = CandidateDTO{
			Worker:            ToWorkerDTO(c.Worker),
			Score:             c.Score,
			Band:              c.Band,
			SkillMatchPct:     c.SkillMatchPct,
			WorkloadCapacity:  c.WorkloadCapacity,
			Performance:       c.Performance,
			AvailabilityBonus: c.AvailabilityBonus,
			MatchedSkills:     c.MatchedSkills,
		}
	}
	return out
}
