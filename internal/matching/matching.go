// Package matching ranks workers against a task's required skills.
//
// Rank is pure: it reads a snapshot of profiles and never writes. A ranking
// is advisory only; the lifecycle service decides whether an assignment is
// still legal when it is made.
package matching

import (
	"sort"
	"strings"

	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/models"
)

// Score weights
const (
	weightSkill        = 0.40
	weightCapacity     = 0.30
	weightPerformance  = 0.20
	weightAvailability = 0.10

	neutralSkillMatch = 50.0
)

// Band is an advisory label for a composite score.
type Band string

const (
	BandExcellent Band = "excellent"
	BandGood      Band = "good"
	BandFair      Band = "fair"
	BandWeak      Band = "weak"
)

// BandFor labels a composite score.
func BandFor(score float64) Band {
	switch {
	case score >= 80:
		return BandExcellent
	case score >= 60:
		return BandGood
	case score >= 40:
		return BandFair
	default:
		return BandWeak
	}
}

// Options tunes Rank.
type Options struct {
	// MaxAssumedWorkload is the workload at which capacity reaches zero.
	MaxAssumedWorkload int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{MaxAssumedWorkload: constants.DefaultMaxAssumedWorkload}
}

// Candidate is one ranked worker with the components of its score.
type Candidate struct {
	Worker            models.WorkerProfile `json:"worker"`
	Score             float64              `json:"score"`
	SkillMatchPct     float64              `json:"skill_match_pct"`
	WorkloadCapacity  float64              `json:"workload_capacity"`
	Performance       float64              `json:"performance"`
	AvailabilityBonus float64              `json:"availability_bonus"`
	MatchedSkills     []string             `json:"matched_skills"`
	Band              Band                 `json:"band"`
}

// Rank scores every candidate and orders them best first. Ties go to the
// lower current workload, then to the lower worker id.
func Rank(required []string, candidates []models.WorkerProfile, opts Options) []Candidate {
	if opts.MaxAssumedWorkload <= 0 {
		opts.MaxAssumedWorkload = constants.DefaultMaxAssumedWorkload
	}

	req := lowerAll(required)
	ranked := make([]Candidate, 0, len(candidates))
	for _, w := range candidates {
		ranked = append(ranked, score(req, w, opts))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Worker.CurrentWorkload != b.Worker.CurrentWorkload {
			return a.Worker.CurrentWorkload < b.Worker.CurrentWorkload
		}
		return a.Worker.UserID < b.Worker.UserID
	})

	return ranked
}

func score(required []string, w models.WorkerProfile, opts Options) Candidate {
	skillPct, matched := SkillMatch(required, w.SkillNames())
	capacity := Capacity(w.CurrentWorkload, opts.MaxAssumedWorkload)
	perf := w.PerformanceScore * 100
	bonus := AvailabilityBonus(w.CurrentWorkload)

	composite := weightSkill*skillPct +
		weightCapacity*capacity +
		weightPerformance*perf +
		weightAvailability*bonus

	return Candidate{
		Worker:            w,
		Score:             composite,
		SkillMatchPct:     skillPct,
		WorkloadCapacity:  capacity,
		Performance:       perf,
		AvailabilityBonus: bonus,
		MatchedSkills:     matched,
		Band:              BandFor(composite),
	}
}

// SkillMatch returns the percentage of required skills the worker covers and
// which ones matched. A skill matches when either string contains the other,
// ignoring case. With no required skills the match is a neutral 50.
func SkillMatch(required, have []string) (float64, []string) {
	if len(required) == 0 {
		return neutralSkillMatch, []string{}
	}

	haveLower := lowerAll(have)
	matched := make([]string, 0, len(required))
	for _, r := range required {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		for _, h := range haveLower {
			if h == "" {
				continue
			}
			if strings.Contains(h, r) || strings.Contains(r, h) {
				matched = append(matched, r)
				break
			}
		}
	}

	return 100 * float64(len(matched)) / float64(len(required)), matched
}

// Capacity is the remaining headroom below maxWorkload as a percentage.
func Capacity(current, maxWorkload int) float64 {
	if maxWorkload <= 0 {
		return 0
	}
	c := float64(maxWorkload-current) / float64(maxWorkload) * 100
	if c < 0 {
		return 0
	}
	return c
}

// AvailabilityBonus favours lightly loaded workers.
func AvailabilityBonus(current int) float64 {
	switch {
	case current < 3:
		return 100
	case current < 5:
		return 70
	default:
		return 40
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
