package models

import "time"

type WorkerProfile struct {
	UserID           string    `gorm:"type:varchar(36);primarykey" json:"user_id"`
	Department       string    `gorm:"type:varchar(255)" json:"department"`
	Designation      string    `gorm:"type:varchar(255)" json:"designation"`
	Availability     bool      `gorm:"not null;default:true" json:"availability"`
	CurrentWorkload  int       `gorm:"not null;default:0" json:"current_workload"`
	PerformanceScore float64   `gorm:"not null;default:0" json:"performance_score"`
	TasksCompleted   int       `gorm:"not null;default:0" json:"tasks_completed"`
	HourlyRate       *float64  `json:"hourly_rate"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Relations
	User   User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Skills []WorkerSkill `gorm:"foreignKey:UserID" json:"skills,omitempty"`
}

// SkillNames returns the worker's skills as plain strings.
func (w *WorkerProfile) SkillNames() []string {
	names := make([]string, len(w.Skills))
	for i, s := range w.Skills {
		names[i] = s.Skill
	}
	return names
}

// WorkerSkill is one skill of a worker, stored lower-cased.
type WorkerSkill struct {
	UserID string `gorm:"type:varchar(36);primarykey" json:"-"`
	Skill  string `gorm:"type:varchar(100);primarykey" json:"skill"`
}
