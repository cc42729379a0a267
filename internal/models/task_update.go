package models

import "time"

// TaskUpdate is an append-only progress report. Rows are never modified.
type TaskUpdate struct {
	ID           uint64     `gorm:"primarykey" json:"id"`
	TaskID       string     `gorm:"type:varchar(36);not null;index" json:"task_id"`
	WorkerID     *string    `gorm:"type:varchar(36)" json:"worker_id"`
	Progress     int        `gorm:"not null" json:"progress"`
	Note         string     `gorm:"type:text" json:"note"`
	HoursLogged  *float64   `json:"hours_logged"`
	StatusBefore TaskStatus `gorm:"type:varchar(20);not null" json:"status_before"`
	StatusAfter  TaskStatus `gorm:"type:varchar(20);not null" json:"status_after"`
	CreatedAt    time.Time  `json:"created_at"`
}
