package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusInvited   TaskStatus = "invited"
	TaskStatusAccepted  TaskStatus = "accepted"
	TaskStatusOngoing   TaskStatus = "ongoing"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusRejected  TaskStatus = "rejected"
)

// AllTaskStatuses lists every status in lifecycle order.
var AllTaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInvited,
	TaskStatusAccepted,
	TaskStatusOngoing,
	TaskStatusCompleted,
	TaskStatusRejected,
}

// ActiveTaskStatuses are the statuses counted in a worker's workload.
var ActiveTaskStatuses = []TaskStatus{
	TaskStatusInvited,
	TaskStatusAccepted,
	TaskStatusOngoing,
}

// IsActive reports whether a task in this status counts as an active assignment.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusInvited || s == TaskStatusAccepted || s == TaskStatusOngoing
}

// IsTerminal reports whether no further transition is allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusRejected
}

func (s TaskStatus) Valid() bool {
	for _, st := range AllTaskStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type Task struct {
	ID               string         `gorm:"type:varchar(36);primarykey" json:"id"`
	Title            string         `gorm:"type:varchar(255);not null" json:"title"`
	Description      string         `gorm:"type:text;not null" json:"description"`
	Status           TaskStatus     `gorm:"type:varchar(20);not null;default:'pending';index:idx_tasks_assignee_status,priority:2" json:"status"`
	Priority         TaskPriority   `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	Progress         int            `gorm:"not null;default:0" json:"progress"`
	Deadline         *time.Time     `json:"deadline"`
	DeadlineDateOnly bool           `gorm:"not null;default:false" json:"deadline_date_only"`
	AssignedTo       *string        `gorm:"type:varchar(36);index:idx_tasks_assignee_status,priority:1" json:"assigned_to"`
	CreatedBy        string         `gorm:"type:varchar(36);not null" json:"created_by"`
	EstimatedHours   *float64       `json:"estimated_hours"`
	RejectionReason  *string        `gorm:"type:text" json:"rejection_reason"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	AcceptedAt       *time.Time     `json:"accepted_at"`
	CompletedAt      *time.Time     `json:"completed_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Skills   []TaskSkill    `gorm:"foreignKey:TaskID" json:"skills,omitempty"`
	Creator  User           `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Assignee *WorkerProfile `gorm:"foreignKey:AssignedTo;references:UserID" json:"assignee,omitempty"`
	Updates  []TaskUpdate   `gorm:"foreignKey:TaskID" json:"updates,omitempty"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// SkillNames returns the task's required skills as plain strings.
func (t *Task) SkillNames() []string {
	names := make([]string, len(t.Skills))
	for i, s := range t.Skills {
		names[i] = s.Skill
	}
	return names
}

// IsAssignedTo reports whether workerID is the current assignee.
func (t *Task) IsAssignedTo(workerID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == workerID
}
