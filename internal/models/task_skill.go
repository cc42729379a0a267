package models

// TaskSkill is one required skill of a task, stored lower-cased.
type TaskSkill struct {
	TaskID string `gorm:"type:varchar(36);primarykey" json:"-"`
	Skill  string `gorm:"type:varchar(100);primarykey" json:"skill"`
}
