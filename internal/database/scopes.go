package database

import (
	"gorm.io/gorm"

	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/utils"
)

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// ActiveAssignments restricts a task query to assignments that count toward workload.
func ActiveAssignments(db *gorm.DB) *gorm.DB {
	return db.Where("tasks.assigned_to IS NOT NULL").
		Where("tasks.status IN ?", models.ActiveTaskStatuses)
}
