package database

import (
	"fmt"

	"github.com/yukikurage/taskboard/internal/models"
	"gorm.io/gorm"
)

// AddIndexes adds indexes that are not expressed in struct tags.
// The ledger recount and the candidate snapshot query filter on these.
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		model any
		name  string
	}{
		{&models.Task{}, "idx_tasks_assignee_status"},
		{&models.Task{}, "idx_tasks_deleted_at"},
		{&models.TaskUpdate{}, "idx_task_updates_task_id"},
	}

	migrator := db.Migrator()
	for _, idx := range indexes {
		if migrator.HasIndex(idx.model, idx.name) {
			continue
		}
		if err := migrator.CreateIndex(idx.model, idx.name); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	if !migrator.HasIndex(&models.WorkerProfile{}, "idx_worker_profiles_availability") {
		if err := db.Exec("CREATE INDEX idx_worker_profiles_availability ON worker_profiles (availability)").Error; err != nil {
			return fmt.Errorf("failed to create index idx_worker_profiles_availability: %w", err)
		}
	}

	return nil
}
