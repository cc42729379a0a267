package repository

import (
	"context"

	"github.com/yukikurage/taskboard/internal/database"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/realtime"
	"github.com/yukikurage/taskboard/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db       *gorm.DB
	recorder realtime.Recorder
}

// NewTaskRepository creates a new TaskRepository. Committed writes are
// recorded on recorder; nil disables change events.
func NewTaskRepository(db *gorm.DB, recorder realtime.Recorder) TaskRepository {
	if recorder == nil {
		recorder = realtime.NopRecorder{}
	}
	return &GormTaskRepository{db: db, recorder: recorder}
}

// Create creates a new task
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error; err != nil {
		return err
	}
	r.recorder.Record(realtime.NewChangeEvent(realtime.TableTasks, realtime.KindInsert, task.ID, task))
	return nil
}

// ReplaceSkills replaces the required skills of a task in a transaction
func (r *GormTaskRepository) ReplaceSkills(ctx context.Context, taskID string, skills []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskSkill{}).Error; err != nil {
			return err
		}
		if len(skills) == 0 {
			return nil
		}

		rows := make([]models.TaskSkill, len(skills))
		for i, s := range skills {
			rows[i] = models.TaskSkill{TaskID: taskID, Skill: s}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return err
	}

	r.recorder.Record(realtime.NewChangeEvent(realtime.TableTasks, realtime.KindUpdate, taskID,
		map[string]any{"id": taskID, "required_skills": skills}))
	return nil
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(ctx context.Context, id string, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db.WithContext(ctx)

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// FindDetail loads the full aggregate in one call so callers never join by hand.
func (r *GormTaskRepository) FindDetail(ctx context.Context, id string) (*models.Task, error) {
	return r.FindByID(ctx, id,
		"Skills",
		"Creator",
		"Assignee",
		"Assignee.User",
		"Assignee.Skills",
		"Updates",
	)
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	query := r.db.WithContext(ctx).Model(&models.Task{})

	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("tasks.priority = ?", *filter.Priority)
	}
	if filter.AssignedTo != nil {
		query = query.Where("tasks.assigned_to = ?", *filter.AssignedTo)
	}
	if filter.CreatedBy != nil {
		query = query.Where("tasks.created_by = ?", *filter.CreatedBy)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("tasks.created_at DESC").Order("tasks.id")
	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.NewPaginationParams(filter.Page, filter.PageSize)))
	}

	if err := listQuery.Preload("Skills").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// UpdateFields updates non-status columns
func (r *GormTaskRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.recordFields(realtime.KindUpdate, id, fields)
	return nil
}

// Transition applies fields only if the task still matches cond
func (r *GormTaskRepository) Transition(ctx context.Context, id string, cond TransitionCondition, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Task{}).
		Scopes(matchCondition(id, cond)).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	recorded := fields
	if _, moved := fields["assigned_to"]; moved && cond.CheckAssignee && cond.AssignedTo != nil {
		recorded = make(map[string]any, len(fields)+1)
		for k, v := range fields {
			recorded[k] = v
		}
		recorded["previous_assigned_to"] = *cond.AssignedTo
	}
	r.recordFields(realtime.KindUpdate, id, recorded)
	return true, nil
}

// Delete soft deletes a task if it still matches cond
func (r *GormTaskRepository) Delete(ctx context.Context, id string, cond TransitionCondition) (bool, error) {
	res := r.db.WithContext(ctx).
		Scopes(matchCondition(id, cond)).
		Delete(&models.Task{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	payload := map[string]any{"id": id}
	if cond.CheckAssignee && cond.AssignedTo != nil {
		payload["assigned_to"] = *cond.AssignedTo
	}
	r.recorder.Record(realtime.NewChangeEvent(realtime.TableTasks, realtime.KindDelete, id, payload))
	return true, nil
}

func matchCondition(id string, cond TransitionCondition) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("id = ? AND status = ?", id, cond.Status)
		if !cond.CheckAssignee {
			return db
		}
		if cond.AssignedTo == nil {
			return db.Where("assigned_to IS NULL")
		}
		return db.Where("assigned_to = ?", *cond.AssignedTo)
	}
}

// AppendUpdate appends a progress history row
func (r *GormTaskRepository) AppendUpdate(ctx context.Context, update *models.TaskUpdate) error {
	if err := r.db.WithContext(ctx).Create(update).Error; err != nil {
		return err
	}
	r.recorder.Record(realtime.NewChangeEvent(realtime.TableTaskUpdates, realtime.KindInsert, update.TaskID, update))
	return nil
}

// ListUpdates lists a task's progress history, oldest first
func (r *GormTaskRepository) ListUpdates(ctx context.Context, taskID string) ([]models.TaskUpdate, error) {
	var updates []models.TaskUpdate
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").Order("id ASC").
		Find(&updates).Error; err != nil {
		return nil, err
	}
	return updates, nil
}

// CountActiveByAssignee counts active assignments per worker
func (r *GormTaskRepository) CountActiveByAssignee(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		AssignedTo string
		Count      int
	}

	if err := r.db.WithContext(ctx).Model(&models.Task{}).
		Select("tasks.assigned_to AS assigned_to, COUNT(*) AS count").
		Scopes(database.ActiveAssignments).
		Group("tasks.assigned_to").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.AssignedTo] = row.Count
	}
	return counts, nil
}

func (r *GormTaskRepository) recordFields(kind realtime.Kind, id string, fields map[string]any) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["id"] = id
	r.recorder.Record(realtime.NewChangeEvent(realtime.TableTasks, kind, id, payload))
}
