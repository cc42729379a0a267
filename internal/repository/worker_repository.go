package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/realtime"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormWorkerRepository is a GORM implementation of WorkerRepository
type GormWorkerRepository struct {
	db       *gorm.DB
	recorder realtime.Recorder
}

// NewWorkerRepository creates a new WorkerRepository
func NewWorkerRepository(db *gorm.DB, recorder realtime.Recorder) WorkerRepository {
	if recorder == nil {
		recorder = realtime.NopRecorder{}
	}
	return &GormWorkerRepository{db: db, recorder: recorder}
}

// Create creates a new worker profile and its skills
func (r *GormWorkerRepository) Create(ctx context.Context, profile *models.WorkerProfile) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(profile).Error; err != nil {
		return err
	}
	r.recorder.Record(realtime.NewChangeEvent(realtime.TableWorkerProfiles, realtime.KindInsert, profile.UserID, profile))
	return nil
}

// FindByID finds a profile with its user and skills
func (r *GormWorkerRepository) FindByID(ctx context.Context, userID string) (*models.WorkerProfile, error) {
	var profile models.WorkerProfile
	if err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Skills").
		First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// List lists profiles with their user and skills
func (r *GormWorkerRepository) List(ctx context.Context, filter WorkerFilter) ([]models.WorkerProfile, error) {
	var profiles []models.WorkerProfile

	query := r.db.WithContext(ctx).Preload("User").Preload("Skills")
	if filter.AvailableOnly {
		query = query.Where("availability = ?", true)
	}
	if filter.Department != "" {
		query = query.Where("department = ?", filter.Department)
	}

	if err := query.Order("user_id").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// Update updates the descriptive columns of a profile. Ledger columns are
// never written here.
func (r *GormWorkerRepository) Update(ctx context.Context, profile *models.WorkerProfile) error {
	res := r.db.WithContext(ctx).Model(profile).
		Select("department", "designation", "availability", "performance_score", "hourly_rate").
		Updates(profile)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.recorder.Record(realtime.NewChangeEvent(realtime.TableWorkerProfiles, realtime.KindUpdate, profile.UserID, profile))
	return nil
}

// ReplaceSkills replaces a worker's skills in a transaction
func (r *GormWorkerRepository) ReplaceSkills(ctx context.Context, userID string, skills []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.WorkerSkill{}).Error; err != nil {
			return err
		}
		if len(skills) == 0 {
			return nil
		}

		rows := make([]models.WorkerSkill, len(skills))
		for i, s := range skills {
			rows[i] = models.WorkerSkill{UserID: userID, Skill: s}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		return err
	}

	r.recorder.Record(realtime.NewChangeEvent(realtime.TableWorkerProfiles, realtime.KindUpdate, userID,
		map[string]any{"user_id": userID, "skills": skills}))
	return nil
}

// AdjustWorkload atomically adds delta to current_workload, clamped at zero.
// The arithmetic runs in the database so concurrent adjustments for the
// same worker cannot lose updates.
func (r *GormWorkerRepository) AdjustWorkload(ctx context.Context, userID string, delta int) (int, error) {
	var value int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WorkerProfile{}).
			Where("user_id = ?", userID).
			UpdateColumn("current_workload",
				gorm.Expr("CASE WHEN current_workload + ? < 0 THEN 0 ELSE current_workload + ? END", delta, delta),
			).Error; err != nil {
			return err
		}

		// RowsAffected is unreliable here (MySQL reports 0 when a clamp leaves
		// the value unchanged), so existence is checked by reading back.
		err := tx.Model(&models.WorkerProfile{}).
			Select("current_workload").
			Where("user_id = ?", userID).
			Row().Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return gorm.ErrRecordNotFound
		}
		return err
	})
	if err != nil {
		return 0, err
	}

	r.recordWorkload(userID, map[string]any{"user_id": userID, "current_workload": value})
	return value, nil
}

// IncrementTasksCompleted atomically adds one completed task
func (r *GormWorkerRepository) IncrementTasksCompleted(ctx context.Context, userID string) error {
	res := r.db.WithContext(ctx).Model(&models.WorkerProfile{}).
		Where("user_id = ?", userID).
		UpdateColumn("tasks_completed", gorm.Expr("tasks_completed + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	r.recordWorkload(userID, map[string]any{"user_id": userID, "tasks_completed_delta": 1})
	return nil
}

// SetWorkload overwrites current_workload if it still equals from. It
// reports false when a concurrent adjustment got there first.
func (r *GormWorkerRepository) SetWorkload(ctx context.Context, userID string, from, to int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.WorkerProfile{}).
		Where("user_id = ? AND current_workload = ?", userID, from).
		UpdateColumn("current_workload", to)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 && from != to {
		return false, nil
	}

	r.recordWorkload(userID, map[string]any{"user_id": userID, "current_workload": to})
	return true, nil
}

// ListWorkloads returns current_workload for every profile
func (r *GormWorkerRepository) ListWorkloads(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		UserID          string
		CurrentWorkload int
	}
	if err := r.db.WithContext(ctx).Model(&models.WorkerProfile{}).
		Select("user_id, current_workload").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	workloads := make(map[string]int, len(rows))
	for _, row := range rows {
		workloads[row.UserID] = row.CurrentWorkload
	}
	return workloads, nil
}

func (r *GormWorkerRepository) recordWorkload(userID string, payload map[string]any) {
	r.recorder.Record(realtime.NewChangeEvent(realtime.TableWorkerProfiles, realtime.KindUpdate, userID, payload))
}
