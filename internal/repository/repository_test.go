package repository

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskboard/internal/database"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/realtime"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingRecorder keeps every event it is given.
type recordingRecorder struct {
	mu     sync.Mutex
	events []realtime.ChangeEvent
}

func (r *recordingRecorder) Record(ev realtime.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingRecorder) Events() []realtime.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.ChangeEvent(nil), r.events...)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db))
	return db
}

func createWorker(t *testing.T, db *gorm.DB, username string, workload int) *models.WorkerProfile {
	t.Helper()

	user := &models.User{Username: username, PasswordHash: "hash", Role: models.RoleWorker}
	require.NoError(t, db.Create(user).Error)

	profile := &models.WorkerProfile{
		UserID:          user.ID,
		Availability:    true,
		CurrentWorkload: workload,
	}
	require.NoError(t, db.Omit("User").Create(profile).Error)
	return profile
}

func createAdmin(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{Username: username, PasswordHash: "hash", Role: models.RoleAdmin}
	require.NoError(t, db.Create(user).Error)
	return user
}
