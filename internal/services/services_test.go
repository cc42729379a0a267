package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskboard/internal/database"
	"github.com/yukikurage/taskboard/internal/logging"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the services over an in-memory database.
type testEnv struct {
	db        *gorm.DB
	tasks     repository.TaskRepository
	workers   repository.WorkerRepository
	users     repository.UserRepository
	ledger    *Ledger
	lifecycle *LifecycleService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T, wrapWorkers func(repository.WorkerRepository) repository.WorkerRepository) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	env := &testEnv{
		db:      db,
		tasks:   repository.NewTaskRepository(db, nil),
		workers: repository.NewWorkerRepository(db, nil),
		users:   repository.NewUserRepository(db),
	}
	if wrapWorkers != nil {
		env.workers = wrapWorkers(env.workers)
	}
	env.ledger = NewLedger(env.tasks, env.workers, logging.NopLogger())
	env.lifecycle = NewLifecycleService(env.tasks, env.workers, env.users, env.ledger, logging.NopLogger())
	return env
}

func (e *testEnv) createAdmin(t *testing.T, username string) *models.User {
	t.Helper()

	user := &models.User{Username: username, PasswordHash: "hash", Role: models.RoleAdmin}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *testEnv) createWorker(t *testing.T, username string, workload int, skills ...string) *models.WorkerProfile {
	t.Helper()

	user := &models.User{Username: username, PasswordHash: "hash", Role: models.RoleWorker}
	profile := &models.WorkerProfile{Availability: true, CurrentWorkload: workload, PerformanceScore: 0.5}
	require.NoError(t, e.users.CreateWithWorkerProfile(context.Background(), user, profile))
	if len(skills) > 0 {
		require.NoError(t, e.workers.ReplaceSkills(context.Background(), user.ID, skills))
	}
	return profile
}

func (e *testEnv) workload(t *testing.T, workerID string) int {
	t.Helper()

	w, err := e.workers.FindByID(context.Background(), workerID)
	require.NoError(t, err)
	return w.CurrentWorkload
}

func (e *testEnv) completed(t *testing.T, workerID string) int {
	t.Helper()

	w, err := e.workers.FindByID(context.Background(), workerID)
	require.NoError(t, err)
	return w.TasksCompleted
}

// drift returns every worker whose counter disagrees with the task table.
func (e *testEnv) drift(t *testing.T) map[string][2]int {
	t.Helper()

	ctx := context.Background()
	counts, err := e.tasks.CountActiveByAssignee(ctx)
	require.NoError(t, err)
	workloads, err := e.workers.ListWorkloads(ctx)
	require.NoError(t, err)

	out := map[string][2]int{}
	for id, recorded := range workloads {
		if recorded != counts[id] {
			out[id] = [2]int{recorded, counts[id]}
		}
	}
	return out
}
