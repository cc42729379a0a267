package cmd

import (
	"fmt"
	"io"

	"github.com/yukikurage/taskboard/internal/agent"
	"github.com/yukikurage/taskboard/internal/config"
	"github.com/yukikurage/taskboard/internal/database"
	"github.com/yukikurage/taskboard/internal/logging"
	"github.com/yukikurage/taskboard/internal/matching"
	"github.com/yukikurage/taskboard/internal/realtime"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/services"
	"gorm.io/gorm"
)

// app holds the wired dependency graph shared by every subcommand.
type app struct {
	cfg  *config.Config
	log  *logging.Logger
	db   *gorm.DB
	feed *realtime.LocalFeed

	tasks   repository.TaskRepository
	workers repository.WorkerRepository
	users   repository.UserRepository

	ledger     *services.Ledger
	lifecycle  *services.LifecycleService
	matching   *services.MatchingService
	workerSvc  *services.WorkerService
	auth       *services.AuthService
	reconciler *services.Reconciler

	dispatcher *agent.Dispatcher
	assistant  *agent.Assistant
}

func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	log := logging.New(logOut, cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:  cfg,
		log:  log,
		db:   db,
		feed: realtime.NewLocalFeed(0, log),
	}

	a.tasks = repository.NewTaskRepository(db, a.feed)
	a.workers = repository.NewWorkerRepository(db, a.feed)
	a.users = repository.NewUserRepository(db)

	a.ledger = services.NewLedger(a.tasks, a.workers, log)
	a.lifecycle = services.NewLifecycleService(a.tasks, a.workers, a.users, a.ledger, log)
	a.matching = services.NewMatchingService(a.tasks, a.workers, matching.Options{
		MaxAssumedWorkload: cfg.MaxAssumedWorkload,
	})
	a.workerSvc = services.NewWorkerService(a.workers)
	a.auth = services.NewAuthService(a.users)
	a.reconciler = services.NewReconciler(a.ledger, cfg.ReconcileInterval, log)

	a.dispatcher = agent.NewDispatcher(a.lifecycle, a.matching, log)
	a.assistant = agent.NewOpenAIAssistant(cfg.OpenAIAPIKey, cfg.OpenAIModel, a.dispatcher, log)

	return a, nil
}

func (a *app) migrate() error {
	return database.Migrate(a.db)
}

func (a *app) close() {
	sqlDB, err := a.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		a.log.Warn("failed to close database", "error", err)
	}
}

func loadApp(configFile string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newApp(cfg, logOut)
}
