package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskboard/internal/agent"
	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/database"
	"github.com/yukikurage/taskboard/internal/matching"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/realtime"
	"github.com/yukikurage/taskboard/internal/repository"
	"github.com/yukikurage/taskboard/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type apiEnv struct {
	db         *gorm.DB
	router     *gin.Engine
	feed       *realtime.LocalFeed
	hub        *realtime.Hub
	workers    repository.WorkerRepository
	auth       *services.AuthService
	lifecycle  *services.LifecycleService
	matching   *services.MatchingService
	dispatcher *agent.Dispatcher
	reconciler *services.Reconciler
}

type envOption func(*apiEnv, *Handlers)

func withAssistant(client agent.ChatClient) envOption {
	return func(env *apiEnv, h *Handlers) {
		h.Agent = NewAgentHandler(env.dispatcher, agent.NewAssistant(client, "", env.dispatcher, nil))
	}
}

func setupAPIEnv(t *testing.T, opts ...envOption) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	env := &apiEnv{db: db, feed: realtime.NewLocalFeed(0, nil)}

	tasks := repository.NewTaskRepository(db, env.feed)
	env.workers = repository.NewWorkerRepository(db, env.feed)
	users := repository.NewUserRepository(db)
	ledger := services.NewLedger(tasks, env.workers, nil)

	env.auth = services.NewAuthService(users)
	env.lifecycle = services.NewLifecycleService(tasks, env.workers, users, ledger, nil)
	env.matching = services.NewMatchingService(tasks, env.workers, matching.DefaultOptions())
	env.dispatcher = agent.NewDispatcher(env.lifecycle, env.matching, nil)
	env.reconciler = services.NewReconciler(ledger, 0, nil)

	env.hub = realtime.NewHub(env.feed, 0, nil)
	require.NoError(t, env.hub.Connect())

	t.Cleanup(func() {
		env.hub.Close()
		sqlDB.Close()
	})

	h := Handlers{
		Auth:   NewAuthHandler(env.auth, services.NewWorkerService(env.workers)),
		Task:   NewTaskHandler(env.lifecycle, env.matching),
		Worker: NewWorkerHandler(services.NewWorkerService(env.workers), env.matching),
		Sync:   NewSyncHandler(env.hub, env.lifecycle),
		Agent:  NewAgentHandler(env.dispatcher, agent.NewAssistant(nil, "", env.dispatcher, nil)),
		Admin:  NewAdminHandler(env.reconciler),
	}
	for _, opt := range opts {
		opt(env, &h)
	}

	env.router = gin.New()
	env.router.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))
	RegisterRoutes(env.router.Group("/api"), h, env.lifecycle)

	return env
}

func (env *apiEnv) signup(t *testing.T, username string, role models.UserRole) *models.User {
	t.Helper()

	user, err := env.auth.Signup(context.Background(), services.SignupInput{
		Username: username,
		Password: "supersecret",
		Role:     role,
	})
	require.NoError(t, err)
	return user
}

// login returns the session cookies for username
func (env *apiEnv) login(t *testing.T, username string) []*http.Cookie {
	t.Helper()

	w := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": "supersecret",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies, "expected session cookie to be set")
	return cookies
}

func (env *apiEnv) do(t *testing.T, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *apiEnv) workload(t *testing.T, workerID string) int {
	t.Helper()

	w, err := env.workers.FindByID(context.Background(), workerID)
	require.NoError(t, err)
	return w.CurrentWorkload
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[apiErrorBody](t, w).Code
}
