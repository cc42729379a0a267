package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskboard/internal/middleware"
)

// Handlers groups every HTTP handler of the API.
type Handlers struct {
	Auth   *AuthHandler
	Task   *TaskHandler
	Worker *WorkerHandler
	Sync   *SyncHandler
	Agent  *AgentHandler
	Admin  *AdminHandler
}

// RegisterRoutes mounts the API under api. tasks loads the task for
// routes that take a task :id.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, tasks middleware.TaskLoader) {
	// Auth routes (public)
	auth := api.Group("/auth")
	{
		auth.POST("/signup", h.Auth.Signup)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/me", middleware.RequireAuth(), h.Auth.GetCurrentUser)
	}

	admin := middleware.RequireAdmin()
	access := middleware.RequireTaskAccess(tasks)

	// Task routes (protected)
	t := api.Group("/tasks")
	t.Use(middleware.RequireAuth())
	{
		t.GET("", h.Task.ListTasks)
		t.POST("", admin, h.Task.CreateTask)
		t.GET("/:id", access, h.Task.GetTask)
		t.PATCH("/:id", admin, access, h.Task.UpdateTask)
		t.DELETE("/:id", admin, access, h.Task.DeleteTask)
		t.POST("/:id/assign", admin, access, h.Task.AssignTask)
		t.POST("/:id/respond", access, h.Task.RespondToTask)
		t.POST("/:id/progress", access, h.Task.UpdateProgress)
		t.POST("/:id/reject", admin, access, h.Task.RejectTask)
		t.GET("/:id/candidates", admin, access, h.Task.RecommendWorkers)
		t.GET("/:id/updates", access, h.Task.ListUpdates)
	}

	w := api.Group("/workers")
	w.Use(middleware.RequireAuth())
	{
		w.GET("", admin, h.Worker.ListWorkers)
		w.GET("/:id", h.Worker.GetWorker)
		w.PATCH("/:id", admin, h.Worker.UpdateWorker)
	}

	api.POST("/matching/rank", middleware.RequireAuth(), admin, h.Worker.RankWorkers)

	api.GET("/events", middleware.RequireAuth(), h.Sync.Events)
	s := api.Group("/sync")
	s.Use(middleware.RequireAuth())
	{
		s.GET("/status", h.Sync.Status)
		s.POST("/reconnect", admin, h.Sync.Reconnect)
	}

	ag := api.Group("/agent")
	ag.Use(middleware.RequireAuth(), admin)
	{
		ag.GET("/tools", h.Agent.ListTools)
		ag.POST("/tools/:name", h.Agent.CallTool)
		ag.POST("/chat", h.Agent.Chat)
	}

	a := api.Group("/admin")
	a.Use(middleware.RequireAuth(), admin)
	{
		a.GET("/reconcile", h.Admin.LastReconcile)
		a.POST("/reconcile", h.Admin.Reconcile)
	}
}
