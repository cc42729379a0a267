package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/handlers"
	"github.com/yukikurage/taskboard/internal/realtime"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configFile)
		},
	}
}

func runServe(cmd *cobra.Command, configFile string) error {
	a, err := loadApp(configFile, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.migrate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub, err := a.startSync(ctx)
	if err != nil {
		return err
	}
	defer hub.Close()

	a.reconciler.Start()
	defer a.reconciler.Stop()

	gin.SetMode(a.cfg.GinMode)
	r := gin.Default()

	// Setup session middleware with Redis
	store, err := redisStore.NewStore(
		10,
		"tcp",
		a.cfg.RedisHost+":"+a.cfg.RedisPort,
		"",
		[]byte(a.cfg.SessionSecret),
	)
	if err != nil {
		return fmt.Errorf("failed to create Redis store: %w", err)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   a.cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	r.GET("/health", func(c *gin.Context) {
		state, _ := hub.State()
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"sync":   state,
		})
	})

	handlers.RegisterRoutes(r.Group("/api"), handlers.Handlers{
		Auth:   handlers.NewAuthHandler(a.auth, a.workerSvc),
		Task:   handlers.NewTaskHandler(a.lifecycle, a.matching),
		Worker: handlers.NewWorkerHandler(a.workerSvc, a.matching),
		Sync:   handlers.NewSyncHandler(hub, a.lifecycle),
		Agent:  handlers.NewAgentHandler(a.dispatcher, a.assistant),
		Admin:  handlers.NewAdminHandler(a.reconciler),
	}, a.lifecycle)

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting", "addr", a.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	// Closing the hub ends open event streams so Shutdown does not wait on them.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startSync connects a Hub to the change feed. With Kafka brokers
// configured, local changes are relayed to the topic and the hub consumes
// the topic so every instance sees every change.
func (a *app) startSync(ctx context.Context) (*realtime.Hub, error) {
	var feed realtime.Feed = a.feed

	if brokers := a.cfg.Brokers(); len(brokers) > 0 {
		relay, err := realtime.NewKafkaRelay(a.feed, brokers, a.cfg.KafkaTopic, a.log)
		if err != nil {
			return nil, err
		}
		go func() {
			defer relay.Close()
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("kafka relay stopped", "error", err)
			}
		}()
		feed = realtime.NewKafkaFeed(brokers, a.cfg.KafkaTopic, a.cfg.KafkaGroupID, a.log)
	}

	hub := realtime.NewHub(feed, a.cfg.SyncDebounce, a.log)
	if err := hub.Connect(); err != nil {
		// The hub reports StateError; POST /api/sync/reconnect retries.
		a.log.Warn("change feed unavailable at startup", "error", err)
	}
	return hub, nil
}
