// AngelaMos | 2026
// serve.go

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/user-admin/internal/admin"
	"github.com/carterperez-dev/templates/user-admin/internal/cache"
	"github.com/carterperez-dev/templates/user-admin/internal/config"
	"github.com/carterperez-dev/templates/user-admin/internal/core"
	"github.com/carterperez-dev/templates/user-admin/internal/health"
	"github.com/carterperez-dev/templates/user-admin/internal/metrics"
	"github.com/carterperez-dev/templates/user-admin/internal/middleware"
	"github.com/carterperez-dev/templates/user-admin/internal/mutation"
	"github.com/carterperez-dev/templates/user-admin/internal/preference"
	"github.com/carterperez-dev/templates/user-admin/internal/server"
	"github.com/carterperez-dev/templates/user-admin/internal/undo"
	"github.com/carterperez-dev/templates/user-admin/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context(), configPath)
	},
}

//nolint:funlen // bootstrap code is inherently verbose
func serve(parent context.Context, path string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		return err
	}
	if cfg.Otel.Enabled {
		logger.Info("OpenTelemetry tracer initialized",
			"endpoint", cfg.Otel.Endpoint,
		)
	}

	redis, err := core.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	api, err := user.NewAPIClient(
		cfg.API.BaseURL,
		&http.Client{Timeout: cfg.API.Timeout},
		telemetry.Tracer,
	)
	if err != nil {
		return err
	}

	loc, err := cfg.Table.Location()
	if err != nil {
		return err
	}

	store := cache.New(
		cache.WithStaleTime(cfg.Cache.StaleTime),
		cache.WithLogger(logger),
	)
	coord := mutation.NewCoordinator(store, logger)
	scheduler := undo.New(cfg.Undo.Window, logger)

	userSvc := user.NewService(api, store, coord, scheduler, logger,
		user.WithDetailRetries(cfg.Cache.DetailRetries),
	)
	unwatch := userSvc.Watch(func(ev cache.Event) {
		logger.Debug("user list changed",
			"event", ev.Type.String(),
			"status", ev.Entry.Status.String(),
		)
	})
	defer unwatch()

	userHandler := user.NewHandler(userSvc, user.NewTable(loc))
	prefHandler := preference.NewHandler(preference.NewStore(redis.Client))

	healthHandler := health.NewHandler(
		health.Dependency{Name: "user_api", Checker: api},
		health.Dependency{Name: "redis", Checker: redis, Optional: true},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		CacheStats:   store.Stats,
		Invalidate:   func() int { return store.Invalidate(user.KeyAll) },
		PendingUndo:  scheduler.Pending,
		RedisStats:   redis.PoolStats,
		RedisPing:    redis.Ping,
		UpstreamPing: api.Ping,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing(telemetry.Tracer))
	router.Use(middleware.Logger(logger))
	router.Use(chimw.Recoverer)
	limiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.Per(
			cfg.RateLimit.Requests,
			cfg.RateLimit.Burst,
			cfg.RateLimit.Window,
		),
		Logger:     logger,
		FailOpen:   true,
		BypassFunc: middleware.BypassPaths("/healthz", "/livez", "/readyz", "/metrics"),
	})
	defer limiter.Close()

	router.Use(limiter.Handler)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)
	router.Handle("/metrics", metrics.Handler())

	router.Route("/v1", func(r chi.Router) {
		userHandler.RegisterRoutes(r)
		prefHandler.RegisterRoutes(r)
		adminHandler.RegisterRoutes(r)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// pending deletes are cancelled and restored, never committed early
	scheduler.Close()
	store.Close()

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
