package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pagecraft/engine/internal/api"
	"github.com/pagecraft/engine/internal/api/handlers"
	"github.com/pagecraft/engine/internal/app"
	"github.com/pagecraft/engine/pkg/config"
	"github.com/pagecraft/engine/pkg/database"
	"github.com/pagecraft/engine/pkg/logger"
)

const readinessTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting pagecraft engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver:  cfg.DatabaseDriver,
		DSN:     cfg.DatabaseURL,
		Verbose: cfg.AppEnv == "development",
		Logger:  logger.Named("gorm"),
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.DatabaseDriver))

	rdb := redis.NewClient(app.RedisOptions(cfg))
	defer rdb.Close()
	queue := asynq.NewClient(app.AsynqRedis(cfg))
	defer queue.Close()

	c, err := app.New(cfg, db, app.Options{
		Registerer: prometheus.DefaultRegisterer,
		Redis:      rdb,
		Queue:      queue,
	})
	if err != nil {
		log.Fatal("Failed to wire services", zap.Error(err))
	}

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		if cfg.AppEnv == "production" {
			log.Fatal("JWT_SECRET must be set in production")
		}
		log.Warn("JWT_SECRET not set, using default (INSECURE for production)")
		jwtSecret = []byte("change-me-in-production-please")
	}

	checks := map[string]handlers.ReadyFunc{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db, readinessTimeout) },
	}
	if cfg.LockBackend == "redis" {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// Create router with dependencies
	router := api.NewRouter(api.Dependencies{
		HMACSecret:         jwtSecret,
		Metrics:            c.Metrics,
		Gatherer:           prometheus.DefaultGatherer,
		TemplatesDir:       c.TemplatesDir(),
		HealthHandler:      handlers.NewHealthHandler(checks),
		TemplatesHandler:   handlers.NewTemplatesHandler(c.Templates, cfg.MaxBundleBytes),
		ProjectsHandler:    handlers.NewProjectsHandler(c.Projects, c.Templates, c.Builds, c.Activity, cfg.PreviewAssetBase),
		DeploymentsHandler: handlers.NewDeploymentsHandler(c.Deployments),
	})

	// Synchronous deploys hold the request for up to DEPLOY_TIMEOUT
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.DeployTimeout + time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
