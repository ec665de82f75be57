package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pagecraft/engine/internal/app"
	"github.com/pagecraft/engine/internal/queue/tasks"
	"github.com/pagecraft/engine/pkg/config"
	"github.com/pagecraft/engine/pkg/database"
	"github.com/pagecraft/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rdb := redis.NewClient(app.RedisOptions(cfg))
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	srv := asynq.NewServer(
		app.AsynqRedis(cfg),
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
			Logger:      logger.Named("asynq").Sugar(),
		},
	)

	// Initialize DB and services for task handlers
	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver: cfg.DatabaseDriver,
		DSN:    cfg.DatabaseURL,
		Logger: logger.Named("gorm"),
	})
	if err != nil {
		logger.L().Fatal("failed to open database", zap.Error(err))
	}

	if cfg.LockBackend != "redis" {
		logger.L().Warn("memory lock backend does not serialize deploys across processes; set LOCK_BACKEND=redis")
	}

	// the worker runs attempts, it never enqueues them
	c, err := app.New(cfg, db, app.Options{Redis: rdb})
	if err != nil {
		logger.L().Fatal("failed to wire services", zap.Error(err))
	}

	mux := asynq.NewServeMux()
	tasks.NewDeployTaskHandler(c.Deployments).Register(mux)

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.L().Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.L().Error("worker stopped with error", zap.Error(err))
	}

	// Allow in-flight tasks to finish gracefully
	srv.Shutdown()
}
