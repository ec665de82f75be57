// Package app wires configuration into the service graph shared by the API
// server and the worker.
package app

import (
	"path/filepath"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pagecraft/engine/internal/build"
	"github.com/pagecraft/engine/internal/deploy"
	"github.com/pagecraft/engine/internal/deploy/netlify"
	"github.com/pagecraft/engine/internal/deploy/vercel"
	"github.com/pagecraft/engine/internal/lock"
	"github.com/pagecraft/engine/internal/metrics"
	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/render"
	"github.com/pagecraft/engine/internal/repository"
	"github.com/pagecraft/engine/internal/services"
	"github.com/pagecraft/engine/internal/storage"
	"github.com/pagecraft/engine/pkg/config"
	appErr "github.com/pagecraft/engine/pkg/errors"
	"github.com/pagecraft/engine/pkg/logger"
)

// Container holds the constructed services.
type Container struct {
	Storage     *storage.Storage
	Metrics     *metrics.Metrics
	Locker      lock.Locker
	Adapters    deploy.Registry
	Activity    services.ActivityService
	Templates   services.TemplateService
	Projects    services.ProjectService
	Builds      services.BuildService
	Deployments services.DeploymentService
}

// Options carries the process-specific collaborators. Every field is
// optional: without Registerer nothing is measured, without Redis only the
// memory lock backend is available, without Queue deploys cannot be queued.
type Options struct {
	Registerer prometheus.Registerer
	Redis      redis.UniversalClient
	Queue      *asynq.Client
}

func New(cfg *config.Config, db *gorm.DB, opts Options) (*Container, error) {
	store, err := storage.New(cfg.StorageRoot, cfg.MaxBundleBytes)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeStorage, "open storage root failed")
	}
	locker, err := NewLocker(cfg, opts.Redis)
	if err != nil {
		return nil, err
	}
	var m *metrics.Metrics
	if opts.Registerer != nil {
		m = metrics.New(opts.Registerer)
	}

	projectRepo := repository.NewProjectRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	deploymentRepo := repository.NewDeploymentRepository(db)
	activity := services.NewActivityService(repository.NewActivityRepository(db))

	// the orchestrator gets the raw builder: it already holds the project lock
	builder := build.NewBuilder(projectRepo, templateRepo, store, render.New(), m)
	adapters := Adapters(cfg)

	c := &Container{
		Storage:   store,
		Metrics:   m,
		Locker:    locker,
		Adapters:  adapters,
		Activity:  activity,
		Templates: services.NewTemplateService(templateRepo, store, locker, activity),
		Projects:  services.NewProjectService(projectRepo, templateRepo, activity),
		Builds:    services.NewBuildService(builder, locker),
		Deployments: services.NewDeploymentService(services.DeploymentDeps{
			Projects:      projectRepo,
			Templates:     templateRepo,
			Deployments:   deploymentRepo,
			Builder:       builder,
			Adapters:      adapters,
			Locker:        locker,
			Activity:      activity,
			Metrics:       m,
			Queue:         opts.Queue,
			DeployTimeout: cfg.DeployTimeout,
		}),
	}

	logger.L().Info("services wired",
		zap.String("storage_root", store.Root()),
		zap.String("lock_backend", cfg.LockBackend),
		zap.Any("deploy_targets", adapters.Targets()),
		zap.Bool("queue", opts.Queue != nil),
	)
	return c, nil
}

// TemplatesDir is where stored bundles live on disk.
func (c *Container) TemplatesDir() string {
	return filepath.Join(c.Storage.Root(), "templates")
}

// Adapters builds the deploy dispatch table. Every supported target is
// registered; a missing token surfaces as a deploy error on use.
func Adapters(cfg *config.Config) deploy.Registry {
	return deploy.Registry{
		models.DeployTargetNetlify: netlify.New(netlify.Config{
			Token:   cfg.NetlifyToken,
			BaseURL: cfg.NetlifyAPIURL,
			Timeout: cfg.DeployTimeout,
		}),
		models.DeployTargetVercel: vercel.New(vercel.Config{
			Token:   cfg.VercelToken,
			TeamID:  cfg.VercelTeamID,
			BaseURL: cfg.VercelAPIURL,
			Timeout: cfg.DeployTimeout,
		}),
	}
}

// NewLocker selects the project lock backend.
func NewLocker(cfg *config.Config, rdb redis.UniversalClient) (lock.Locker, error) {
	switch cfg.LockBackend {
	case "redis":
		if rdb == nil {
			return nil, appErr.New(appErr.CodeInvalid, "redis lock backend needs a redis client")
		}
		return lock.NewRedisLocker(rdb, cfg.LockTTL), nil
	case "memory", "":
		return lock.NewMemoryLocker(), nil
	default:
		return nil, appErr.Newf(appErr.CodeInvalid, "unknown lock backend %q", cfg.LockBackend)
	}
}

// RedisOptions returns client options for the configured Redis.
func RedisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	}
}

// AsynqRedis returns the asynq connection options for the configured Redis.
func AsynqRedis(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	}
}
