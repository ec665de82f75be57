package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/pagecraft/engine/internal/deploy"
	"github.com/pagecraft/engine/internal/lock"
	"github.com/pagecraft/engine/internal/metrics"
	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/repository"
	appErr "github.com/pagecraft/engine/pkg/errors"
	"github.com/pagecraft/engine/pkg/logger"
)

// TaskTriggerDeploy is the asynq task type processed by the worker.
const TaskTriggerDeploy = "deployment:trigger"

// DeployTaskPayload is the payload of TaskTriggerDeploy.
type DeployTaskPayload struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
}

// ProjectBuilder produces the build directory of a project.
type ProjectBuilder interface {
	BuildProject(ctx context.Context, projectID uuid.UUID) (string, error)
}

// DeploymentService drives the deployment state machine
// pending -> building -> success | failed.
type DeploymentService interface {
	// TriggerDeploy builds and publishes a project synchronously. Every
	// attempt that gets past validation ends in exactly one persisted
	// terminal state; on failure the returned Deployment carries that state
	// alongside the original error.
	TriggerDeploy(ctx context.Context, projectID, userID uuid.UUID) (*models.Deployment, error)
	// EnqueueDeploy validates the project and hands the attempt to the worker.
	EnqueueDeploy(ctx context.Context, projectID, userID uuid.UUID) (string, error)
	GetDeployment(ctx context.Context, deploymentID uuid.UUID) (*models.Deployment, error)
	ListDeployments(ctx context.Context, projectID uuid.UUID, limit int) ([]models.Deployment, error)
}

// DeploymentDeps wires the orchestrator's collaborators.
type DeploymentDeps struct {
	Projects      repository.ProjectRepository
	Templates     repository.TemplateRepository
	Deployments   repository.DeploymentRepository
	Builder       ProjectBuilder
	Adapters      deploy.Registry
	Locker        lock.Locker
	Activity      ActivityService
	Metrics       *metrics.Metrics
	Queue         *asynq.Client
	DeployTimeout time.Duration
}

type deploymentService struct {
	DeploymentDeps
}

func NewDeploymentService(deps DeploymentDeps) DeploymentService {
	if deps.Locker == nil {
		deps.Locker = lock.NewMemoryLocker()
	}
	if deps.DeployTimeout <= 0 {
		deps.DeployTimeout = 60 * time.Second
	}
	return &deploymentService{DeploymentDeps: deps}
}

var _ DeploymentService = (*deploymentService)(nil)

func (s *deploymentService) TriggerDeploy(ctx context.Context, projectID, userID uuid.UUID) (*models.Deployment, error) {
	log := logger.L().With(zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	log.Info("trigger deploy")

	project, err := s.loadDeployable(ctx, projectID)
	if err != nil {
		return nil, err
	}

	release, err := s.Locker.Acquire(ctx, ProjectLockKey(projectID))
	if err != nil {
		return nil, err
	}
	defer release()

	// from here on the attempt runs to a terminal state regardless of the caller
	ctx = context.WithoutCancel(ctx)

	d := &models.Deployment{
		ProjectID:    projectID,
		Version:      versionLabel(),
		DeployTarget: project.DeployTarget,
		Status:       models.DeploymentPending,
		DeployedBy:   userID,
	}
	if err := s.Deployments.Create(ctx, d); err != nil {
		return nil, err
	}
	log = log.With(zap.String("deployment_id", d.ID.String()), zap.String("version", d.Version))

	start := time.Now()
	if err := s.Deployments.MarkBuilding(ctx, d.ID); err != nil {
		return d, s.fail(ctx, d, project, start, "start", err)
	}
	d.Status = models.DeploymentBuilding

	buildDir, err := s.Builder.BuildProject(ctx, projectID)
	if err != nil {
		log.Warn("build failed", zap.Error(err))
		return d, s.fail(ctx, d, project, start, "build", err)
	}

	adapter, err := s.Adapters.Lookup(project.DeployTarget)
	if err != nil {
		return d, s.fail(ctx, d, project, start, "dispatch", err)
	}

	deployCtx, cancel := context.WithTimeout(ctx, s.DeployTimeout)
	res, err := adapter.Deploy(deployCtx, buildDir, project.Slug)
	cancel()
	if err != nil {
		log.Warn("provider deploy failed", zap.String("target", string(project.DeployTarget)), zap.Error(err))
		return d, s.fail(ctx, d, project, start, "deploy", err)
	}

	elapsed := time.Since(start).Milliseconds()
	meta := datatypes.JSONMap{"remote_id": res.RemoteID}
	for k, v := range res.Metadata {
		meta[k] = v
	}
	outcome := repository.Outcome{
		DeployURL: res.URL,
		BuildTime: elapsed,
		Metadata:  meta,
		Logs:      fmt.Sprintf("deployed %s to %s in %dms: %s", project.Slug, project.DeployTarget, elapsed, res.URL),
	}
	if err := s.Deployments.Complete(ctx, d.ID, outcome); err != nil {
		log.Error("persist deployment success failed", zap.String("url", res.URL), zap.Error(err))
		return d, s.fail(ctx, d, project, start, "persist", err)
	}
	d.Status = models.DeploymentSuccess
	d.DeployURL = outcome.DeployURL
	d.BuildTime = outcome.BuildTime
	d.Metadata = outcome.Metadata
	d.Logs = outcome.Logs

	if err := s.Projects.MarkDeployed(ctx, projectID, res.URL); err != nil {
		log.Error("update project after deploy failed", zap.Error(err))
		return d, err
	}

	s.Metrics.DeployResult(string(project.DeployTarget), nil)
	s.logActivity(ctx, userID, ActionDeployProject, project, map[string]any{
		"deployment_id": d.ID.String(),
		"version":       d.Version,
		"target":        string(project.DeployTarget),
		"url":           res.URL,
		"build_time_ms": elapsed,
	})
	log.Info("deployment succeeded", zap.String("url", res.URL), zap.Int64("build_time_ms", elapsed))
	return d, nil
}

// fail persists the failed state and returns cause unchanged.
func (s *deploymentService) fail(ctx context.Context, d *models.Deployment, project *models.Project, start time.Time, stage string, cause error) error {
	elapsed := time.Since(start).Milliseconds()
	meta := datatypes.JSONMap{
		"stage":      stage,
		"error_code": string(appErr.CodeOf(cause)),
	}
	var ae *appErr.AppError
	if errors.As(cause, &ae) {
		for k, v := range ae.Meta {
			meta[k] = v
		}
	}
	outcome := repository.Outcome{
		BuildTime: elapsed,
		Metadata:  meta,
		Logs:      fmt.Sprintf("%s failed after %dms: %v", stage, elapsed, cause),
	}
	if err := s.Deployments.Fail(ctx, d.ID, outcome); err != nil {
		logger.L().Error("persist deployment failure failed",
			zap.String("deployment_id", d.ID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	} else {
		d.Status = models.DeploymentFailed
		d.BuildTime = elapsed
		d.Metadata = meta
		d.Logs = outcome.Logs
	}

	s.Metrics.DeployResult(string(project.DeployTarget), cause)
	s.logActivity(ctx, d.DeployedBy, ActionDeployFailed, project, map[string]any{
		"deployment_id": d.ID.String(),
		"stage":         stage,
		"error":         cause.Error(),
	})
	return cause
}

func (s *deploymentService) EnqueueDeploy(ctx context.Context, projectID, userID uuid.UUID) (string, error) {
	logger.L().Info("enqueue deploy", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))

	if _, err := s.loadDeployable(ctx, projectID); err != nil {
		return "", err
	}
	if s.Queue == nil {
		return "", appErr.New(appErr.CodeUnavailable, "background queue not configured")
	}

	pb, err := json.Marshal(DeployTaskPayload{ProjectID: projectID.String(), UserID: userID.String()})
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInternal, "encode deploy task failed")
	}
	// attempts are never retried; a new attempt is a new trigger
	task := asynq.NewTask(TaskTriggerDeploy, pb, asynq.MaxRetry(0), asynq.Timeout(s.DeployTimeout+5*time.Minute))
	info, err := s.Queue.EnqueueContext(ctx, task)
	if err != nil {
		logger.L().Error("enqueue deploy task failed", zap.Error(err), zap.String("project_id", projectID.String()))
		return "", appErr.Wrap(err, appErr.CodeUnavailable, "enqueue deploy task failed")
	}
	return info.ID, nil
}

func (s *deploymentService) GetDeployment(ctx context.Context, deploymentID uuid.UUID) (*models.Deployment, error) {
	var d models.Deployment
	if err := s.Deployments.GetByID(ctx, deploymentID, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *deploymentService) ListDeployments(ctx context.Context, projectID uuid.UUID, limit int) ([]models.Deployment, error) {
	var p models.Project
	if err := s.Projects.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}
	return s.Deployments.ListByProject(ctx, projectID, limit)
}

// loadDeployable returns the project when it and its template exist and a
// deploy target is configured.
func (s *deploymentService) loadDeployable(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := s.Projects.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}
	var t models.Template
	if err := s.Templates.GetByID(ctx, p.TemplateID, &t); err != nil {
		return nil, err
	}
	if p.DeployTarget == models.DeployTargetNone {
		return nil, appErr.New(appErr.CodeInvalidState, "project has no deploy target").
			WithMeta("project_id", projectID.String())
	}
	return &p, nil
}

func (s *deploymentService) logActivity(ctx context.Context, userID uuid.UUID, action string, project *models.Project, details map[string]any) {
	if s.Activity == nil {
		return
	}
	pid := project.ID
	s.Activity.Log(ctx, ActivityEntry{
		UserID:     userID,
		Action:     action,
		EntityType: EntityProject,
		EntityID:   project.ID.String(),
		ProjectID:  &pid,
		Details:    details,
	})
}

// ProjectLockKey is the lock key guarding a project's build directory.
func ProjectLockKey(id uuid.UUID) string { return "project:" + id.String() }

func versionLabel() string {
	return fmt.Sprintf("v%d", time.Now().UnixMilli())
}
