package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/pagecraft/engine/internal/services"
	"github.com/pagecraft/engine/pkg/logger"
)

// DeployTaskHandler runs queued deployment attempts.
type DeployTaskHandler struct {
	deploySvc services.DeploymentService
}

func NewDeployTaskHandler(deploySvc services.DeploymentService) *DeployTaskHandler {
	return &DeployTaskHandler{deploySvc: deploySvc}
}

// Register binds the handler to its task types on mux.
func (h *DeployTaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(services.TaskTriggerDeploy, h.HandleDeploy)
}

// HandleDeploy runs one attempt. Failures are never retried: the attempt
// already ended in a persisted terminal state and a retry would be a new
// deployment.
func (h *DeployTaskHandler) HandleDeploy(ctx context.Context, t *asynq.Task) error {
	var p services.DeployTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid deploy task payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	projectID, err := uuid.Parse(p.ProjectID)
	if err != nil {
		logger.L().Error("invalid project id in task", zap.String("project_id", p.ProjectID), zap.Error(err))
		return fmt.Errorf("parse project id: %v: %w", err, asynq.SkipRetry)
	}
	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		logger.L().Error("invalid user id in task", zap.String("user_id", p.UserID), zap.Error(err))
		return fmt.Errorf("parse user id: %v: %w", err, asynq.SkipRetry)
	}

	log := logger.L().With(zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	log.Info("handling deploy task")

	d, err := h.deploySvc.TriggerDeploy(ctx, projectID, userID)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if d != nil {
			fields = append(fields, zap.String("deployment_id", d.ID.String()), zap.String("status", string(d.Status)))
		}
		log.Warn("deploy task failed", fields...)
		return fmt.Errorf("deploy project %s: %v: %w", projectID, err, asynq.SkipRetry)
	}

	log.Info("deploy task completed", zap.String("deployment_id", d.ID.String()), zap.String("url", d.DeployURL))
	return nil
}
