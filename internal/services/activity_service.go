package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/repository"
	"github.com/pagecraft/engine/pkg/logger"
)

// Activity actions
const (
	ActionDeployProject       = "deploy_project"
	ActionDeployFailed        = "deploy_failed"
	ActionUploadTemplate      = "upload_template"
	ActionCloneTemplate       = "clone_template"
	ActionDeleteTemplateFiles = "delete_template_files"
	ActionUpdateProjectConfig = "update_project_config"
	ActionUpdateProjectStatus = "update_project_status"
)

// Entity types
const (
	EntityProject  = "project"
	EntityTemplate = "template"
)

const activityWriteTimeout = 5 * time.Second

// ActivityEntry is one user-visible action.
type ActivityEntry struct {
	UserID     uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	ProjectID  *uuid.UUID
	Details    map[string]any
}

// ActivityService appends to the activity log. Log never fails the caller:
// write errors are logged and dropped.
type ActivityService interface {
	Log(ctx context.Context, entry ActivityEntry)
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]models.ActivityLog, error)
}

type activityService struct {
	repo repository.ActivityRepository
}

func NewActivityService(repo repository.ActivityRepository) ActivityService {
	return &activityService{repo: repo}
}

func (s *activityService) Log(ctx context.Context, entry ActivityEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), activityWriteTimeout)
	defer cancel()

	row := &models.ActivityLog{
		UserID:     entry.UserID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ProjectID:  entry.ProjectID,
		Details:    entry.Details,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		logger.L().Warn("activity log write failed",
			zap.String("action", entry.Action),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err),
		)
	}
}

func (s *activityService) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	return s.repo.ListByProject(ctx, projectID, limit)
}
