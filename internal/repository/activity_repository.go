package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pagecraft/engine/internal/models"
	appErr "github.com/pagecraft/engine/pkg/errors"
)

type ActivityRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]models.ActivityLog, error)
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create activity log failed")
	}
	return nil
}

func (r *activityRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.ActivityLog
	if err := q.Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list activity failed")
	}
	return out, nil
}
