package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pagecraft/engine/internal/models"
	appErr "github.com/pagecraft/engine/pkg/errors"
)

// DeploymentRepository persists deployment records. Status changes are
// conditional on the current status so a record only ever moves forward
// through pending -> building -> success|failed.
type DeploymentRepository interface {
	BaseRepository[models.Deployment]
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]models.Deployment, error)
	GetLatestByProject(ctx context.Context, projectID uuid.UUID, dest *models.Deployment) error
	MarkBuilding(ctx context.Context, deploymentID uuid.UUID) error
	Complete(ctx context.Context, deploymentID uuid.UUID, outcome Outcome) error
	Fail(ctx context.Context, deploymentID uuid.UUID, outcome Outcome) error
}

// Outcome is what a terminal transition records.
type Outcome struct {
	DeployURL string
	BuildTime int64
	Metadata  datatypes.JSONMap
	Logs      string
}

type deploymentRepository struct {
	BaseRepository[models.Deployment]
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) DeploymentRepository {
	return &deploymentRepository{BaseRepository: NewBaseRepository[models.Deployment](db, "deployment"), db: db}
}

func (r *deploymentRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]models.Deployment, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Deployment
	if err := q.Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list deployments failed")
	}
	return out, nil
}

func (r *deploymentRepository) GetLatestByProject(ctx context.Context, projectID uuid.UUID, dest *models.Deployment) error {
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC").First(dest).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "no deployments found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get latest deployment failed")
	}
	return nil
}

func (r *deploymentRepository) MarkBuilding(ctx context.Context, deploymentID uuid.UUID) error {
	return r.transition(ctx, deploymentID,
		[]models.DeploymentStatus{models.DeploymentPending},
		map[string]any{"status": models.DeploymentBuilding})
}

func (r *deploymentRepository) Complete(ctx context.Context, deploymentID uuid.UUID, outcome Outcome) error {
	return r.transition(ctx, deploymentID,
		[]models.DeploymentStatus{models.DeploymentBuilding},
		map[string]any{
			"status":     models.DeploymentSuccess,
			"deploy_url": outcome.DeployURL,
			"build_time": outcome.BuildTime,
			"metadata":   outcome.Metadata,
			"logs":       outcome.Logs,
		})
}

func (r *deploymentRepository) Fail(ctx context.Context, deploymentID uuid.UUID, outcome Outcome) error {
	return r.transition(ctx, deploymentID,
		[]models.DeploymentStatus{models.DeploymentPending, models.DeploymentBuilding},
		map[string]any{
			"status":     models.DeploymentFailed,
			"build_time": outcome.BuildTime,
			"metadata":   outcome.Metadata,
			"logs":       outcome.Logs,
		})
}

func (r *deploymentRepository) transition(ctx context.Context, id uuid.UUID, from []models.DeploymentStatus, cols map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Deployment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(cols)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update deployment status failed")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var current models.Deployment
	if err := r.db.WithContext(ctx).Select("status").First(&current, "id = ?", id).Error; err != nil {
		return notFoundOr(err, "deployment")
	}
	return appErr.Newf(appErr.CodeInvalidState, "deployment is %s", current.Status).
		WithMeta("target", cols["status"])
}
