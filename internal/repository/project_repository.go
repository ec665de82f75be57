package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pagecraft/engine/internal/models"
	appErr "github.com/pagecraft/engine/pkg/errors"
)

type ProjectRepository interface {
	BaseRepository[models.Project]
	List(ctx context.Context, filter ProjectFilter) ([]models.Project, error)
	UpdateConfig(ctx context.Context, projectID uuid.UUID, config datatypes.JSONMap) error
	UpdateStatus(ctx context.Context, projectID uuid.UUID, status models.ProjectStatus) error
	// MarkDeployed stores the live URL and moves the project to deployed.
	MarkDeployed(ctx context.Context, projectID uuid.UUID, url string) error
	CountByTemplate(ctx context.Context, templateID uuid.UUID) (int64, error)
}

// ProjectFilter narrows List. Zero values match everything.
type ProjectFilter struct {
	ClientID   uuid.UUID
	TemplateID uuid.UUID
	Status     models.ProjectStatus
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db, "project"), db: db}
}

func (r *projectRepository) List(ctx context.Context, filter ProjectFilter) ([]models.Project, error) {
	q := r.db.WithContext(ctx).Model(&models.Project{})
	if filter.ClientID != uuid.Nil {
		q = q.Where("client_id = ?", filter.ClientID)
	}
	if filter.TemplateID != uuid.Nil {
		q = q.Where("template_id = ?", filter.TemplateID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var out []models.Project
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list projects failed")
	}
	return out, nil
}

func (r *projectRepository) UpdateConfig(ctx context.Context, projectID uuid.UUID, config datatypes.JSONMap) error {
	return r.updateColumns(ctx, projectID, map[string]any{"config": config}, "update project config failed")
}

func (r *projectRepository) UpdateStatus(ctx context.Context, projectID uuid.UUID, status models.ProjectStatus) error {
	return r.updateColumns(ctx, projectID, map[string]any{"status": status}, "update project status failed")
}

func (r *projectRepository) MarkDeployed(ctx context.Context, projectID uuid.UUID, url string) error {
	return r.updateColumns(ctx, projectID, map[string]any{
		"deploy_url": url,
		"status":     models.ProjectStatusDeployed,
	}, "mark project deployed failed")
}

func (r *projectRepository) CountByTemplate(ctx context.Context, templateID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Project{}).Where("template_id = ?", templateID).Count(&n).Error; err != nil {
		return 0, appErr.Wrap(err, appErr.CodeInternal, "count projects failed")
	}
	return n, nil
}

func (r *projectRepository) updateColumns(ctx context.Context, projectID uuid.UUID, cols map[string]any, msg string) error {
	res := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Updates(cols)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, msg)
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "project not found")
	}
	return nil
}
