package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pagecraft/engine/internal/models"
	appErr "github.com/pagecraft/engine/pkg/errors"
)

type TemplateRepository interface {
	BaseRepository[models.Template]
	GetBySlug(ctx context.Context, slug string, dest *models.Template) error
	List(ctx context.Context, filter TemplateFilter) ([]models.Template, error)
	// RecordVersion stores v and points the template at it in one transaction.
	RecordVersion(ctx context.Context, v *models.TemplateVersion) error
	ListVersions(ctx context.Context, templateID uuid.UUID) ([]models.TemplateVersion, error)
	GetVersion(ctx context.Context, templateID uuid.UUID, version int, dest *models.TemplateVersion) error
	// ClearBundle forgets every stored version of a template.
	ClearBundle(ctx context.Context, templateID uuid.UUID) error
	Transaction(ctx context.Context, fn func(repo TemplateRepository) error) error
}

// TemplateFilter narrows List. Zero values match everything.
type TemplateFilter struct {
	Category string
	Status   models.TemplateStatus
}

type templateRepository struct {
	BaseRepository[models.Template]
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{BaseRepository: NewBaseRepository[models.Template](db, "template"), db: db}
}

func (r *templateRepository) GetBySlug(ctx context.Context, slug string, dest *models.Template) error {
	if err := r.db.WithContext(ctx).First(dest, "slug = ?", slug).Error; err != nil {
		return notFoundOr(err, "template")
	}
	return nil
}

func (r *templateRepository) List(ctx context.Context, filter TemplateFilter) ([]models.Template, error) {
	q := r.db.WithContext(ctx).Model(&models.Template{})
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var out []models.Template
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list templates failed")
	}
	return out, nil
}

func (r *templateRepository) RecordVersion(ctx context.Context, v *models.TemplateVersion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(v).Error; err != nil {
			if isDuplicate(err) {
				return appErr.Wrap(err, appErr.CodeConflict, "template version already exists").
					WithMeta("version", v.Version)
			}
			return appErr.Wrap(err, appErr.CodeInternal, "create template version failed")
		}
		res := tx.Model(&models.Template{}).
			Where("id = ? AND version < ?", v.TemplateID, v.Version).
			Updates(map[string]any{"version": v.Version, "file_path": v.StoragePath})
		if res.Error != nil {
			return appErr.Wrap(res.Error, appErr.CodeInternal, "update template version failed")
		}
		if res.RowsAffected == 0 {
			return appErr.New(appErr.CodeConflict, "template moved past this version").
				WithMeta("version", v.Version)
		}
		return nil
	})
}

func (r *templateRepository) ListVersions(ctx context.Context, templateID uuid.UUID) ([]models.TemplateVersion, error) {
	var out []models.TemplateVersion
	if err := r.db.WithContext(ctx).Where("template_id = ?", templateID).Order("version DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list template versions failed")
	}
	return out, nil
}

func (r *templateRepository) GetVersion(ctx context.Context, templateID uuid.UUID, version int, dest *models.TemplateVersion) error {
	if err := r.db.WithContext(ctx).First(dest, "template_id = ? AND version = ?", templateID, version).Error; err != nil {
		return notFoundOr(err, "template version")
	}
	return nil
}

func (r *templateRepository) ClearBundle(ctx context.Context, templateID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", templateID).Delete(&models.TemplateVersion{}).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "delete template versions failed")
		}
		res := tx.Model(&models.Template{}).Where("id = ?", templateID).
			Updates(map[string]any{"version": 0, "file_path": ""})
		if res.Error != nil {
			return appErr.Wrap(res.Error, appErr.CodeInternal, "clear template bundle failed")
		}
		if res.RowsAffected == 0 {
			return appErr.New(appErr.CodeNotFound, "template not found")
		}
		return nil
	})
}

func (r *templateRepository) Transaction(ctx context.Context, fn func(repo TemplateRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewTemplateRepository(tx))
	})
}
