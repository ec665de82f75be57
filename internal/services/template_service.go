package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagecraft/engine/internal/lock"
	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/repository"
	"github.com/pagecraft/engine/internal/storage"
	appErr "github.com/pagecraft/engine/pkg/errors"
	"github.com/pagecraft/engine/pkg/logger"
	"github.com/pagecraft/engine/pkg/utils"
)

type TemplateService interface {
	CreateTemplate(ctx context.Context, input *CreateTemplateInput) (*models.Template, error)
	GetTemplate(ctx context.Context, templateID uuid.UUID) (*models.Template, error)
	ListTemplates(ctx context.Context, filter repository.TemplateFilter) ([]models.Template, error)

	// UploadBundle stores bundle as the next version of the template.
	UploadBundle(ctx context.Context, templateID, userID uuid.UUID, bundle []byte) (*models.TemplateVersion, error)
	// Clone copies a template's metadata and current bundle under a new slug.
	Clone(ctx context.Context, templateID, userID uuid.UUID, input *CloneTemplateInput) (*models.Template, error)
	// DeleteFiles removes every stored version of the bundle.
	DeleteFiles(ctx context.Context, templateID, userID uuid.UUID) error
	ListVersions(ctx context.Context, templateID uuid.UUID) ([]models.TemplateVersion, error)
	// ListFiles lists a stored version; version 0 means the current one.
	ListFiles(ctx context.Context, templateID uuid.UUID, version int) ([]string, error)
}

type CreateTemplateInput struct {
	Slug         string               `validate:"required,max=128"`
	Name         string               `validate:"required,max=255"`
	Category     string               `validate:"max=64"`
	ConfigSchema []models.SchemaField `validate:"dive"`
}

type CloneTemplateInput struct {
	Slug string `validate:"required,max=128"`
	Name string `validate:"required,max=255"`
}

type templateService struct {
	templateRepo repository.TemplateRepository
	storage      *storage.Storage
	locker       lock.Locker
	activity     ActivityService
	validate     *validator.Validate
}

func NewTemplateService(templateRepo repository.TemplateRepository, store *storage.Storage, locker lock.Locker, activity ActivityService) TemplateService {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	return &templateService{
		templateRepo: templateRepo,
		storage:      store,
		locker:       locker,
		activity:     activity,
		validate:     validator.New(),
	}
}

var _ TemplateService = (*templateService)(nil)

func (s *templateService) CreateTemplate(ctx context.Context, input *CreateTemplateInput) (*models.Template, error) {
	logger.L().Info("create template", zap.String("slug", input.Slug))

	if err := s.validate.Struct(input); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid template")
	}
	if err := checkSchema(input.ConfigSchema); err != nil {
		return nil, err
	}
	t := &models.Template{
		Slug:         input.Slug,
		Name:         input.Name,
		Category:     input.Category,
		ConfigSchema: input.ConfigSchema,
	}
	if err := s.templateRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *templateService) GetTemplate(ctx context.Context, templateID uuid.UUID) (*models.Template, error) {
	var t models.Template
	if err := s.templateRepo.GetByID(ctx, templateID, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *templateService) ListTemplates(ctx context.Context, filter repository.TemplateFilter) ([]models.Template, error) {
	return s.templateRepo.List(ctx, filter)
}

func (s *templateService) UploadBundle(ctx context.Context, templateID, userID uuid.UUID, bundle []byte) (*models.TemplateVersion, error) {
	log := logger.L().With(zap.String("template_id", templateID.String()), zap.String("user_id", userID.String()))
	log.Info("upload template bundle", zap.String("size", utils.FormatBytes(int64(len(bundle)))))

	release, err := s.locker.Acquire(ctx, templateLockKey(templateID))
	if err != nil {
		return nil, err
	}
	defer release()

	t, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	next := t.Version + 1

	rel, err := s.storage.Save(templateID, next, bundle)
	if err != nil {
		return nil, err
	}
	files, size, err := utils.DirectoryStats(s.storage.GetAbsolutePath(rel))
	if err != nil {
		_ = s.storage.RemoveVersion(templateID, next)
		return nil, appErr.Wrap(err, appErr.CodeStorage, "inspect extracted bundle failed")
	}

	v := &models.TemplateVersion{
		TemplateID:  templateID,
		Version:     next,
		StoragePath: rel,
		FileCount:   files,
		SizeBytes:   size,
		Checksum:    utils.SumSHA256Hex(bundle),
		UploadedBy:  userID,
	}
	if err := s.templateRepo.RecordVersion(ctx, v); err != nil {
		// on conflict the directory belongs to whoever recorded the version
		if !appErr.IsCode(err, appErr.CodeConflict) {
			_ = s.storage.RemoveVersion(templateID, next)
		}
		return nil, err
	}

	log.Info("template bundle stored", zap.Int("version", next), zap.Int("files", files), zap.Int64("bytes", size))
	s.log(ctx, userID, ActionUploadTemplate, templateID, map[string]any{
		"version":    next,
		"file_count": files,
		"size_bytes": size,
		"checksum":   v.Checksum,
	})
	return v, nil
}

func (s *templateService) Clone(ctx context.Context, templateID, userID uuid.UUID, input *CloneTemplateInput) (*models.Template, error) {
	log := logger.L().With(zap.String("template_id", templateID.String()), zap.String("user_id", userID.String()))
	log.Info("clone template", zap.String("slug", input.Slug))

	if err := s.validate.Struct(input); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid clone request")
	}
	src, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	clone := &models.Template{
		ID:           uuid.New(),
		Slug:         input.Slug,
		Name:         input.Name,
		Category:     src.Category,
		ConfigSchema: src.ConfigSchema,
		Status:       models.TemplateStatusDraft,
	}

	// files first: a failed copy leaves no metadata behind, and a failed
	// metadata write removes the copied files
	var version *models.TemplateVersion
	if src.HasBundle() {
		rel, err := s.storage.CopyVersion(src.ID, src.Version, clone.ID, 1)
		if err != nil {
			return nil, err
		}
		files, size, err := utils.DirectoryStats(s.storage.GetAbsolutePath(rel))
		if err != nil {
			_ = s.storage.Delete(clone.ID)
			return nil, appErr.Wrap(err, appErr.CodeStorage, "inspect cloned bundle failed")
		}
		version = &models.TemplateVersion{
			TemplateID:  clone.ID,
			Version:     1,
			StoragePath: rel,
			FileCount:   files,
			SizeBytes:   size,
			UploadedBy:  userID,
		}
		var srcVersion models.TemplateVersion
		if err := s.templateRepo.GetVersion(ctx, src.ID, src.Version, &srcVersion); err == nil {
			version.Checksum = srcVersion.Checksum
		}
	}

	err = s.templateRepo.Transaction(ctx, func(repo repository.TemplateRepository) error {
		if err := repo.Create(ctx, clone); err != nil {
			return err
		}
		if version == nil {
			return nil
		}
		if err := repo.RecordVersion(ctx, version); err != nil {
			return err
		}
		clone.Version = version.Version
		clone.FilePath = version.StoragePath
		return nil
	})
	if err != nil {
		if cleanupErr := s.storage.Delete(clone.ID); cleanupErr != nil {
			log.Error("remove cloned files failed", zap.Error(cleanupErr))
		}
		return nil, err
	}

	log.Info("template cloned", zap.String("clone_id", clone.ID.String()))
	s.log(ctx, userID, ActionCloneTemplate, clone.ID, map[string]any{
		"source_id":      src.ID.String(),
		"source_version": src.Version,
	})
	return clone, nil
}

func (s *templateService) DeleteFiles(ctx context.Context, templateID, userID uuid.UUID) error {
	logger.L().Info("delete template files", zap.String("template_id", templateID.String()), zap.String("user_id", userID.String()))

	release, err := s.locker.Acquire(ctx, templateLockKey(templateID))
	if err != nil {
		return err
	}
	defer release()

	if err := s.templateRepo.ClearBundle(ctx, templateID); err != nil {
		return err
	}
	if err := s.storage.Delete(templateID); err != nil {
		return err
	}
	s.log(ctx, userID, ActionDeleteTemplateFiles, templateID, nil)
	return nil
}

func (s *templateService) ListVersions(ctx context.Context, templateID uuid.UUID) ([]models.TemplateVersion, error) {
	if _, err := s.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	return s.templateRepo.ListVersions(ctx, templateID)
}

func (s *templateService) ListFiles(ctx context.Context, templateID uuid.UUID, version int) ([]string, error) {
	t, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		if !t.HasBundle() {
			return nil, appErr.New(appErr.CodeInvalidState, "template has no uploaded bundle")
		}
		version = t.Version
	}
	return s.storage.ListFiles(templateID, version)
}

func (s *templateService) log(ctx context.Context, userID uuid.UUID, action string, templateID uuid.UUID, details map[string]any) {
	if s.activity == nil {
		return
	}
	s.activity.Log(ctx, ActivityEntry{
		UserID:     userID,
		Action:     action,
		EntityType: EntityTemplate,
		EntityID:   templateID.String(),
		Details:    details,
	})
}

func templateLockKey(id uuid.UUID) string { return "template:" + id.String() }

// checkSchema enforces what struct tags cannot: unique keys and options for
// select fields.
func checkSchema(schema []models.SchemaField) error {
	seen := make(map[string]bool, len(schema))
	for _, f := range schema {
		if seen[f.Key] {
			return appErr.New(appErr.CodeInvalid, fmt.Sprintf("duplicate schema key %q", f.Key))
		}
		seen[f.Key] = true
		if f.Type == models.FieldSelect && len(f.Options) == 0 {
			return appErr.New(appErr.CodeInvalid, fmt.Sprintf("select field %q needs options", f.Key))
		}
	}
	return nil
}
