// Package build materializes project build directories from template bundles.
package build

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagecraft/engine/internal/metrics"
	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/render"
	"github.com/pagecraft/engine/internal/repository"
	"github.com/pagecraft/engine/internal/storage"
	appErr "github.com/pagecraft/engine/pkg/errors"
	"github.com/pagecraft/engine/pkg/logger"
)

// Builder composes storage, config resolution and rendering. It only reads
// from the database; every write goes to the project's build directory.
type Builder struct {
	projects  repository.ProjectRepository
	templates repository.TemplateRepository
	storage   *storage.Storage
	renderer  *render.Renderer
	metrics   *metrics.Metrics
}

func NewBuilder(projects repository.ProjectRepository, templates repository.TemplateRepository, store *storage.Storage, renderer *render.Renderer, m *metrics.Metrics) *Builder {
	return &Builder{
		projects:  projects,
		templates: templates,
		storage:   store,
		renderer:  renderer,
		metrics:   m,
	}
}

// BuildProject writes a clean, rendered copy of the project's template into
// builds/{projectID} and returns its absolute path. A previous build for the
// project is removed first.
func (b *Builder) BuildProject(ctx context.Context, projectID uuid.UUID) (dir string, err error) {
	start := time.Now()
	defer func() { b.metrics.ObserveBuild(time.Since(start), err) }()

	project, tpl, err := b.loadSources(ctx, projectID)
	if err != nil {
		return "", err
	}
	src := b.storage.GetAbsolutePath(tpl.FilePath)

	dir, err = b.storage.PrepareBuildDir(projectID)
	if err != nil {
		return "", err
	}
	if err := b.storage.CopyDir(src, dir); err != nil {
		return "", err
	}

	config := Merge(ResolveDefaults(tpl.ConfigSchema), project.Config)

	docPath := filepath.Join(dir, render.RootDocument)
	if _, statErr := os.Stat(docPath); statErr == nil {
		html, err := b.renderer.Render(dir, config, "")
		if err != nil {
			return "", err
		}
		if err := b.storage.WriteFile(docPath, []byte(html)); err != nil {
			return "", err
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return "", appErr.Wrap(statErr, appErr.CodeStorage, "stat root document failed")
	}

	logger.L().Info("project built",
		zap.String("project_id", projectID.String()),
		zap.String("template_id", tpl.ID.String()),
		zap.Int("template_version", tpl.Version),
		zap.Duration("took", time.Since(start)),
	)
	return dir, nil
}

// PreviewProject renders the template's stored root document with the
// project's config, rewriting relative assets against assetBaseURL. Nothing
// is written to disk.
func (b *Builder) PreviewProject(ctx context.Context, projectID uuid.UUID, assetBaseURL string) (string, error) {
	project, tpl, err := b.loadSources(ctx, projectID)
	if err != nil {
		return "", err
	}
	config := Merge(ResolveDefaults(tpl.ConfigSchema), project.Config)
	return b.renderer.Render(b.storage.GetAbsolutePath(tpl.FilePath), config, assetBaseURL)
}

func (b *Builder) loadSources(ctx context.Context, projectID uuid.UUID) (*models.Project, *models.Template, error) {
	var project models.Project
	if err := b.projects.GetByID(ctx, projectID, &project); err != nil {
		return nil, nil, err
	}
	var tpl models.Template
	if err := b.templates.GetByID(ctx, project.TemplateID, &tpl); err != nil {
		return nil, nil, err
	}
	if !tpl.HasBundle() {
		return nil, nil, appErr.New(appErr.CodeInvalidState, "template has no uploaded bundle").
			WithMeta("template_id", tpl.ID.String())
	}
	return &project, &tpl, nil
}
