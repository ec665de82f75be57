package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/render"
	"github.com/pagecraft/engine/internal/repository"
	"github.com/pagecraft/engine/internal/storage"
	"github.com/pagecraft/engine/internal/testutil"
	appErr "github.com/pagecraft/engine/pkg/errors"
	"github.com/pagecraft/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.UseNop()
	os.Exit(m.Run())
}

type fixture struct {
	builder *Builder
	store   *storage.Storage
	tpl     *models.Template
	project *models.Project
}

func newFixture(t *testing.T, overrides map[string]any) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store, err := storage.New(t.TempDir(), 1<<20)
	require.NoError(t, err)

	schema := []models.SchemaField{{Key: "title", Label: "Title", Type: models.FieldText, Default: "Hello"}}
	tpl := testutil.SeedTemplate(t, db, schema, "")
	rel, err := store.Save(tpl.ID, 1, testutil.ZipBundle(t, map[string]string{
		"index.html":   `<html><head><link href="./css/site.css"></head><body><h1>{{config.title}}</h1><p>{{config.tagline}}</p></body></html>`,
		"css/site.css": "h1{color:red}",
	}))
	require.NoError(t, err)
	require.NoError(t, db.Model(tpl).Updates(map[string]any{"version": 1, "file_path": rel}).Error)

	project := testutil.SeedProject(t, db, tpl, overrides, models.DeployTargetNetlify)

	b := NewBuilder(repository.NewProjectRepository(db), repository.NewTemplateRepository(db), store, render.New(), nil)
	return &fixture{builder: b, store: store, tpl: tpl, project: project}
}

func TestBuildProjectAppliesOverrides(t *testing.T) {
	f := newFixture(t, map[string]any{"title": "My Site", "unknown": "ignored"})

	dir, err := f.builder.BuildProject(context.Background(), f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, f.store.BuildPath(f.project.ID), dir)

	html, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "My Site")
	assert.NotContains(t, string(html), "Hello")
	assert.NotContains(t, string(html), "{{")
	assert.Contains(t, string(html), `href="./css/site.css"`, "deploy builds keep relative assets")

	css, err := os.ReadFile(filepath.Join(dir, "css", "site.css"))
	require.NoError(t, err)
	assert.Equal(t, "h1{color:red}", string(css))
}

func TestBuildProjectIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string]any{"title": "My Site"})
	ctx := context.Background()

	dir, err := f.builder.BuildProject(ctx, f.project.ID)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("x"), 0o644))

	dir2, err := f.builder.BuildProject(ctx, f.project.ID)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir2, "index.html"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NoFileExists(t, filepath.Join(dir2, "stale.txt"))

	entries, err := os.ReadDir(filepath.Join(f.store.Root(), "builds"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBuildProjectUsesDefaultsWithoutOverrides(t *testing.T) {
	f := newFixture(t, nil)

	dir, err := f.builder.BuildProject(context.Background(), f.project.ID)
	require.NoError(t, err)
	html, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Hello</h1>")
	assert.Contains(t, string(html), "<p></p>")
}

func TestBuildProjectErrors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store, err := storage.New(t.TempDir(), 0)
	require.NoError(t, err)
	b := NewBuilder(repository.NewProjectRepository(db), repository.NewTemplateRepository(db), store, render.New(), nil)
	ctx := context.Background()

	_, err = b.BuildProject(ctx, uuid.New())
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	empty := testutil.SeedTemplate(t, db, nil, "")
	project := testutil.SeedProject(t, db, empty, nil, models.DeployTargetNone)
	_, err = b.BuildProject(ctx, project.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalidState))
	assert.NoDirExists(t, store.BuildPath(project.ID))
}

func TestBuildProjectWithoutRootDocument(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store, err := storage.New(t.TempDir(), 1<<20)
	require.NoError(t, err)

	tpl := testutil.SeedTemplate(t, db, nil, "")
	rel, err := store.Save(tpl.ID, 1, testutil.ZipBundle(t, map[string]string{"about.html": "{{config.x}}"}))
	require.NoError(t, err)
	require.NoError(t, db.Model(tpl).Updates(map[string]any{"version": 1, "file_path": rel}).Error)
	project := testutil.SeedProject(t, db, tpl, nil, models.DeployTargetNone)

	b := NewBuilder(repository.NewProjectRepository(db), repository.NewTemplateRepository(db), store, render.New(), nil)
	dir, err := b.BuildProject(context.Background(), project.ID)
	require.NoError(t, err)

	body, err := os.ReadFile(filepath.Join(dir, "about.html"))
	require.NoError(t, err)
	assert.Equal(t, "{{config.x}}", string(body), "only the root document is rendered")
}

func TestPreviewProjectRewritesAssets(t *testing.T) {
	f := newFixture(t, map[string]any{"title": "Preview"})

	html, err := f.builder.PreviewProject(context.Background(), f.project.ID, "http://localhost:8080/assets/templates/x/v1")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Preview</h1>")
	assert.Contains(t, html, `href="http://localhost:8080/assets/templates/x/v1/css/site.css"`)
	assert.NoDirExists(t, f.store.BuildPath(f.project.ID))
}
