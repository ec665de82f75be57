package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/testutil"
	appErr "github.com/pagecraft/engine/pkg/errors"
)

func version(tpl *models.Template, n int) *models.TemplateVersion {
	return &models.TemplateVersion{
		TemplateID:  tpl.ID,
		Version:     n,
		StoragePath: fmt.Sprintf("%s/v%d", tpl.ID, n),
		UploadedBy:  uuid.New(),
	}
}

func TestRecordVersion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewTemplateRepository(db)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, db, nil, "")

	require.NoError(t, repo.RecordVersion(ctx, version(tpl, 1)))
	require.NoError(t, repo.RecordVersion(ctx, version(tpl, 2)))

	var got models.Template
	require.NoError(t, repo.GetByID(ctx, tpl.ID, &got))
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, tpl.ID.String()+"/v2", got.FilePath)

	err := repo.RecordVersion(ctx, version(tpl, 2))
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict), "duplicate version")

	versions, err := repo.ListVersions(ctx, tpl.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)

	var v models.TemplateVersion
	require.NoError(t, repo.GetVersion(ctx, tpl.ID, 1, &v))
	assert.Equal(t, 1, v.Version)
	assert.True(t, appErr.IsCode(repo.GetVersion(ctx, tpl.ID, 9, &v), appErr.CodeNotFound))
}

func TestRecordVersionRejectsStaleVersion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewTemplateRepository(db)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, db, nil, "")

	require.NoError(t, repo.RecordVersion(ctx, version(tpl, 3)))
	err := repo.RecordVersion(ctx, version(tpl, 2))
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))

	versions, err := repo.ListVersions(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1, "the stale version row is rolled back")
}

func TestClearBundleAndTransaction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewTemplateRepository(db)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, db, nil, "")
	require.NoError(t, repo.RecordVersion(ctx, version(tpl, 1)))

	require.NoError(t, repo.ClearBundle(ctx, tpl.ID))
	var got models.Template
	require.NoError(t, repo.GetBySlug(ctx, tpl.Slug, &got))
	assert.False(t, got.HasBundle())
	versions, err := repo.ListVersions(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
	assert.True(t, appErr.IsCode(repo.ClearBundle(ctx, uuid.New()), appErr.CodeNotFound))

	// a failing transaction leaves nothing behind
	err = repo.Transaction(ctx, func(tx TemplateRepository) error {
		if err := tx.Create(ctx, &models.Template{Slug: "tx-new", Name: "New"}); err != nil {
			return err
		}
		return tx.Create(ctx, &models.Template{Slug: tpl.Slug, Name: "Dup"})
	})
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))
	assert.True(t, appErr.IsCode(repo.GetBySlug(ctx, "tx-new", &got), appErr.CodeNotFound))
}

func TestTemplateList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewTemplateRepository(db)
	ctx := context.Background()
	testutil.SeedTemplate(t, db, nil, "")
	require.NoError(t, repo.Create(ctx, &models.Template{Slug: "portfolio", Name: "Portfolio", Category: "portfolio"}))

	all, err := repo.List(ctx, TemplateFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	drafts, err := repo.List(ctx, TemplateFilter{Status: models.TemplateStatusDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "portfolio", drafts[0].Slug)

	landing, err := repo.List(ctx, TemplateFilter{Category: "landing"})
	require.NoError(t, err)
	assert.Len(t, landing, 1)
}
