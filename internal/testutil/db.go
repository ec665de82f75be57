// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/pkg/database"
)

// SetupTestDB opens a migrated SQLite database under t.TempDir.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.Options{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedTemplate inserts a template whose bundle lives at storagePath.
func SeedTemplate(t *testing.T, db *gorm.DB, schema []models.SchemaField, storagePath string) *models.Template {
	t.Helper()
	tpl := &models.Template{
		Slug:         "tpl-" + uuid.NewString()[:8],
		Name:         "Landing",
		Category:     "landing",
		ConfigSchema: schema,
		Status:       models.TemplateStatusActive,
	}
	if storagePath != "" {
		tpl.Version = 1
		tpl.FilePath = storagePath
	}
	require.NoError(t, db.Create(tpl).Error)
	return tpl
}

// SeedProject inserts a project on top of tpl.
func SeedProject(t *testing.T, db *gorm.DB, tpl *models.Template, config map[string]any, target models.DeployTarget) *models.Project {
	t.Helper()
	p := &models.Project{
		Slug:         "site-" + uuid.NewString()[:8],
		Name:         "Client Site",
		ClientID:     uuid.New(),
		TemplateID:   tpl.ID,
		Config:       config,
		DeployTarget: target,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
