//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/pkg/database"
	appErr "github.com/pagecraft/engine/pkg/errors"
)

func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pagecraft"),
		postgres.WithUsername("pagecraft"),
		postgres.WithPassword("pagecraft"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := database.Open(ctx, database.Options{Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestPostgresConstraints(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	templates := NewTemplateRepository(db)

	tpl := &models.Template{Slug: "landing", Name: "Landing"}
	require.NoError(t, templates.Create(ctx, tpl))
	err := templates.Create(ctx, &models.Template{Slug: "landing", Name: "Again"})
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict), "unique violation maps to conflict")

	v := &models.TemplateVersion{TemplateID: tpl.ID, Version: 1, StoragePath: tpl.ID.String() + "/v1", UploadedBy: uuid.New()}
	require.NoError(t, templates.RecordVersion(ctx, v))
	dup := &models.TemplateVersion{TemplateID: tpl.ID, Version: 1, StoragePath: tpl.ID.String() + "/v1", UploadedBy: uuid.New()}
	assert.True(t, appErr.IsCode(templates.RecordVersion(ctx, dup), appErr.CodeConflict))

	projects := NewProjectRepository(db)
	p := &models.Project{Slug: "acme", Name: "Acme", TemplateID: tpl.ID, DeployTarget: models.DeployTargetNetlify}
	require.NoError(t, projects.Create(ctx, p))

	deployments := NewDeploymentRepository(db)
	d := &models.Deployment{ProjectID: p.ID, Version: "v1", DeployTarget: models.DeployTargetNetlify}
	require.NoError(t, deployments.Create(ctx, d))
	require.NoError(t, deployments.MarkBuilding(ctx, d.ID))
	require.NoError(t, deployments.Complete(ctx, d.ID, Outcome{DeployURL: "https://acme.netlify.app"}))
	assert.True(t, appErr.IsCode(deployments.MarkBuilding(ctx, d.ID), appErr.CodeInvalidState))
}
