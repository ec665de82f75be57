package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/testutil"
	appErr "github.com/pagecraft/engine/pkg/errors"
)

func seedDeployment(t *testing.T, db *gorm.DB, repo DeploymentRepository) *models.Deployment {
	t.Helper()
	tpl := testutil.SeedTemplate(t, db, nil, "")
	p := testutil.SeedProject(t, db, tpl, nil, models.DeployTargetNetlify)
	d := &models.Deployment{
		ProjectID:    p.ID,
		Version:      "v1",
		DeployTarget: models.DeployTargetNetlify,
		DeployedBy:   uuid.New(),
	}
	require.NoError(t, repo.Create(context.Background(), d))
	return d
}

func TestDeploymentTransitions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewDeploymentRepository(db)
	ctx := context.Background()
	d := seedDeployment(t, db, repo)
	assert.Equal(t, models.DeploymentPending, d.Status)

	err := repo.Complete(ctx, d.ID, Outcome{DeployURL: "https://x"})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalidState), "pending cannot complete")

	require.NoError(t, repo.MarkBuilding(ctx, d.ID))
	assert.True(t, appErr.IsCode(repo.MarkBuilding(ctx, d.ID), appErr.CodeInvalidState))

	require.NoError(t, repo.Complete(ctx, d.ID, Outcome{
		DeployURL: "https://x.netlify.app",
		BuildTime: 120,
		Metadata:  datatypes.JSONMap{"site_id": "s1"},
		Logs:      "ok",
	}))

	var got models.Deployment
	require.NoError(t, repo.GetByID(ctx, d.ID, &got))
	assert.Equal(t, models.DeploymentSuccess, got.Status)
	assert.Equal(t, "https://x.netlify.app", got.DeployURL)
	assert.Equal(t, int64(120), got.BuildTime)
	assert.Equal(t, "s1", got.Metadata["site_id"])

	err = repo.Fail(ctx, d.ID, Outcome{Logs: "late"})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalidState), "terminal states are final")

	err = repo.MarkBuilding(ctx, uuid.New())
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestDeploymentFailFromPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewDeploymentRepository(db)
	ctx := context.Background()
	d := seedDeployment(t, db, repo)

	require.NoError(t, repo.Fail(ctx, d.ID, Outcome{BuildTime: 3, Metadata: datatypes.JSONMap{"stage": "start"}, Logs: "boom"}))

	var got models.Deployment
	require.NoError(t, repo.GetByID(ctx, d.ID, &got))
	assert.Equal(t, models.DeploymentFailed, got.Status)
	assert.True(t, got.Status.Terminal())
	assert.Equal(t, "boom", got.Logs)
	assert.Empty(t, got.DeployURL)
}

func TestDeploymentListAndLatest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewDeploymentRepository(db)
	ctx := context.Background()
	d := seedDeployment(t, db, repo)

	var latest models.Deployment
	require.NoError(t, repo.GetLatestByProject(ctx, d.ProjectID, &latest))
	assert.Equal(t, d.ID, latest.ID)

	list, err := repo.ListByProject(ctx, d.ProjectID, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	err = repo.GetLatestByProject(ctx, uuid.New(), &latest)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}
