package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/services"
	appErr "github.com/pagecraft/engine/pkg/errors"
	"github.com/pagecraft/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.UseNop()
	os.Exit(m.Run())
}

type mockDeploymentService struct {
	mock.Mock
}

func (m *mockDeploymentService) TriggerDeploy(ctx context.Context, projectID, userID uuid.UUID) (*models.Deployment, error) {
	args := m.Called(ctx, projectID, userID)
	if v := args.Get(0); v != nil {
		return v.(*models.Deployment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeploymentService) EnqueueDeploy(ctx context.Context, projectID, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, projectID, userID)
	return args.String(0), args.Error(1)
}

func (m *mockDeploymentService) GetDeployment(ctx context.Context, deploymentID uuid.UUID) (*models.Deployment, error) {
	args := m.Called(ctx, deploymentID)
	if v := args.Get(0); v != nil {
		return v.(*models.Deployment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeploymentService) ListDeployments(ctx context.Context, projectID uuid.UUID, limit int) ([]models.Deployment, error) {
	args := m.Called(ctx, projectID, limit)
	if v := args.Get(0); v != nil {
		return v.([]models.Deployment), args.Error(1)
	}
	return nil, args.Error(1)
}

func deployTask(t *testing.T, projectID, userID string) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(services.DeployTaskPayload{ProjectID: projectID, UserID: userID})
	require.NoError(t, err)
	return asynq.NewTask(services.TaskTriggerDeploy, b)
}

func TestDeployTaskHandler_HandleDeploy(t *testing.T) {
	projectID := uuid.New()
	userID := uuid.New()

	t.Run("successful deploy", func(t *testing.T) {
		svc := &mockDeploymentService{}
		handler := NewDeployTaskHandler(svc)

		svc.On("TriggerDeploy", mock.Anything, projectID, userID).Return(&models.Deployment{
			ID:        uuid.New(),
			ProjectID: projectID,
			Status:    models.DeploymentSuccess,
			DeployURL: "https://acme.netlify.app",
		}, nil).Once()

		require.NoError(t, handler.HandleDeploy(context.Background(), deployTask(t, projectID.String(), userID.String())))
		svc.AssertExpectations(t)
	})

	t.Run("failed attempt is not retried", func(t *testing.T) {
		svc := &mockDeploymentService{}
		handler := NewDeployTaskHandler(svc)

		cause := appErr.New(appErr.CodeDeploy, "netlify: rejected")
		svc.On("TriggerDeploy", mock.Anything, projectID, userID).Return(&models.Deployment{
			ID:     uuid.New(),
			Status: models.DeploymentFailed,
		}, cause).Once()

		err := handler.HandleDeploy(context.Background(), deployTask(t, projectID.String(), userID.String()))
		require.Error(t, err)
		assert.True(t, errors.Is(err, asynq.SkipRetry))
		assert.Contains(t, err.Error(), "netlify: rejected")
		svc.AssertExpectations(t)
	})

	t.Run("validation failure without a record", func(t *testing.T) {
		svc := &mockDeploymentService{}
		handler := NewDeployTaskHandler(svc)

		svc.On("TriggerDeploy", mock.Anything, projectID, userID).
			Return(nil, appErr.New(appErr.CodeNotFound, "project not found")).Once()

		err := handler.HandleDeploy(context.Background(), deployTask(t, projectID.String(), userID.String()))
		assert.True(t, errors.Is(err, asynq.SkipRetry))
		svc.AssertExpectations(t)
	})

	t.Run("malformed payload", func(t *testing.T) {
		svc := &mockDeploymentService{}
		handler := NewDeployTaskHandler(svc)

		err := handler.HandleDeploy(context.Background(), asynq.NewTask(services.TaskTriggerDeploy, []byte("{")))
		assert.True(t, errors.Is(err, asynq.SkipRetry))

		err = handler.HandleDeploy(context.Background(), deployTask(t, "not-a-uuid", userID.String()))
		assert.True(t, errors.Is(err, asynq.SkipRetry))

		err = handler.HandleDeploy(context.Background(), deployTask(t, projectID.String(), ""))
		assert.True(t, errors.Is(err, asynq.SkipRetry))

		svc.AssertNotCalled(t, "TriggerDeploy", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDeployTaskHandler_Register(t *testing.T) {
	svc := &mockDeploymentService{}
	handler := NewDeployTaskHandler(svc)
	mux := asynq.NewServeMux()
	handler.Register(mux)

	projectID := uuid.New()
	userID := uuid.New()
	svc.On("TriggerDeploy", mock.Anything, projectID, userID).Return(&models.Deployment{ID: uuid.New()}, nil).Once()

	require.NoError(t, mux.ProcessTask(context.Background(), deployTask(t, projectID.String(), userID.String())))
	svc.AssertExpectations(t)
}
