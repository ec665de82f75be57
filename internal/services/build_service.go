package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagecraft/engine/internal/build"
	"github.com/pagecraft/engine/internal/lock"
	"github.com/pagecraft/engine/pkg/logger"
)

// BuildService exposes builds and previews outside of a deployment. Builds
// share the project lock with deployments so they never race on the same
// build directory.
type BuildService interface {
	BuildProject(ctx context.Context, projectID uuid.UUID) (string, error)
	PreviewProject(ctx context.Context, projectID uuid.UUID, assetBaseURL string) (string, error)
}

type buildService struct {
	builder *build.Builder
	locker  lock.Locker
}

func NewBuildService(builder *build.Builder, locker lock.Locker) BuildService {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	return &buildService{builder: builder, locker: locker}
}

func (s *buildService) BuildProject(ctx context.Context, projectID uuid.UUID) (string, error) {
	logger.L().Info("build project", zap.String("project_id", projectID.String()))

	release, err := s.locker.Acquire(ctx, ProjectLockKey(projectID))
	if err != nil {
		return "", err
	}
	defer release()
	return s.builder.BuildProject(context.WithoutCancel(ctx), projectID)
}

func (s *buildService) PreviewProject(ctx context.Context, projectID uuid.UUID, assetBaseURL string) (string, error) {
	return s.builder.PreviewProject(ctx, projectID, assetBaseURL)
}
