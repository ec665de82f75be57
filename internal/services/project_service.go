package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/pagecraft/engine/internal/build"
	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/repository"
	appErr "github.com/pagecraft/engine/pkg/errors"
	"github.com/pagecraft/engine/pkg/logger"
)

type ProjectService interface {
	CreateProject(ctx context.Context, userID uuid.UUID, input *CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, filter repository.ProjectFilter) ([]models.Project, error)
	UpdateProject(ctx context.Context, projectID, userID uuid.UUID, input *UpdateProjectInput) (*models.Project, error)

	// UpdateConfig replaces the project's override map after checking it
	// against the template schema.
	UpdateConfig(ctx context.Context, projectID, userID uuid.UUID, overrides map[string]any) (*models.Project, error)
	UpdateStatus(ctx context.Context, projectID, userID uuid.UUID, status models.ProjectStatus) (*models.Project, error)
	// ResolvedConfig returns schema defaults merged with the project's overrides.
	ResolvedConfig(ctx context.Context, projectID uuid.UUID) (map[string]any, error)
}

type CreateProjectInput struct {
	Slug         string
	Name         string
	ClientID     uuid.UUID
	TemplateID   uuid.UUID
	DeployTarget models.DeployTarget
	Config       map[string]any
}

type UpdateProjectInput struct {
	Name         *string
	DeployTarget *models.DeployTarget
}

type projectService struct {
	projectRepo  repository.ProjectRepository
	templateRepo repository.TemplateRepository
	activity     ActivityService
}

func NewProjectService(projectRepo repository.ProjectRepository, templateRepo repository.TemplateRepository, activity ActivityService) ProjectService {
	return &projectService{projectRepo: projectRepo, templateRepo: templateRepo, activity: activity}
}

// Ensure interfaces are satisfied at compile time
var _ ProjectService = (*projectService)(nil)

func (s *projectService) CreateProject(ctx context.Context, userID uuid.UUID, input *CreateProjectInput) (*models.Project, error) {
	logger.L().Info("create project called", zap.String("user_id", userID.String()), zap.String("slug", input.Slug))

	if err := validDeployTarget(input.DeployTarget); err != nil {
		return nil, err
	}
	var t models.Template
	if err := s.templateRepo.GetByID(ctx, input.TemplateID, &t); err != nil {
		return nil, err
	}
	if err := build.ValidateOverrides(t.ConfigSchema, input.Config); err != nil {
		return nil, err
	}

	p := &models.Project{
		Slug:         input.Slug,
		Name:         input.Name,
		ClientID:     input.ClientID,
		TemplateID:   t.ID,
		Config:       datatypes.JSONMap(input.Config),
		DeployTarget: input.DeployTarget,
	}
	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	logger.L().Info("project created", zap.String("project_id", p.ID.String()), zap.String("template_id", t.ID.String()))
	return p, nil
}

func (s *projectService) GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := s.projectRepo.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectService) ListProjects(ctx context.Context, filter repository.ProjectFilter) ([]models.Project, error) {
	return s.projectRepo.List(ctx, filter)
}

func (s *projectService) UpdateProject(ctx context.Context, projectID, userID uuid.UUID, input *UpdateProjectInput) (*models.Project, error) {
	logger.L().Info("update project", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))

	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.DeployTarget != nil {
		if err := validDeployTarget(*input.DeployTarget); err != nil {
			return nil, err
		}
		p.DeployTarget = *input.DeployTarget
	}
	if err := s.projectRepo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *projectService) UpdateConfig(ctx context.Context, projectID, userID uuid.UUID, overrides map[string]any) (*models.Project, error) {
	logger.L().Info("update project config", zap.String("project_id", projectID.String()), zap.Int("keys", len(overrides)))

	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var t models.Template
	if err := s.templateRepo.GetByID(ctx, p.TemplateID, &t); err != nil {
		return nil, err
	}
	if err := build.ValidateOverrides(t.ConfigSchema, overrides); err != nil {
		return nil, err
	}

	cfg := datatypes.JSONMap(overrides)
	if cfg == nil {
		cfg = datatypes.JSONMap{}
	}
	if err := s.projectRepo.UpdateConfig(ctx, projectID, cfg); err != nil {
		return nil, err
	}
	p.Config = cfg

	s.log(ctx, userID, ActionUpdateProjectConfig, p, map[string]any{"keys": len(cfg)})
	return p, nil
}

func (s *projectService) UpdateStatus(ctx context.Context, projectID, userID uuid.UUID, status models.ProjectStatus) (*models.Project, error) {
	logger.L().Info("update project status", zap.String("project_id", projectID.String()), zap.String("status", string(status)))

	if !models.ValidProjectStatus(status) {
		return nil, appErr.Newf(appErr.CodeInvalid, "unknown project status %q", status)
	}
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	from := p.Status
	if err := s.projectRepo.UpdateStatus(ctx, projectID, status); err != nil {
		return nil, err
	}
	p.Status = status

	s.log(ctx, userID, ActionUpdateProjectStatus, p, map[string]any{"from": string(from), "to": string(status)})
	return p, nil
}

func (s *projectService) ResolvedConfig(ctx context.Context, projectID uuid.UUID) (map[string]any, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var t models.Template
	if err := s.templateRepo.GetByID(ctx, p.TemplateID, &t); err != nil {
		return nil, err
	}
	return build.Merge(build.ResolveDefaults(t.ConfigSchema), p.Config), nil
}

func (s *projectService) log(ctx context.Context, userID uuid.UUID, action string, p *models.Project, details map[string]any) {
	if s.activity == nil {
		return
	}
	pid := p.ID
	s.activity.Log(ctx, ActivityEntry{
		UserID:     userID,
		Action:     action,
		EntityType: EntityProject,
		EntityID:   p.ID.String(),
		ProjectID:  &pid,
		Details:    details,
	})
}

func validDeployTarget(t models.DeployTarget) error {
	switch t {
	case models.DeployTargetNone, models.DeployTargetNetlify, models.DeployTargetVercel:
		return nil
	}
	return appErr.Newf(appErr.CodeInvalid, "unknown deploy target %q", t)
}
