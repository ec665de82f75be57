package types

import "github.com/pagecraft/engine/internal/models"

type TemplateCreateRequest struct {
	Slug         string               `json:"slug" validate:"required,max=128"`
	Name         string               `json:"name" validate:"required,max=255"`
	Category     string               `json:"category" validate:"max=64"`
	ConfigSchema []models.SchemaField `json:"config_schema" validate:"dive"`
}

type TemplateCloneRequest struct {
	Slug string `json:"slug" validate:"required,max=128"`
	Name string `json:"name" validate:"required,max=255"`
}

type ProjectCreateRequest struct {
	Slug         string         `json:"slug" validate:"required,max=128"`
	Name         string         `json:"name" validate:"required,max=255"`
	ClientID     string         `json:"client_id" validate:"omitempty,uuid"`
	TemplateID   string         `json:"template_id" validate:"required,uuid"`
	DeployTarget string         `json:"deploy_target" validate:"omitempty,oneof=netlify vercel"`
	Config       map[string]any `json:"config"`
}

type ProjectUpdateRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	DeployTarget *string `json:"deploy_target" validate:"omitempty,oneof=netlify vercel"`
}

type ProjectConfigRequest struct {
	Config map[string]any `json:"config"`
}

type ProjectStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft in_progress ready deployed archived"`
}
