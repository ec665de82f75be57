package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusReady      ProjectStatus = "ready"
	ProjectStatusDeployed   ProjectStatus = "deployed"
	ProjectStatusArchived   ProjectStatus = "archived"
)

// DeployTarget names the hosting provider a project publishes to.
// The empty value means no target is configured.
type DeployTarget string

const (
	DeployTargetNone    DeployTarget = ""
	DeployTargetNetlify DeployTarget = "netlify"
	DeployTargetVercel  DeployTarget = "vercel"
)

// Project is a client-specific instantiation of a template.
type Project struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Slug         string            `gorm:"uniqueIndex;not null" json:"slug" validate:"required"`
	Name         string            `gorm:"not null" json:"name"`
	ClientID     uuid.UUID         `gorm:"type:uuid;index" json:"client_id"`
	TemplateID   uuid.UUID         `gorm:"type:uuid;index;not null" json:"template_id" validate:"required"`
	Template     *Template         `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	Config       datatypes.JSONMap `json:"config"`
	DeployTarget DeployTarget      `gorm:"type:varchar(32)" json:"deploy_target" validate:"omitempty,oneof=netlify vercel"`
	DeployURL    string            `json:"deploy_url"`
	Status       ProjectStatus     `gorm:"type:varchar(32);index;not null;default:'draft'" json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	DeletedAt    gorm.DeletedAt    `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = ProjectStatusDraft
	}
	return nil
}

// ValidProjectStatus reports whether s is a known project status.
func ValidProjectStatus(s ProjectStatus) bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusInProgress, ProjectStatusReady, ProjectStatusDeployed, ProjectStatusArchived:
		return true
	}
	return false
}
