package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeploymentStatus is a state of the deployment state machine:
// pending -> building -> success | failed.
type DeploymentStatus string

const (
	DeploymentPending  DeploymentStatus = "pending"
	DeploymentBuilding DeploymentStatus = "building"
	DeploymentSuccess  DeploymentStatus = "success"
	DeploymentFailed   DeploymentStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s DeploymentStatus) Terminal() bool {
	return s == DeploymentSuccess || s == DeploymentFailed
}

// Deployment is one attempt to build and publish a project.
type Deployment struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID    uuid.UUID         `gorm:"type:uuid;index;not null" json:"project_id"`
	Version      string            `gorm:"type:varchar(64);not null" json:"version"`
	DeployTarget DeployTarget      `gorm:"type:varchar(32);not null" json:"deploy_target"`
	Status       DeploymentStatus  `gorm:"type:varchar(32);index;not null" json:"status"`
	DeployURL    string            `json:"deploy_url,omitempty"`
	BuildTime    int64             `json:"build_time"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	Logs         string            `gorm:"type:text" json:"logs"`
	DeployedBy   uuid.UUID         `gorm:"type:uuid;index" json:"deployed_by"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// BeforeCreate hook to generate UUID
func (d *Deployment) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = DeploymentPending
	}
	return nil
}
