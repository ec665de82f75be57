package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ActivityLog is an append-only record of user-visible actions.
type ActivityLog struct {
	ID         uint              `gorm:"primarykey" json:"id"`
	UserID     uuid.UUID         `gorm:"type:uuid;index" json:"user_id"`
	Action     string            `gorm:"type:varchar(64);not null;index" json:"action"` // e.g. "deploy_project"
	EntityType string            `gorm:"type:varchar(32);not null" json:"entity_type"`
	EntityID   string            `gorm:"type:varchar(64);index" json:"entity_id"`
	ProjectID  *uuid.UUID        `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Details    datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}
