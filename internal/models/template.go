package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TemplateStatus is the lifecycle state of a template.
type TemplateStatus string

const (
	TemplateStatusDraft      TemplateStatus = "draft"
	TemplateStatusActive     TemplateStatus = "active"
	TemplateStatusDeprecated TemplateStatus = "deprecated"
)

// FieldType enumerates the value types a schema field may declare.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldColor    FieldType = "color"
	FieldURL      FieldType = "url"
	FieldImage    FieldType = "image"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldSelect   FieldType = "select"
)

// SchemaField declares one configurable placeholder of a template.
type SchemaField struct {
	Key      string    `json:"key" validate:"required"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type" validate:"required,oneof=text textarea color url image number boolean select"`
	Default  any       `json:"default,omitempty"`
	Required bool      `json:"required,omitempty"`
	Options  []string  `json:"options,omitempty"`
}

// Template is a reusable static-site bundle plus its configuration schema.
// Version is 0 and FilePath empty until the first bundle upload.
type Template struct {
	ID           uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	Slug         string                          `gorm:"uniqueIndex;not null" json:"slug" validate:"required"`
	Name         string                          `gorm:"not null" json:"name" validate:"required"`
	Category     string                          `gorm:"type:varchar(64);index" json:"category"`
	ConfigSchema datatypes.JSONSlice[SchemaField] `json:"config_schema"`
	Version      int                             `gorm:"not null;default:0" json:"version"`
	FilePath     string                          `json:"file_path"`
	Status       TemplateStatus                  `gorm:"type:varchar(32);index;not null;default:'draft'" json:"status"`
	CreatedAt    time.Time                       `json:"created_at"`
	UpdatedAt    time.Time                       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt                  `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TemplateStatusDraft
	}
	return nil
}

// HasBundle reports whether a file bundle has been uploaded.
func (t *Template) HasBundle() bool {
	return t.FilePath != ""
}

// TemplateVersion is the immutable record of one bundle upload.
type TemplateVersion struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_template_version" json:"template_id"`
	Version     int       `gorm:"not null;uniqueIndex:idx_template_version" json:"version"`
	StoragePath string    `gorm:"not null" json:"storage_path"`
	FileCount   int       `gorm:"not null" json:"file_count"`
	SizeBytes   int64     `gorm:"not null" json:"size_bytes"`
	Checksum    string    `gorm:"type:varchar(64)" json:"checksum"`
	UploadedBy  uuid.UUID `gorm:"type:uuid;index" json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate hook to generate UUID
func (v *TemplateVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
