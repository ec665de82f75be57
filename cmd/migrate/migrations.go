package main

import (
	"gorm.io/gorm"

	"github.com/pagecraft/engine/internal/models"
)

// runMigrations executes all database migrations
func runMigrations(db *gorm.DB, driver string) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return err
	}

	// Run custom migrations
	return runCustomMigrations(db, driver)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB, driver string) error {
	migrations := []func(*gorm.DB) error{
		addDeploymentHistoryIndex,
	}
	if driver == "postgres" || driver == "postgresql" {
		migrations = append([]func(*gorm.DB) error{enableUUIDExtension}, migrations...)
	}

	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}

	return nil
}

// enableUUIDExtension ensures UUID generation is available
func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addDeploymentHistoryIndex serves the per-project history listing, newest first
func addDeploymentHistoryIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_deployments_project_created
		ON deployments(project_id, created_at DESC)
	`).Error
}
