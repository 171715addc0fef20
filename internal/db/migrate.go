package db

import (
	"fmt"

	"github.com/dhvanip/nagarseva/internal/models"
	"gorm.io/gorm"
)

// AllModels returns all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Complaint{},
		&models.Photo{},
		&models.VoiceNote{},
		&models.Citizen{},
		&models.Operator{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
