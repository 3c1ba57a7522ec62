package database

import (
	"fmt"

	"fintrack-backend/internal/config"
	"fintrack-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to Postgres and migrates the schema. The handle is returned
// to the caller for explicit injection; nothing in this package holds global
// state.
func Open(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate applies the schema. Also used by tests against sqlite.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.Account{},
		&models.Category{},
		&models.Payee{},
		&models.Transaction{},
		&models.Budget{},
		&models.BudgetNotification{},
		&models.EntityVersion{},
		&models.EntityConflict{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
