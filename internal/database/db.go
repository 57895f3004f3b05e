package database

import (
	"fmt"

	"requisition/internal/config"
	"requisition/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection opens the postgres pool and migrates the schema
func NewConnection(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := Migrate(db); err != nil {
		// the API still serves reads against an older schema
		logger.Warn("Failed to auto-migrate models", zap.Error(err))
	}
	return db, nil
}

// Migrate creates or updates every table the service owns
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Department{},
		&model.User{},
		&model.UserRole{},
		&model.Product{},
		&model.Vehicle{},
		&model.Driver{},
		&model.Request{},
		&model.RequestItem{},
		&model.Approval{},
		&model.Correction{},
		&model.FulfillmentRecord{},
		&model.InventoryTransaction{},
		&model.AuditLog{},
	)
}
