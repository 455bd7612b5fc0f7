package repository

import (
	"fmt"

	"github.com/glebarez/sqlite"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kutbudev/boardroom/pkg/config"
	"github.com/kutbudev/boardroom/pkg/models"
)

// NewDatabase opens the configured database and migrates the schema.
// Postgres goes through the lib/pq driver; sqlite is the pure Go glebarez driver.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if cfg.Database.Debug {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Database.Driver {
	case "sqlite":
		db, err = OpenSQLite(cfg.Database.Path, gormCfg)
	default:
		db, err = gorm.Open(postgres.New(postgres.Config{
			DriverName: "postgres",
			DSN:        cfg.Database.DSN(),
		}), gormCfg)
		if err == nil {
			// Enable UUID extension
			if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
				return nil, fmt.Errorf("failed to enable uuid extension: %w", err)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return db, nil
}

// OpenSQLite opens a sqlite database at path (":memory:" for tests).
// One connection serializes writers, which sqlite needs anyway.
func OpenSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	}
	db, err := gorm.Open(sqlite.Open(path), gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// AutoMigrate runs auto migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Board{},
		&models.Card{},
		&models.Vendor{},
		&models.Contact{},
		&models.CardLink{},
		&models.Activity{},
		&models.Expense{},
	)
}
