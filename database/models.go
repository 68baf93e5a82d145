// Package database provides persistence for the strategy alert engine.
//
// This package includes:
//   - Connection management using GORM on top of a lib/pq connection pool
//   - AlertRepository: alerts, per-user alert configuration and notification
//     preferences, push webhook registrations and read-only strategy lookups
//   - Typed errors shared by the store, engine and API layers
//
// Key Concepts:
//   - Settings are stored one row per user as JSON documents
//   - A partial unique index on open alerts backs the one-open-alert-per-condition rule
//
// Data Models:
//
//	All data models are defined in the models_pkg package to avoid circular
//	import dependencies.
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "trading-journal/database/models_pkg"
)

// Database holds the GORM database connection
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance for direct access when needed
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect establishes the PostgreSQL connection through lib/pq and wraps it with GORM
func Connect(cfg Config) (*Database, error) {
	sqlDB, err := NewConnection(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{db: db}, nil
}

// Open wraps an already opened dialector, used by tests with SQLite
func Open(dialector gorm.Dialector) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Type aliases so callers can keep importing model types from database
type StrategyAlert = models.StrategyAlert
type AlertConfiguration = models.AlertConfiguration
type NotificationPreferences = models.NotificationPreferences
type UserAlertConfiguration = models.UserAlertConfiguration
type UserNotificationPreferences = models.UserNotificationPreferences
type AlertWebhook = models.AlertWebhook
type WebhookDeliveryLog = models.WebhookDeliveryLog
type Strategy = models.Strategy
