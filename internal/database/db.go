package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crm-pipeline/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Open connects to the store, retrying while the database container comes up.
func Open(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	var db *gorm.DB
	for i := 1; i <= connectAttempts; i++ {
		slog.Info("connecting to database", "driver", driver, "attempt", i, "max_attempts", connectAttempts)

		db, err = gorm.Open(dialector, cfg)
		if err == nil {
			break
		}
		slog.Warn("failed to connect to database", "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db after %d attempts: %w", connectAttempts, err)
	}

	if driver == DriverSQLite {
		// one writer at a time, and the connection keeps in-memory databases alive
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	slog.Info("connected to database", "driver", driver)
	return db, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is empty")
	}
	switch driver {
	case "", DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate creates or updates every table the pipeline owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Contact{},
		&models.Column{},
		&models.Lead{},
		&models.Interaction{},
		&models.Activity{},
		&models.AssignmentRecord{},
		&models.Follower{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// IsPostgres reports whether row level locking is available.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == DriverPostgres
}
