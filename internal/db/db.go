package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"meeting-room-backend/config"
	"meeting-room-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(log, gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Info("running database migrations", zap.String("driver", cfg.Driver))
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableExclusionConstraint {
		if cfg.Driver != "postgres" {
			log.Warn("exclusion constraint requires postgres; skipping", zap.String("driver", cfg.Driver))
		} else {
			log.Info("applying reservation exclusion constraint")
			if err := applyExclusionDDL(db); err != nil {
				log.Warn("failed to apply exclusion constraint; continuing with application-level serialization", zap.Error(err))
			}
		}
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate creates or updates the tables for every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Room{},
		&model.Reservation{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func openDialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres", "":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// ExclusionConstraintName is the postgres constraint rejecting overlapping live reservations.
const ExclusionConstraintName = "reservations_no_overlap"

func applyExclusionDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		"ALTER TABLE reservations DROP CONSTRAINT IF EXISTS reservations_window_valid;",
		"ALTER TABLE reservations " +
			"ADD CONSTRAINT reservations_window_valid CHECK (start_at < end_at);",

		// Half-open ranges: [start, end). Rejected reservations never block a slot.
		"ALTER TABLE reservations DROP CONSTRAINT IF EXISTS " + ExclusionConstraintName + ";",
		"ALTER TABLE reservations ADD CONSTRAINT " + ExclusionConstraintName + " " +
			"EXCLUDE USING GIST (room_id WITH =, tstzrange(start_at, end_at, '[)') WITH &&) " +
			"WHERE (state <> 'rejected');",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
