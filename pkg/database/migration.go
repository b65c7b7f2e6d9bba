package database

import (
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
)

// MigrationService runs golang-migrate file migrations against the
// service database.
type MigrationService struct {
	db     *sqlx.DB
	logger ectologger.Logger
	path   string
	dbName string
}

func NewMigrationService(db *sqlx.DB, logger ectologger.Logger, path, dbName string) *MigrationService {
	return &MigrationService{
		db:     db,
		logger: logger,
		path:   path,
		dbName: dbName,
	}
}

// Up applies all pending migrations.
func (s *MigrationService) Up() error {
	driver, err := postgres.WithInstance(s.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", s.path), s.dbName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		s.logger.Info("No new migrations to apply")
	} else {
		s.logger.Info("Migrations applied")
	}

	return nil
}
