package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/okian/episodecam/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp runs all pending migrations.
// Returns nil if the schema is already at the latest version.
func (s *SQLite) MigrateUp(ctx context.Context) error {
	m, err := s.newMigrate(ctx)
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (s *SQLite) MigrateDown(ctx context.Context) error {
	m, err := s.newMigrate(ctx)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version and dirty state.
// Returns 0, false, nil before the first migration.
func (s *SQLite) MigrateVersion(ctx context.Context) (version uint, dirty bool, err error) {
	m, err := s.newMigrate(ctx)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *SQLite) newMigrate(ctx context.Context) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{ctx: ctx, logger: s.logger.Named("migrate")}
	return m, nil
}

// migrateLogger adapts logger.Logger to migrate.Logger.
type migrateLogger struct {
	ctx    context.Context
	logger logger.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(l.ctx, fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
