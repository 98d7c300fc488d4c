package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/episodecam/pkg/logger"
	"github.com/okian/episodecam/pkg/metrics"
	_ "modernc.org/sqlite" // register the pure Go driver
)

// SQLite implements Store on a single SQLite file.
type SQLite struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
	clock       func() time.Time
	logger      logger.Logger
}

// Open connects to the database at path, creating its directory, and applies
// connection pragmas. Call MigrateUp before use.
func Open(ctx context.Context, path string, opts ...Option) (*SQLite, error) {
	s := &SQLite{
		path:        path,
		busyTimeout: DefaultBusyTimeout,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection keeps the pragmas in force and serialises writers
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s.db = db
	s.logger.Info(ctx, "database opened", logger.String("path", path))
	return s, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// observe records the latency of one operation.
func (s *SQLite) observe(op string, start time.Time) {
	metrics.RecordRepositoryQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
