package repository

import (
	"time"

	"github.com/okian/episodecam/pkg/logger"
)

// DefaultBusyTimeout is how long a writer waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

// Option applies a configuration option to the SQLite store.
type Option func(*SQLite)

// WithBusyTimeout sets the SQLite busy timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLite) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithClock sets the time source for created_at and default timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *SQLite) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLite) {
		if l != nil {
			s.logger = l
		}
	}
}
