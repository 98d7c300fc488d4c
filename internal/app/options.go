package service

import (
	"time"

	"github.com/okian/episodecam/internal/adapters/mq/worker"
	"github.com/okian/episodecam/internal/domain/episode"
	"github.com/okian/episodecam/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSource replaces the frame source built from configuration.
func WithSource(src worker.FrameSource) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithClock sets the time source for the worker, recorder and store.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDFunc sets the episode id generator.
func WithIDFunc(fn episode.IDFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}
