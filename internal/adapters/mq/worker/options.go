// Package worker runs the camera loop that owns motion classification and
// episode control.
package worker

import (
	"time"

	"github.com/okian/episodecam/internal/domain/episode"
	"github.com/okian/episodecam/internal/domain/motion"
	"github.com/okian/episodecam/pkg/logger"
)

// Option applies a configuration option to the CameraWorker.
type Option func(*CameraWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *CameraWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *CameraWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMotionConfig sets the classifier tuning.
func WithMotionConfig(cfg motion.Config) Option {
	return func(w *CameraWorker) {
		w.motionCfg = cfg
	}
}

// WithEpisodeConfig sets the controller tuning.
func WithEpisodeConfig(cfg episode.Config) Option {
	return func(w *CameraWorker) {
		w.episodeCfg = cfg
	}
}

// WithSink sets where episodes, frames and motion onsets go.
func WithSink(s Sink) Option {
	return func(w *CameraWorker) {
		if s != nil {
			w.sink = s
		}
	}
}

// WithPublisher sets the live feed target for annotated frames.
func WithPublisher(p Publisher) Option {
	return func(w *CameraWorker) {
		if p != nil {
			w.publisher = p
		}
	}
}

// WithStride classifies every n-th frame. Values below 1 are ignored.
func WithStride(n int) Option {
	return func(w *CameraWorker) {
		if n >= 1 {
			w.stride = n
		}
	}
}

// WithRetryDelay sets the pause after a capture miss.
func WithRetryDelay(d time.Duration) Option {
	return func(w *CameraWorker) {
		if d >= 0 {
			w.retryDelay = d
		}
	}
}

// WithFPSWindow sets how many frames feed one FPS estimate.
func WithFPSWindow(n int) Option {
	return func(w *CameraWorker) {
		if n > 1 {
			w.fpsWindow = n
		}
	}
}

// WithClock sets the time source used for untimed frames and uptime.
func WithClock(clock func() time.Time) Option {
	return func(w *CameraWorker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithIDFunc sets the episode id generator.
func WithIDFunc(fn episode.IDFunc) Option {
	return func(w *CameraWorker) {
		if fn != nil {
			w.newID = fn
		}
	}
}

// SinkOption applies a configuration option to the CollaboratorSink.
type SinkOption func(*CollaboratorSink)

// WithTimeout bounds each collaborator call.
func WithTimeout(d time.Duration) SinkOption {
	return func(s *CollaboratorSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSinkLogger sets a custom logger for the sink.
func WithSinkLogger(l logger.Logger) SinkOption {
	return func(s *CollaboratorSink) {
		if l != nil {
			s.logger = l
		}
	}
}
