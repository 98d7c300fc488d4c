package recorder

import (
	"errors"
	"time"

	"github.com/okian/episodecam/internal/domain/episode"
	"github.com/okian/episodecam/pkg/logger"
)

// Recorder defaults.
const (
	DefaultQuality   = 85
	DefaultMaxFrames = 3000
)

// ErrNoEpisode is returned when no episode is being recorded.
var ErrNoEpisode = errors.New("no episode in progress")

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithQuality sets the JPEG quality (1-100).
func WithQuality(q int) Option {
	return func(r *Recorder) {
		if q >= 1 && q <= 100 {
			r.quality = q
		}
	}
}

// WithMaxFrames caps the frames buffered per episode.
func WithMaxFrames(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.maxFrames = n
		}
	}
}

// WithClock sets the time source.
func WithClock(clock func() time.Time) Option {
	return func(r *Recorder) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithIDFunc sets the generator used when StartEpisode gets no id.
func WithIDFunc(fn episode.IDFunc) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithLogger sets a custom logger for the recorder.
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}
