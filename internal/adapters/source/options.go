package source

import (
	"time"

	"github.com/okian/episodecam/pkg/logger"
)

// Default source settings.
const (
	DefaultFPS         = 30
	DefaultWidth       = 640
	DefaultHeight      = 480
	DefaultBurstEvery  = 20 * time.Second
	DefaultBurstLength = 4 * time.Second
)

// settings are shared by every source; each source reads what it needs.
type settings struct {
	fps         float64
	width       int
	height      int
	burstEvery  time.Duration
	burstLength time.Duration
	loop        bool
	clock       func() time.Time
	logger      logger.Logger
}

func defaultSettings() settings {
	return settings{
		fps:         DefaultFPS,
		width:       DefaultWidth,
		height:      DefaultHeight,
		burstEvery:  DefaultBurstEvery,
		burstLength: DefaultBurstLength,
		loop:        true,
		clock:       time.Now,
	}
}

// Option applies a configuration option to a source.
type Option func(*settings)

// WithFPS sets the capture rate. Zero or negative disables pacing.
func WithFPS(fps float64) Option {
	return func(s *settings) {
		s.fps = fps
	}
}

// WithSize sets the synthetic frame size.
func WithSize(width, height int) Option {
	return func(s *settings) {
		if width > 0 && height > 0 {
			s.width, s.height = width, height
		}
	}
}

// WithBursts makes the synthetic scene show motion for length out of every
// period. A zero period disables motion.
func WithBursts(every, length time.Duration) Option {
	return func(s *settings) {
		if every >= 0 && length >= 0 {
			s.burstEvery, s.burstLength = every, length
		}
	}
}

// WithLoop restarts directory replay after the last file.
func WithLoop(loop bool) Option {
	return func(s *settings) {
		s.loop = loop
	}
}

// WithClock sets the time source used for frame timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the source.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
