package episode

import (
	"time"

	"github.com/okian/episodecam/pkg/logger"
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithConfig sets the controller tuning. NewController validates it.
func WithConfig(cfg Config) Option {
	return func(c *Controller) {
		c.cfg = cfg
	}
}

// WithListener sets the collaborator notified of episode transitions.
func WithListener(l Listener) Option {
	return func(c *Controller) {
		c.listener = l
	}
}

// WithBackgroundResetter sets the classifier hinted after every closure.
func WithBackgroundResetter(r BackgroundResetter) Option {
	return func(c *Controller) {
		c.resetter = r
	}
}

// WithClock sets the time source used for untimed observations.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithIDFunc sets the episode id generator.
func WithIDFunc(fn IDFunc) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithLogger sets a custom logger for the controller.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}
