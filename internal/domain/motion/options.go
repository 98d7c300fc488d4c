package motion

import (
	"github.com/okian/episodecam/pkg/logger"
)

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithConfig replaces the whole tuning. Out-of-range fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(c *Classifier) {
		WithThreshold(cfg.Threshold)(c)
		WithMinArea(cfg.MinArea)(c)
		WithBlurKernel(cfg.BlurKernel)(c)
		WithBackgroundUpdateRate(cfg.BackgroundUpdateRate)(c)
		WithDetectHeight(cfg.MaxDetectHeight, cfg.DetectHeight)(c)
	}
}

// WithThreshold sets the per-pixel difference threshold (0-255).
func WithThreshold(v int) Option {
	return func(c *Classifier) {
		if v >= 0 && v <= 255 {
			c.cfg.Threshold = v
		}
	}
}

// WithMinArea sets the minimum blob area in detection pixels.
func WithMinArea(v int) Option {
	return func(c *Classifier) {
		if v > 0 {
			c.cfg.MinArea = v
		}
	}
}

// WithBlurKernel sets the Gaussian kernel size.
func WithBlurKernel(v int) Option {
	return func(c *Classifier) {
		if v > 0 {
			c.cfg.BlurKernel = v
		}
	}
}

// WithBackgroundUpdateRate sets the EMA rate alpha (0-1).
func WithBackgroundUpdateRate(v float64) Option {
	return func(c *Classifier) {
		if v >= 0 && v <= 1 {
			c.cfg.BackgroundUpdateRate = v
		}
	}
}

// WithDetectHeight downscales frames taller than maxHeight to height before
// detection. Zero disables downscaling.
func WithDetectHeight(maxHeight, height int) Option {
	return func(c *Classifier) {
		if maxHeight >= 0 && height >= 0 {
			c.cfg.MaxDetectHeight = maxHeight
			c.cfg.DetectHeight = height
		}
	}
}

// WithLogger sets a custom logger for the classifier.
func WithLogger(l logger.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}
