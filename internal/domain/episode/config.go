package episode

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/episodecam/internal/domain/types"
)

// Defaults tuned for roughly 15 classified frames per second.
const (
	DefaultConfirmationThreshold = 10
	DefaultNoiseTolerance        = 3
	DefaultCalmTimeout           = 2 * time.Second
	DefaultGracePeriod           = 5 * time.Second
	DefaultMaxNegativeFrames     = 5

	maxDurationFactor = 3
)

// Config holds the controller tuning.
type Config struct {
	// ConfirmationThreshold is the positive evidence needed to open an episode.
	ConfirmationThreshold int `json:"confirmation_threshold"`
	// NoiseTolerance is the longest run of negatives that keeps the evidence.
	NoiseTolerance int `json:"noise_tolerance"`
	// CalmTimeout closes an episode once no motion was seen for longer.
	CalmTimeout time.Duration `json:"calm_timeout"`
	// GracePeriod is the cooldown after a closure.
	GracePeriod time.Duration `json:"grace_period"`
	// MaxNegativeFrames closes an untimed episode after a longer negative run.
	MaxNegativeFrames int `json:"max_negative_frames"`
	// MaxEpisodeDuration caps an episode. Zero means 3 x CalmTimeout.
	MaxEpisodeDuration time.Duration `json:"max_episode_duration"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		ConfirmationThreshold: DefaultConfirmationThreshold,
		NoiseTolerance:        DefaultNoiseTolerance,
		CalmTimeout:           DefaultCalmTimeout,
		GracePeriod:           DefaultGracePeriod,
		MaxNegativeFrames:     DefaultMaxNegativeFrames,
	}
}

// MaxDuration returns the effective episode ceiling.
func (c Config) MaxDuration() time.Duration {
	if c.MaxEpisodeDuration > 0 {
		return c.MaxEpisodeDuration
	}
	return maxDurationFactor * c.CalmTimeout
}

// Validate checks every field and joins the failures.
func (c Config) Validate() error {
	var errs []error
	if c.ConfirmationThreshold < 1 {
		errs = append(errs, fmt.Errorf("%w: confirmation_threshold must be at least 1, got %d", types.ErrConfig, c.ConfirmationThreshold))
	}
	if c.NoiseTolerance < 0 {
		errs = append(errs, fmt.Errorf("%w: noise_tolerance must not be negative, got %d", types.ErrConfig, c.NoiseTolerance))
	}
	if c.CalmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: calm_timeout must be positive, got %s", types.ErrConfig, c.CalmTimeout))
	}
	if c.GracePeriod < 0 {
		errs = append(errs, fmt.Errorf("%w: grace_period must not be negative, got %s", types.ErrConfig, c.GracePeriod))
	}
	if c.MaxNegativeFrames < 1 {
		errs = append(errs, fmt.Errorf("%w: max_negative_frames must be at least 1, got %d", types.ErrConfig, c.MaxNegativeFrames))
	}
	if c.MaxEpisodeDuration < 0 {
		errs = append(errs, fmt.Errorf("%w: max_episode_duration must not be negative, got %s", types.ErrConfig, c.MaxEpisodeDuration))
	}
	return errors.Join(errs...)
}
