package episode

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/episodecam/pkg/logger"
	"github.com/okian/episodecam/pkg/metrics"
)

// Controller decides when episodes open and close.
type Controller struct {
	cfg      Config
	listener Listener
	resetter BackgroundResetter
	clock    func() time.Time
	newID    IDFunc
	logger   logger.Logger

	state         State
	stateEntered  time.Time
	lastMotion    time.Time
	confirmations int
	// negativeRun counts consecutive negative observations. It drives both
	// the noise tolerance and the untimed closure backup.
	negativeRun int
	current     *Episode
}

// NewController builds a controller in the idle state.
func NewController(opts ...Option) (*Controller, error) {
	c := &Controller{
		cfg:   DefaultConfig(),
		clock: time.Now,
		newID: NewID,
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("episode controller: %w", err)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("episode")
	}
	metrics.UpdateControllerState(string(c.state), States())
	return c, nil
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Config returns the active tuning.
func (c *Controller) Config() Config { return c.cfg }

// Confirmations returns the accumulated positive evidence.
func (c *Controller) Confirmations() int { return c.confirmations }

// Current returns a copy of the open episode.
func (c *Controller) Current() (Episode, bool) {
	if c.current == nil {
		return Episode{}, false
	}
	return *c.current, true
}

// Observe feeds one classified observation taken at ts and returns the
// effective detection: true only while an episode is open, so unconfirmed
// positives, cooldown and the closing observation all report false. A zero
// ts marks an untimed observation.
func (c *Controller) Observe(ctx context.Context, detected bool, ts time.Time) bool {
	now, timed := c.resolve(ts)
	c.expireCooldown(ctx, now)

	switch c.state {
	case StateCoolingDown:
		return false

	case StateActive:
		if detected {
			c.negativeRun = 0
			if now.Sub(c.current.StartTime) > c.cfg.MaxDuration() {
				c.close(ctx, now, ReasonMaxDuration)
				return false
			}
			c.lastMotion = now
			return true
		}
		c.negativeRun++
		if reason, ok := c.closeReason(now, timed); ok {
			c.close(ctx, now, reason)
		}
		return false

	default:
		if detected {
			c.negativeRun = 0
			c.confirmations++
			c.lastMotion = now
			if c.confirmations >= c.cfg.ConfirmationThreshold {
				c.open(ctx, now)
				return true
			}
			c.enter(ctx, StateConfirming, now)
			return false
		}
		c.negativeRun++
		if c.negativeRun > c.cfg.NoiseTolerance && c.confirmations > 0 {
			c.confirmations = 0
			c.enter(ctx, StateIdle, now)
		}
		return false
	}
}

// Tick advances time for a frame that was not classified. It may end a
// cooldown or close an episode on calm or duration, but never counts as an
// observation.
func (c *Controller) Tick(ctx context.Context, ts time.Time) {
	now, timed := c.resolve(ts)
	c.expireCooldown(ctx, now)
	if c.state != StateActive {
		return
	}
	switch {
	case timed && now.Sub(c.lastMotion) > c.cfg.CalmTimeout:
		c.close(ctx, now, ReasonCalm)
	case now.Sub(c.current.StartTime) > c.cfg.MaxDuration():
		c.close(ctx, now, ReasonMaxDuration)
	}
}

// AttachFrame counts a recorded frame against the open episode and returns
// the new count, or zero when no episode is open.
func (c *Controller) AttachFrame() int {
	if c.current == nil {
		return 0
	}
	c.current.FrameCount++
	return c.current.FrameCount
}

// Close force-closes the open episode, e.g. at shutdown.
func (c *Controller) Close(ctx context.Context, ts time.Time, reason Reason) (Episode, bool) {
	if c.state != StateActive {
		return Episode{}, false
	}
	now, _ := c.resolve(ts)
	return c.close(ctx, now, reason), true
}

func (c *Controller) resolve(ts time.Time) (time.Time, bool) {
	if ts.IsZero() {
		return c.clock(), false
	}
	return ts, true
}

// closeReason evaluates the closure rules for a negative observation in the
// active state. Calm time wins over the ceiling and the negative run is only
// consulted for untimed observations.
func (c *Controller) closeReason(now time.Time, timed bool) (Reason, bool) {
	switch {
	case timed && now.Sub(c.lastMotion) > c.cfg.CalmTimeout:
		return ReasonCalm, true
	case now.Sub(c.current.StartTime) > c.cfg.MaxDuration():
		return ReasonMaxDuration, true
	case !timed && c.negativeRun > c.cfg.MaxNegativeFrames:
		return ReasonNegativeFrames, true
	}
	return "", false
}

func (c *Controller) expireCooldown(ctx context.Context, now time.Time) {
	if c.state != StateCoolingDown || now.Sub(c.stateEntered) < c.cfg.GracePeriod {
		return
	}
	c.confirmations = 0
	c.negativeRun = 0
	c.lastMotion = time.Time{}
	c.enter(ctx, StateIdle, now)
}

func (c *Controller) open(ctx context.Context, now time.Time) {
	ep := &Episode{ID: c.newID(now), StartTime: now, MotionDetected: true}
	c.current = ep
	c.confirmations = 0
	c.negativeRun = 0
	c.lastMotion = now
	c.enter(ctx, StateActive, now)

	metrics.RecordEpisodeStarted()
	c.logger.Info(ctx, "episode started", logger.String("episode_id", ep.ID), logger.Time("start_time", now))

	if c.listener != nil {
		if err := c.listener.EpisodeStarted(ctx, *ep); err != nil {
			metrics.RecordPersistenceError("episode_started")
			c.logger.Error(ctx, "episode start hook failed", logger.String("episode_id", ep.ID), logger.Error(err))
		}
	}
}

// close clears the local episode fields before any collaborator runs, so a
// failing listener can never leave the controller half closed.
func (c *Controller) close(ctx context.Context, now time.Time, reason Reason) Episode {
	ep := *c.current
	ep.EndTime = now
	if ep.EndTime.Before(ep.StartTime) {
		ep.EndTime = ep.StartTime
	}
	ep.Reason = reason

	c.current = nil
	c.confirmations = 0
	c.negativeRun = 0
	c.lastMotion = time.Time{}
	c.enter(ctx, StateCoolingDown, now)

	metrics.RecordEpisodeClosed(string(reason), ep.Duration().Seconds(), ep.FrameCount)
	c.logger.Info(ctx, "episode closed",
		logger.String("episode_id", ep.ID),
		logger.String("reason", string(reason)),
		logger.Duration("duration", ep.Duration()),
		logger.Int("frames", ep.FrameCount))

	if c.resetter != nil {
		c.resetter.ResetBackground()
		metrics.RecordBackgroundReset()
	}
	if c.listener != nil {
		if err := c.listener.EpisodeEnded(ctx, ep); err != nil {
			metrics.RecordPersistenceError("episode_ended")
			c.logger.Error(ctx, "episode end hook failed", logger.String("episode_id", ep.ID), logger.Error(err))
		}
	}
	return ep
}

func (c *Controller) enter(ctx context.Context, s State, now time.Time) {
	if s == c.state {
		return
	}
	c.logger.Debug(ctx, "controller state change", logger.String("from", string(c.state)), logger.String("to", string(s)))
	c.state = s
	c.stateEntered = now
	metrics.UpdateControllerState(string(s), States())
}
