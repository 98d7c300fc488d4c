// Package episode turns a noisy per-frame motion signal into discrete
// episodes.
//
// The Controller is a four state machine (idle, confirming, active,
// cooling_down) driven by timestamped observations. Elapsed time since the
// last positive observation is authoritative for closing an episode; a run of
// consecutive negatives only closes an episode when observations carry no
// timestamp. The Controller is owned by a single goroutine and is not safe
// for concurrent use.
package episode

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is a controller state.
type State string

// Controller states.
const (
	StateIdle        State = "idle"
	StateConfirming  State = "confirming"
	StateActive      State = "active"
	StateCoolingDown State = "cooling_down"
)

// States lists every state, in lifecycle order.
func States() []string {
	return []string{string(StateIdle), string(StateConfirming), string(StateActive), string(StateCoolingDown)}
}

// Reason explains why an episode closed.
type Reason string

// Close reasons.
const (
	ReasonCalm           Reason = "calm"
	ReasonMaxDuration    Reason = "max_duration"
	ReasonNegativeFrames Reason = "negative_frames"
	ReasonShutdown       Reason = "shutdown"
)

// Episode is one recorded interval of sustained motion. EndTime is zero while
// the episode is open.
type Episode struct {
	ID             string    `json:"id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time,omitzero"`
	FrameCount     int       `json:"frame_count"`
	MotionDetected bool      `json:"motion_detected"`
	Reason         Reason    `json:"reason,omitempty"`
}

// Open reports whether the episode has not been closed yet.
func (e Episode) Open() bool { return e.EndTime.IsZero() }

// Duration returns EndTime-StartTime, or zero while open.
func (e Episode) Duration() time.Duration {
	if e.Open() {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// Listener receives episode transitions. Errors are logged by the controller
// and never stop a transition.
type Listener interface {
	EpisodeStarted(ctx context.Context, ep Episode) error
	EpisodeEnded(ctx context.Context, ep Episode) error
}

// BackgroundResetter is hinted after every closure so the next frame
// recalibrates against a clean scene.
type BackgroundResetter interface {
	ResetBackground()
}

// IDFunc returns an id for an episode starting at t.
type IDFunc func(t time.Time) string

// NewID returns ids shaped like ep_20240101_120000_1a2b3c4d.
func NewID(t time.Time) string {
	return fmt.Sprintf("ep_%s_%s", t.Format("20060102_150405"), uuid.NewString()[:8])
}
