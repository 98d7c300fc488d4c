// Package notifier records service events in the log and the event store.
package notifier

import (
	"context"
	"fmt"
	"strconv"

	"github.com/okian/episodecam/internal/domain/dedupe"
	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/pkg/logger"
	"github.com/okian/episodecam/pkg/metrics"
)

// EventWriter persists events.
type EventWriter interface {
	AddEvent(ctx context.Context, ev model.EventRecord) (int64, error)
}

// Notifier logs events at their severity and stores them. Repeats of the
// same event inside the dedupe window are dropped, except episode
// lifecycle events which are always recorded.
type Notifier struct {
	store  EventWriter
	dedupe dedupe.Deduper
	logger logger.Logger
}

// New creates a notifier over store. A nil store only logs.
func New(store EventWriter, opts ...Option) *Notifier {
	n := &Notifier{store: store}
	for _, opt := range opts {
		opt(n)
	}
	if n.dedupe == nil {
		n.dedupe = dedupe.NewWindowDeduper()
	}
	if n.logger == nil {
		n.logger = logger.Get().Named("notifier")
	}
	return n
}

// Event logs and stores one event. It returns false when the event was
// suppressed as a repeat. Store failures are logged, never returned.
func (n *Notifier) Event(ctx context.Context, eventType, message string, severity model.Severity, episodeID *int64) bool {
	if severity == "" {
		severity = model.SeverityInfo
	}
	key := dedupeKey(eventType, message, episodeID)
	if key != "" && n.dedupe.SeenAndRecord(ctx, key) {
		metrics.RecordNotifierSuppressed()
		return false
	}

	fields := []logger.Field{logger.String("event_type", eventType)}
	if episodeID != nil {
		fields = append(fields, logger.Int64("episode_db_id", *episodeID))
	}
	n.log(ctx, severity, message, fields)
	metrics.RecordNotifierEvent(eventType, string(severity))

	if n.store == nil {
		return true
	}
	_, err := n.store.AddEvent(ctx, model.EventRecord{
		Type:      eventType,
		EpisodeID: episodeID,
		Message:   message,
		Severity:  severity,
	})
	if err != nil {
		metrics.RecordPersistenceError("add_event")
		n.logger.Error(ctx, "failed to store event", append(fields, logger.Error(err))...)
	}
	return true
}

func (n *Notifier) log(ctx context.Context, severity model.Severity, msg string, fields []logger.Field) {
	switch severity {
	case model.SeverityWarning:
		n.logger.Warn(ctx, msg, fields...)
	case model.SeverityError, model.SeverityCritical:
		n.logger.Error(ctx, msg, append(fields, logger.String("severity", string(severity)))...)
	default:
		n.logger.Info(ctx, msg, fields...)
	}
}

// dedupeKey returns "" for events that are never suppressed. Motion events
// carry a varying area, so they are keyed by episode instead of message.
func dedupeKey(eventType, message string, episodeID *int64) string {
	switch eventType {
	case model.EventEpisodeStarted, model.EventEpisodeSaved:
		return ""
	case model.EventMotionDetected:
		if episodeID == nil {
			return eventType
		}
		return eventType + "|" + strconv.FormatInt(*episodeID, 10)
	}
	return eventType + "|" + message
}

// SystemStarted records service start.
func (n *Notifier) SystemStarted(ctx context.Context) {
	n.Event(ctx, model.EventSystemStarted, "system started", model.SeverityInfo, nil)
}

// SystemStopped records service stop.
func (n *Notifier) SystemStopped(ctx context.Context) {
	n.Event(ctx, model.EventSystemStopped, "system stopped", model.SeverityInfo, nil)
}

// MotionDetected records motion covering area pixels.
func (n *Notifier) MotionDetected(ctx context.Context, area int, episodeID *int64) {
	n.Event(ctx, model.EventMotionDetected, fmt.Sprintf("motion detected (area: %d px)", area), model.SeverityInfo, episodeID)
}

// EpisodeStarted records the start of episode id.
func (n *Notifier) EpisodeStarted(ctx context.Context, id string, dbID *int64) {
	n.Event(ctx, model.EventEpisodeStarted, "episode started: "+id, model.SeverityInfo, dbID)
}

// EpisodeSaved records a persisted episode.
func (n *Notifier) EpisodeSaved(ctx context.Context, id string, frames int, durationSeconds float64, dbID *int64) {
	msg := fmt.Sprintf("episode saved: %s (%d frames, %.2fs)", id, frames, durationSeconds)
	n.Event(ctx, model.EventEpisodeSaved, msg, model.SeverityInfo, dbID)
}

// Warning records a recoverable problem in component.
func (n *Notifier) Warning(ctx context.Context, component, message string) {
	n.Event(ctx, model.EventWarning, component+": "+message, model.SeverityWarning, nil)
}

// Error records a failure in component.
func (n *Notifier) Error(ctx context.Context, component string, err error) {
	if err == nil {
		return
	}
	n.Event(ctx, model.EventError, component+": "+err.Error(), model.SeverityError, nil)
}
