package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/episodecam/internal/domain/episode"
	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
)

// DefaultCollaboratorTimeout bounds each recorder, store and notifier call.
const DefaultCollaboratorTimeout = 5 * time.Second

// Sink receives everything the loop hands to collaborators.
type Sink interface {
	episode.Listener
	// AddFrame records a frame of the open episode.
	AddFrame(ctx context.Context, f types.Frame, meta types.FrameMeta) error
	// MotionDetected reports the onset of motion covering area pixels.
	MotionDetected(ctx context.Context, area int)
}

// Recorder stores episode frames.
type Recorder interface {
	StartEpisodeAt(ctx context.Context, id string, start time.Time) (string, error)
	AddFrame(ctx context.Context, f types.Frame, meta types.FrameMeta) error
	SaveEpisode(ctx context.Context) (string, error)
	EpisodePath(id string) string
}

// EpisodeWriter stores episode rows.
type EpisodeWriter interface {
	AddEpisode(ctx context.Context, rec model.EpisodeRecord) (int64, error)
	UpdateEpisode(ctx context.Context, episodeID string, end time.Time, durationSeconds float64) error
}

// Notifier reports service events.
type Notifier interface {
	MotionDetected(ctx context.Context, area int, episodeID *int64)
	EpisodeStarted(ctx context.Context, id string, dbID *int64)
	EpisodeSaved(ctx context.Context, id string, frames int, durationSeconds float64, dbID *int64)
	Error(ctx context.Context, component string, err error)
}

// CollaboratorSink fans controller transitions out to the recorder, the
// episode store and the notifier. Each of them is optional. Calls run on
// the worker goroutine under their own timeout and survive cancellation
// of the loop context, so a shutdown still persists the last episode.
type CollaboratorSink struct {
	recorder Recorder
	store    EpisodeWriter
	notifier Notifier
	timeout  time.Duration
	logger   logger.Logger

	mu   sync.Mutex
	dbID *int64
}

var _ Sink = (*CollaboratorSink)(nil)

// NewCollaboratorSink creates a sink. Nil collaborators are skipped.
func NewCollaboratorSink(rec Recorder, store EpisodeWriter, notifier Notifier, opts ...SinkOption) *CollaboratorSink {
	s := &CollaboratorSink{
		recorder: rec,
		store:    store,
		notifier: notifier,
		timeout:  DefaultCollaboratorTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("sink")
	}
	return s
}

func (s *CollaboratorSink) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

// EpisodeStarted opens the recording and the episode row.
func (s *CollaboratorSink) EpisodeStarted(ctx context.Context, ep episode.Episode) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var errs []error
	path := ""
	if s.recorder != nil {
		if _, err := s.recorder.StartEpisodeAt(ctx, ep.ID, ep.StartTime); err != nil {
			errs = append(errs, fmt.Errorf("start recording: %w", err))
		}
		path = s.recorder.EpisodePath(ep.ID)
	}

	var dbID *int64
	if s.store != nil {
		id, err := s.store.AddEpisode(ctx, model.EpisodeRecord{
			EpisodeID:      ep.ID,
			FilePath:       path,
			StartTime:      ep.StartTime,
			MotionDetected: ep.MotionDetected,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("add episode: %w", err))
		} else {
			dbID = &id
		}
	}
	s.setDBID(dbID)

	if s.notifier != nil {
		s.notifier.EpisodeStarted(ctx, ep.ID, dbID)
	}
	return s.report(ctx, "episode_start", errs)
}

// EpisodeEnded saves the recording and closes the episode row.
func (s *CollaboratorSink) EpisodeEnded(ctx context.Context, ep episode.Episode) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	dbID := s.currentDBID()
	s.setDBID(nil)

	var errs []error
	if s.recorder != nil {
		path, err := s.recorder.SaveEpisode(ctx)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("save recording: %w", err))
		case path == "":
			s.logger.Warn(ctx, "episode closed without frames", logger.String("episode_id", ep.ID))
		}
	}
	duration := ep.Duration().Seconds()
	if s.store != nil {
		if err := s.store.UpdateEpisode(ctx, ep.ID, ep.EndTime, duration); err != nil {
			errs = append(errs, fmt.Errorf("update episode: %w", err))
		}
	}
	if s.notifier != nil {
		s.notifier.EpisodeSaved(ctx, ep.ID, ep.FrameCount, duration, dbID)
	}
	return s.report(ctx, "episode_end", errs)
}

// AddFrame hands f to the recorder.
func (s *CollaboratorSink) AddFrame(ctx context.Context, f types.Frame, meta types.FrameMeta) error {
	if s.recorder == nil {
		return nil
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.recorder.AddFrame(ctx, f, meta)
}

// MotionDetected notifies a motion onset, linked to the open episode row.
func (s *CollaboratorSink) MotionDetected(ctx context.Context, area int) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	s.notifier.MotionDetected(ctx, area, s.currentDBID())
}

func (s *CollaboratorSink) report(ctx context.Context, component string, errs []error) error {
	err := errors.Join(errs...)
	if err == nil {
		return nil
	}
	if s.notifier != nil {
		s.notifier.Error(ctx, component, err)
	}
	return fmt.Errorf("%w: %w", types.ErrPersistence, err)
}

func (s *CollaboratorSink) setDBID(id *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbID = id
}

func (s *CollaboratorSink) currentDBID() *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbID
}
