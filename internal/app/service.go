// Package service wires the camera worker to its collaborators and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/okian/episodecam/internal/adapters/mq/queue"
	"github.com/okian/episodecam/internal/adapters/mq/worker"
	"github.com/okian/episodecam/internal/adapters/notifier"
	"github.com/okian/episodecam/internal/adapters/recorder"
	"github.com/okian/episodecam/internal/adapters/repository"
	"github.com/okian/episodecam/internal/config"
	"github.com/okian/episodecam/internal/domain/dedupe"
	"github.com/okian/episodecam/internal/domain/episode"
	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/internal/domain/motion"
	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
)

// LockFileName is created inside the data directory while the service runs.
const LockFileName = "episodecam.lock"

const statsTimeout = time.Second

// workerExitTimeout bounds how long Stop waits for the worker to persist
// the open episode after a shutdown deadline has passed.
const workerExitTimeout = 10 * time.Second

// Service owns one camera pipeline and the stores behind the API.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	lock        *flock.Flock
	store       *repository.SQLite
	recorder    *recorder.Recorder
	notifier    *notifier.Notifier
	broadcaster *queue.Broadcaster
	worker      *worker.CameraWorker

	// Injected
	source worker.FrameSource
	clock  func() time.Time
	newID  episode.IDFunc

	// State
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error

	// Logging
	logger logger.Logger
}

// New constructs a Service for cfg. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	s := &Service{
		cfg:  cfg,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start takes the data directory lock, opens and migrates the store and
// starts the camera worker.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return ErrStopped
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	cfg := s.cfg
	s.logger.Info(ctx, "starting episodecam service...")

	// Undo partial setup on failure.
	var cleanup []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("%w: create data dir: %w", types.ErrFatal, err)
	}
	lock := flock.New(filepath.Join(cfg.DataDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("%w: acquire lock: %w", types.ErrFatal, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}
	cleanup = append(cleanup, func() { _ = lock.Unlock() })

	storeOpts := []repository.Option{
		repository.WithBusyTimeout(cfg.Storage.BusyTimeout),
		repository.WithLogger(s.logger.Named("repository")),
	}
	if s.clock != nil {
		storeOpts = append(storeOpts, repository.WithClock(s.clock))
	}
	store, err := repository.Open(ctx, cfg.Storage.Path, storeOpts...)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrFatal, err)
	}
	cleanup = append(cleanup, func() { _ = store.Close() })
	if err := store.MigrateUp(ctx); err != nil {
		return fmt.Errorf("%w: %w", types.ErrFatal, err)
	}

	rec := recorder.New(cfg.Recorder.EpisodeDir,
		recorder.WithQuality(cfg.Recorder.JPEGQuality),
		recorder.WithClock(s.clock),
		recorder.WithIDFunc(s.newID),
		recorder.WithLogger(s.logger.Named("recorder")),
	)
	notif := notifier.New(store,
		notifier.WithDeduper(dedupe.NewWindowDeduper(
			dedupe.WithWindow(cfg.Notifier.DedupeWindow),
			dedupe.WithMaxSize(cfg.Notifier.DedupeSize),
		)),
		notifier.WithLogger(s.logger.Named("notifier")),
	)
	bc := queue.NewBroadcaster(queue.WithBufferSize(cfg.Feed.Buffer))
	cleanup = append(cleanup, func() { _ = bc.Close() })

	src := s.source
	if src == nil {
		if src, err = NewSource(cfg.Source, s.logger.Named("source")); err != nil {
			return err
		}
	}

	sink := worker.NewCollaboratorSink(rec, store, notif,
		worker.WithTimeout(cfg.Worker.CollaboratorTimeout),
		worker.WithSinkLogger(s.logger.Named("sink")),
	)
	w, err := worker.NewCameraWorker(src,
		worker.WithMotionConfig(cfg.Motion.Classifier()),
		worker.WithEpisodeConfig(cfg.Episode.Controller()),
		worker.WithSink(sink),
		worker.WithPublisher(bc),
		worker.WithStride(cfg.Worker.Stride),
		worker.WithRetryDelay(cfg.Worker.CaptureRetryDelay),
		worker.WithFPSWindow(cfg.Worker.FPSWindow),
		worker.WithClock(s.clock),
		worker.WithIDFunc(s.newID),
		worker.WithLogger(s.logger.Named("worker")),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrFatal, err)
	}

	s.lock, s.store, s.recorder, s.notifier, s.broadcaster, s.worker = lock, store, rec, notif, bc, w
	notif.SystemStarted(ctx)

	// The worker outlives the start context; Stop ends it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.run(runCtx, w, notif)

	s.started = true
	s.logger.Info(ctx, "episodecam service started",
		logger.String("source", cfg.Source.Kind),
		logger.String("db", store.Path()),
		logger.String("episodes", cfg.Recorder.EpisodeDir),
		logger.Int("stride", cfg.Worker.Stride),
	)
	return nil
}

func (s *Service) run(ctx context.Context, w *worker.CameraWorker, notif *notifier.Notifier) {
	defer close(s.done)
	if err := w.Run(ctx); err != nil {
		s.logger.Error(ctx, "camera worker stopped", logger.Error(err))
		notif.Error(ctx, "worker", err)
		s.runErr = err
	}
}

// Done is closed when the camera worker exits.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Err returns the error the worker exited with. It is only meaningful
// after Done is closed.
func (s *Service) Err() error {
	select {
	case <-s.done:
		return s.runErr
	default:
		return nil
	}
}

// Stop shuts the worker down, persisting an open episode, then closes the
// store and releases the lock. ctx bounds the worker shutdown.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping episodecam service...")

	var errs []error
	if err := s.worker.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()
	// the worker may still be saving the open episode; keep the store open
	select {
	case <-s.done:
	case <-time.After(workerExitTimeout):
		s.logger.Warn(ctx, "camera worker did not exit; closing store anyway")
	}

	s.notifier.SystemStopped(context.WithoutCancel(ctx))
	_ = s.broadcaster.Close()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn(ctx, "failed to release data dir lock", logger.Error(err))
	}

	s.store = nil
	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "episodecam service stopped")
	return errors.Join(errs...)
}

func (s *Service) currentWorker() *worker.CameraWorker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.worker
}

func (s *Service) currentStore() (*repository.SQLite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Status returns the latest camera snapshot, nil before the worker runs.
func (s *Service) Status() *types.Status {
	w := s.currentWorker()
	if w == nil {
		return nil
	}
	return w.Status()
}

// ClassifierConfig returns the active classifier tuning.
func (s *Service) ClassifierConfig() motion.Config {
	w := s.currentWorker()
	if w == nil {
		return s.cfg.Motion.Classifier()
	}
	return w.ClassifierConfig()
}

// UpdateConfig applies a runtime classifier update on the worker.
func (s *Service) UpdateConfig(ctx context.Context, u motion.Update) (motion.Config, error) {
	w := s.currentWorker()
	if w == nil {
		return s.cfg.Motion.Classifier(), ErrNotStarted
	}
	return w.UpdateConfig(ctx, u)
}

// GetEpisode returns one stored episode.
func (s *Service) GetEpisode(ctx context.Context, episodeID string) (model.EpisodeRecord, error) {
	store, err := s.currentStore()
	if err != nil {
		return model.EpisodeRecord{}, err
	}
	return store.GetEpisode(ctx, episodeID)
}

// ListEpisodes returns stored episodes, newest first.
func (s *Service) ListEpisodes(ctx context.Context, f model.EpisodeFilter) ([]model.EpisodeRecord, error) {
	store, err := s.currentStore()
	if err != nil {
		return nil, err
	}
	return store.ListEpisodes(ctx, f)
}

// ListEvents returns logged events, newest first.
func (s *Service) ListEvents(ctx context.Context, f model.EventFilter) ([]model.EventRecord, error) {
	store, err := s.currentStore()
	if err != nil {
		return nil, err
	}
	return store.ListEvents(ctx, f)
}

// Stats returns store totals.
func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	store, err := s.currentStore()
	if err != nil {
		return model.Stats{}, err
	}
	return store.Stats(ctx)
}

// Subscribe hands out a live frame subscription.
func (s *Service) Subscribe(ctx context.Context) (<-chan queue.Frame, func(), error) {
	s.mu.RLock()
	bc := s.broadcaster
	s.mu.RUnlock()
	if bc == nil {
		return nil, nil, ErrNotStarted
	}
	return bc.Subscribe(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	started, w, bc, store := s.started, s.worker, s.broadcaster, s.store
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": started,
		"source":  s.cfg.Source.Kind,
		"stride":  s.cfg.Worker.Stride,
	}
	if !started {
		return stats
	}

	if st := w.Status(); st != nil {
		stats["cameraActive"] = st.CameraActive
		stats["framesCaptured"] = st.FramesCaptured
		stats["fps"] = st.FPS
		stats["motionCount"] = st.MotionCount
		stats["state"] = st.State
	}
	stats["feedSubscribers"] = bc.Len()

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()
	if totals, err := store.Stats(ctx); err == nil {
		stats["totalEpisodes"] = totals.TotalEpisodes
		stats["episodesWithMotion"] = totals.EpisodesWithMotion
		stats["totalEvents"] = totals.TotalEvents
	}
	return stats
}
