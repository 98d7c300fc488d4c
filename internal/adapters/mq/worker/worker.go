package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/episodecam/internal/adapters/mq/queue"
	"github.com/okian/episodecam/internal/domain/episode"
	"github.com/okian/episodecam/internal/domain/motion"
	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
	"github.com/okian/episodecam/pkg/metrics"
)

// Default loop configuration constants.
const (
	DefaultStride     = 2
	DefaultRetryDelay = 100 * time.Millisecond
)

// ErrStopped is returned by UpdateConfig once the loop has exited.
var ErrStopped = errors.New("worker stopped")

// FrameSource produces frames. Capture returns an error wrapping
// types.ErrTransientCapture when no frame is available right now.
type FrameSource interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Capture(ctx context.Context) (types.Frame, error)
}

// Publisher receives annotated frames for the live feed.
type Publisher interface {
	Publish(ctx context.Context, f queue.Frame) int
}

// Worker is a long-running loop.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or Shutdown is called.
	Run(ctx context.Context) error

	// Shutdown gracefully stops the worker and waits for it to exit.
	Shutdown(ctx context.Context) error
}

type configRequest struct {
	update motion.Update
	reply  chan configReply
}

type configReply struct {
	cfg motion.Config
	err error
}

// CameraWorker captures frames, classifies them on a stride and drives the
// episode controller. The classifier and controller are touched only by the
// loop goroutine; everything else reads the published Status.
type CameraWorker struct {
	source     FrameSource
	sink       Sink
	publisher  Publisher
	classifier *motion.Classifier
	controller *episode.Controller

	name       string
	motionCfg  motion.Config
	episodeCfg episode.Config
	stride     int
	retryDelay time.Duration
	fpsWindow  int
	clock      func() time.Time
	newID      episode.IDFunc
	logger     logger.Logger

	// loop-owned state
	fps          *fpsMeter
	frames       uint64
	motionCount  int
	motionActive bool
	lastObs      types.Observation
	startTime    time.Time

	status  atomic.Pointer[types.Status]
	config  atomic.Pointer[motion.Config]
	updates chan configRequest

	shutdownOnce sync.Once
	shutdown     chan struct{}
	done         chan struct{}
}

var _ Worker = (*CameraWorker)(nil)

// NewCameraWorker builds a worker around source. It fails when the episode
// configuration is invalid.
func NewCameraWorker(source FrameSource, opts ...Option) (*CameraWorker, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: nil frame source", types.ErrFatal)
	}
	w := &CameraWorker{
		source:     source,
		sink:       nopSink{},
		publisher:  nopPublisher{},
		name:       "camera",
		motionCfg:  motion.DefaultConfig(),
		episodeCfg: episode.DefaultConfig(),
		stride:     DefaultStride,
		retryDelay: DefaultRetryDelay,
		fpsWindow:  DefaultFPSWindow,
		clock:      time.Now,
		newID:      episode.NewID,
		updates:    make(chan configRequest),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	if w.name != "camera" {
		w.logger = w.logger.Named(w.name)
	}

	w.classifier = motion.NewClassifier(motion.WithConfig(w.motionCfg), motion.WithLogger(w.logger.Named("motion")))
	ctrl, err := episode.NewController(
		episode.WithConfig(w.episodeCfg),
		episode.WithListener(w.sink),
		episode.WithBackgroundResetter(w.classifier),
		episode.WithClock(w.clock),
		episode.WithIDFunc(w.newID),
		episode.WithLogger(w.logger.Named("episode")),
	)
	if err != nil {
		return nil, err
	}
	w.controller = ctrl
	w.fps = newFPSMeter(w.fpsWindow)

	cfg := w.classifier.Config()
	w.config.Store(&cfg)
	w.status.Store(&types.Status{State: string(episode.StateIdle)})
	return w, nil
}

// Status returns the latest published snapshot. The value is never
// modified after publication.
func (w *CameraWorker) Status() *types.Status {
	return w.status.Load()
}

// ClassifierConfig returns the classifier tuning as of the last update.
func (w *CameraWorker) ClassifierConfig() motion.Config {
	return *w.config.Load()
}

// UpdateConfig applies u on the loop goroutine and waits for the result.
// Valid fields are applied even when others are rejected; the error then
// wraps types.ErrConfig.
func (w *CameraWorker) UpdateConfig(ctx context.Context, u motion.Update) (motion.Config, error) {
	req := configRequest{update: u, reply: make(chan configReply, 1)}
	select {
	case w.updates <- req:
	case <-w.done:
		return w.ClassifierConfig(), ErrStopped
	case <-ctx.Done():
		return w.ClassifierConfig(), ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.cfg, r.err
	case <-ctx.Done():
		return w.ClassifierConfig(), ctx.Err()
	}
}

// Run starts the source and loops until ctx is canceled or Shutdown is
// called. A source that fails to start is fatal.
func (w *CameraWorker) Run(ctx context.Context) error {
	defer close(w.done)

	if err := w.source.Start(ctx); err != nil {
		metrics.RecordErrorByComponent("worker", "source_start")
		w.logger.Error(ctx, "frame source failed to start", logger.Error(err))
		return fmt.Errorf("%w: start frame source: %w", types.ErrFatal, err)
	}
	w.startTime = w.clock()
	w.logger.Info(ctx, "camera worker started", logger.Int("stride", w.stride))
	w.publish(nil)
	defer w.stop(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.shutdown:
			return nil
		case req := <-w.updates:
			w.applyUpdate(req)
			continue
		default:
		}

		f, err := w.source.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, types.ErrFatal) {
				w.logger.Error(ctx, "frame source failed", logger.Error(err))
				return err
			}
			if !errors.Is(err, types.ErrTransientCapture) {
				metrics.RecordErrorByComponent("worker", "capture")
				w.logger.Warn(ctx, "capture failed", logger.Error(err))
			}
			metrics.RecordCaptureMiss()
			w.controller.Tick(ctx, w.clock())
			if !w.wait(ctx) {
				return nil
			}
			continue
		}
		w.process(ctx, f)
	}
}

// Shutdown signals the loop to stop and waits for it to persist the open
// episode and exit.
func (w *CameraWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// wait sleeps for the retry delay while still serving config updates.
// It returns false when the loop should exit.
func (w *CameraWorker) wait(ctx context.Context) bool {
	timer := time.NewTimer(w.retryDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-w.shutdown:
			return false
		case req := <-w.updates:
			w.applyUpdate(req)
		case <-timer.C:
			return true
		}
	}
}

func (w *CameraWorker) applyUpdate(req configRequest) {
	cfg, err := w.classifier.UpdateConfig(req.update)
	for _, field := range motion.RejectedFields(err) {
		metrics.RecordConfigRejection(field)
	}
	w.config.Store(&cfg)
	req.reply <- configReply{cfg: cfg, err: err}
}

// process handles one captured frame.
func (w *CameraWorker) process(ctx context.Context, f types.Frame) { //nolint:gocritic // hugeParam: frames travel by value
	w.frames++
	metrics.RecordFrameCaptured()
	w.fps.observe(f.Timestamp)

	annotated := f
	if (w.frames-1)%uint64(w.stride) == 0 {
		start := time.Now()
		obs, out, err := w.classifier.Classify(f)
		if err != nil {
			metrics.RecordClassifyError()
			w.logger.Warn(ctx, "frame rejected by classifier", logger.Int64("seq", int64(f.Seq)), logger.Error(err))
			// a failed classification counts as a negative observation
			w.lastObs = types.Observation{}
			w.controller.Observe(ctx, false, f.Timestamp)
			w.motionActive = false
		} else {
			metrics.RecordFrameClassified(float64(time.Since(start).Microseconds())/1000, obs.Detected)
			annotated = out
			w.observe(ctx, f, obs)
		}
	} else {
		metrics.RecordFrameSkipped()
		w.controller.Tick(ctx, f.Timestamp)
		if w.controller.State() != episode.StateActive {
			w.motionActive = false
		}
	}

	if w.controller.State() == episode.StateActive {
		w.controller.AttachFrame()
		meta := types.FrameMeta{
			MotionDetected: w.lastObs.Detected,
			Regions:        len(w.lastObs.Regions),
			TotalArea:      w.lastObs.TotalArea,
			State:          string(w.controller.State()),
		}
		if err := w.sink.AddFrame(ctx, f, meta); err != nil {
			metrics.RecordPersistenceError("add_frame")
			w.logger.Warn(ctx, "failed to record frame", logger.Int64("seq", int64(f.Seq)), logger.Error(err))
		}
	}

	w.publisher.Publish(ctx, annotated)
	w.publish(annotated.Image)
}

// observe feeds a classification to the controller and keeps the
// background adapting on still frames. Only confirmed motion counts
// towards motionCount and the onset notification.
func (w *CameraWorker) observe(ctx context.Context, f types.Frame, obs types.Observation) { //nolint:gocritic // hugeParam: frames travel by value
	w.lastObs = obs
	effective := w.controller.Observe(ctx, obs.Detected, f.Timestamp)
	if !obs.Detected {
		if err := w.classifier.UpdateBackground(f); err != nil {
			w.logger.Debug(ctx, "background update skipped", logger.Error(err))
		}
	}
	if effective {
		w.motionCount++
		if !w.motionActive {
			w.sink.MotionDetected(ctx, obs.TotalArea)
		}
	}
	w.motionActive = effective
}

// publish swaps in a fresh status snapshot.
func (w *CameraWorker) publish(frame *image.RGBA) {
	now := w.clock()
	st := &types.Status{
		CameraActive:   true,
		MotionDetected: w.motionActive,
		FPS:            w.fps.FPS(),
		MotionCount:    w.motionCount,
		StartTime:      w.startTime,
		Uptime:         now.Sub(w.startTime).Seconds(),
		State:          string(w.controller.State()),
		FramesCaptured: w.frames,
		UpdatedAt:      now,
		Frame:          frame,
	}
	if frame == nil {
		if prev := w.status.Load(); prev != nil {
			st.Frame = prev.Frame
		}
	}
	if ep, ok := w.controller.Current(); ok {
		st.Episode = &types.EpisodeInfo{ID: ep.ID, FrameCount: ep.FrameCount, StartTime: ep.StartTime}
	}
	w.status.Store(st)
}

// stop closes an open episode and releases the source.
func (w *CameraWorker) stop(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if ep, ok := w.controller.Close(ctx, time.Time{}, episode.ReasonShutdown); ok {
		w.logger.Info(ctx, "closed episode on shutdown", logger.String("episode_id", ep.ID))
	}
	if err := w.source.Stop(ctx); err != nil {
		w.logger.Warn(ctx, "frame source stop failed", logger.Error(err))
	}
	w.motionActive = false
	w.publish(nil)
	st := *w.status.Load()
	st.CameraActive = false
	w.status.Store(&st)
	w.logger.Info(ctx, "camera worker stopped",
		logger.Int64("frames", int64(w.frames)), logger.Int("motion_frames", w.motionCount))
}

type nopSink struct{}

func (nopSink) EpisodeStarted(context.Context, episode.Episode) error        { return nil }
func (nopSink) EpisodeEnded(context.Context, episode.Episode) error          { return nil }
func (nopSink) AddFrame(context.Context, types.Frame, types.FrameMeta) error { return nil }
func (nopSink) MotionDetected(context.Context, int)                          {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.Frame) int { return 0 }
