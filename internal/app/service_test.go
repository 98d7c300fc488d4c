package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/episodecam/internal/adapters/http/api"
	service "github.com/okian/episodecam/internal/app"
	"github.com/okian/episodecam/internal/config"
	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/internal/domain/motion"
	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithWriter(&bytes.Buffer{}))
}

var _ api.Dependencies = (*service.Service)(nil)

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// scriptSource hands out still and moving frames 100ms apart, then misses.
type scriptSource struct {
	mu      sync.Mutex
	moving  []bool
	next    int
	last    time.Time
	drained chan struct{}
	once    sync.Once
}

func newScriptSource(still1, moving, still2 int) *scriptSource {
	s := &scriptSource{drained: make(chan struct{}), last: base}
	for _, run := range []struct {
		n int
		v bool
	}{{still1, false}, {moving, true}, {still2, false}} {
		for i := 0; i < run.n; i++ {
			s.moving = append(s.moving, run.v)
		}
	}
	return s
}

func (s *scriptSource) Start(context.Context) error { return nil }
func (s *scriptSource) Stop(context.Context) error  { return nil }

func (s *scriptSource) Capture(context.Context) (types.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.moving) {
		s.once.Do(func() { close(s.drained) })
		return types.Frame{}, types.ErrTransientCapture
	}
	i := s.next
	s.next++
	s.last = base.Add(time.Duration(i) * 100 * time.Millisecond)
	return types.Frame{Seq: uint64(i + 1), Timestamp: s.last, Image: scene(s.moving[i])}, nil
}

func (s *scriptSource) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func scene(moving bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			c := uint8(60)
			if moving && x >= 20 && x < 40 && y >= 14 && y < 34 {
				c = 220
			}
			img.SetRGBA(x, y, color.RGBA{R: c, G: c, B: c, A: 255})
		}
	}
	return img
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.New(context.Background())
	cfg.DataDir = dir
	cfg.Storage.Path = filepath.Join(dir, "episodecam.db")
	cfg.Recorder.EpisodeDir = filepath.Join(dir, "episodes")
	cfg.Motion.MinArea = 100
	cfg.Episode.ConfirmationThreshold = 3
	cfg.Episode.NoiseTolerance = 1
	cfg.Episode.CalmTimeout = time.Second
	cfg.Episode.GracePeriod = 2 * time.Second
	cfg.Worker.Stride = 1
	cfg.Worker.CaptureRetryDelay = time.Millisecond
	cfg.Worker.FPSWindow = 10
	return cfg
}

func newService(cfg *config.Config, src *scriptSource) *service.Service {
	return service.New(cfg,
		service.WithSource(src),
		service.WithClock(src.now),
		service.WithIDFunc(func(time.Time) string { return "ep_test" }),
	)
}

func eventTypes(evs []model.EventRecord) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Type)
	}
	return out
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that has not started", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		svc := newService(cfg, newScriptSource(1, 0, 0))

		Convey("Then reads report it is not started", func() {
			So(svc.Status(), ShouldBeNil)
			So(svc.ClassifierConfig().MinArea, ShouldEqual, 100)
			_, err := svc.ListEpisodes(ctx, model.EpisodeFilter{})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.UpdateConfig(ctx, motion.Update{})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, _, err = svc.Subscribe(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldBeFalse)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("When it starts", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then the data dir is locked against a second instance", func() {
				other := newService(cfg, newScriptSource(1, 0, 0))
				err := other.Start(ctx)
				So(errors.Is(err, service.ErrLocked), ShouldBeTrue)
				So(svc.Stop(ctx), ShouldBeNil)
			})

			Convey("Then stopping records both lifecycle events", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				<-svc.Done()
				So(svc.Err(), ShouldBeNil)

				restarted := newService(cfg, newScriptSource(1, 0, 0))
				So(restarted.Start(ctx), ShouldBeNil)
				evs, err := restarted.ListEvents(ctx, model.EventFilter{})
				So(err, ShouldBeNil)
				So(eventTypes(evs), ShouldContain, model.EventSystemStarted)
				So(eventTypes(evs), ShouldContain, model.EventSystemStopped)
				So(restarted.Stop(ctx), ShouldBeNil)
			})

			Convey("Then a stopped service cannot start again", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(errors.Is(svc.Start(ctx), service.ErrStopped), ShouldBeTrue)
				_, err := svc.Stats(ctx)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_RecordsEpisode(t *testing.T) {
	Convey("Given a running service over still, moving, then still frames", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		src := newScriptSource(1, 10, 20)
		svc := newService(cfg, src)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		select {
		case <-src.drained:
		case <-time.After(5 * time.Second):
		}

		Convey("Then one closed episode is stored", func() {
			eps, err := svc.ListEpisodes(ctx, model.EpisodeFilter{})
			So(err, ShouldBeNil)
			So(eps, ShouldHaveLength, 1)
			So(eps[0].EpisodeID, ShouldEqual, "ep_test")
			So(eps[0].MotionDetected, ShouldBeTrue)
			So(eps[0].Closed(), ShouldBeTrue)
			So(eps[0].FilePath, ShouldEqual, filepath.Join(cfg.Recorder.EpisodeDir, "ep_test"))
		})

		Convey("Then its frames and metadata are on disk", func() {
			_, err := os.Stat(filepath.Join(cfg.Recorder.EpisodeDir, "ep_test", "metadata.json"))
			So(err, ShouldBeNil)
			frames, err := filepath.Glob(filepath.Join(cfg.Recorder.EpisodeDir, "ep_test", "images", "*.jpg"))
			So(err, ShouldBeNil)
			So(len(frames), ShouldBeGreaterThan, 0)
		})

		Convey("Then the episode events are logged", func() {
			evs, err := svc.ListEvents(ctx, model.EventFilter{})
			So(err, ShouldBeNil)
			got := eventTypes(evs)
			So(got, ShouldContain, model.EventSystemStarted)
			So(got, ShouldContain, model.EventMotionDetected)
			So(got, ShouldContain, model.EventEpisodeStarted)
			So(got, ShouldContain, model.EventEpisodeSaved)
		})

		Convey("Then status and stats reflect the run", func() {
			st := svc.Status()
			So(st, ShouldNotBeNil)
			So(st.CameraActive, ShouldBeTrue)
			So(st.FramesCaptured, ShouldEqual, 31)

			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["totalEpisodes"], ShouldEqual, 1)
			So(stats["source"], ShouldEqual, config.SourceSynthetic)
		})

		Convey("Then the classifier can be retuned at runtime", func() {
			area := 0
			tuned, err := svc.UpdateConfig(ctx, motion.Update{MinArea: &area})
			So(errors.Is(err, types.ErrConfig), ShouldBeTrue)
			So(tuned.MinArea, ShouldEqual, 100)

			area = 250
			tuned, err = svc.UpdateConfig(ctx, motion.Update{MinArea: &area})
			So(err, ShouldBeNil)
			So(tuned.MinArea, ShouldEqual, 250)
			So(svc.ClassifierConfig().MinArea, ShouldEqual, 250)
		})
	})
}

func TestService_StopPastDeadline(t *testing.T) {
	Convey("Given a service whose frames end mid-episode", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		src := newScriptSource(1, 8, 0)
		svc := newService(cfg, src)
		So(svc.Start(ctx), ShouldBeNil)

		select {
		case <-src.drained:
		case <-time.After(5 * time.Second):
		}
		So(svc.Status().Episode, ShouldNotBeNil)

		Convey("When it is stopped with an expired deadline", func() {
			expired, cancel := context.WithCancel(ctx)
			cancel()
			err := svc.Stop(expired)

			Convey("Then the worker has exited before Stop returns", func() {
				So(err == nil || errors.Is(err, context.Canceled), ShouldBeTrue)
				select {
				case <-svc.Done():
				default:
					So("worker still running", ShouldBeEmpty)
				}
			})

			Convey("Then the shutdown episode was persisted", func() {
				restarted := newService(cfg, newScriptSource(1, 0, 0))
				So(restarted.Start(ctx), ShouldBeNil)
				defer func() { _ = restarted.Stop(ctx) }()

				eps, listErr := restarted.ListEpisodes(ctx, model.EpisodeFilter{})
				So(listErr, ShouldBeNil)
				So(eps, ShouldHaveLength, 1)
				So(eps[0].Closed(), ShouldBeTrue)
				_, statErr := os.Stat(filepath.Join(cfg.Recorder.EpisodeDir, "ep_test", "metadata.json"))
				So(statErr, ShouldBeNil)
			})
		})
	})
}
