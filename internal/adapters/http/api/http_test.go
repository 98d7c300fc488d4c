package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/episodecam/internal/adapters/http/api"
	"github.com/okian/episodecam/internal/adapters/mq/queue"
	"github.com/okian/episodecam/internal/adapters/repository"
	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/internal/domain/motion"
	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithWriter(&bytes.Buffer{}))
}

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// mockDeps implements api.Dependencies.
type mockDeps struct {
	mu          sync.Mutex
	status      *types.Status
	cfg         motion.Config
	updateErr   error
	episodes    []model.EpisodeRecord
	events      []model.EventRecord
	stats       model.Stats
	storeErr    error
	lastEpisode model.EpisodeFilter
	lastEvent   model.EventFilter
	frames      chan queue.Frame
	subErr      error
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		cfg:    motion.DefaultConfig(),
		frames: make(chan queue.Frame, 4),
		stats:  model.Stats{TotalEpisodes: 3, EpisodesWithMotion: 2, TotalEvents: 9},
	}
}

func (m *mockDeps) Status() *types.Status { return m.status }

func (m *mockDeps) ClassifierConfig() motion.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

func (m *mockDeps) UpdateConfig(_ context.Context, u motion.Update) (motion.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.cfg, m.updateErr
	}
	var errs []error
	if u.Threshold != nil {
		m.cfg.Threshold = *u.Threshold
	}
	if u.MinArea != nil {
		if *u.MinArea <= 0 {
			errs = append(errs, &motion.FieldError{Field: "min_area", Value: *u.MinArea, Reason: "must be positive"})
		} else {
			m.cfg.MinArea = *u.MinArea
		}
	}
	return m.cfg, errors.Join(errs...)
}

func (m *mockDeps) GetEpisode(_ context.Context, id string) (model.EpisodeRecord, error) {
	if m.storeErr != nil {
		return model.EpisodeRecord{}, m.storeErr
	}
	for _, ep := range m.episodes {
		if ep.EpisodeID == id {
			return ep, nil
		}
	}
	return model.EpisodeRecord{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
}

func (m *mockDeps) ListEpisodes(_ context.Context, f model.EpisodeFilter) ([]model.EpisodeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastEpisode = f
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	return m.episodes, nil
}

func (m *mockDeps) ListEvents(_ context.Context, f model.EventFilter) ([]model.EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastEvent = f
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	return m.events, nil
}

func (m *mockDeps) Stats(context.Context) (model.Stats, error) {
	if m.storeErr != nil {
		return model.Stats{}, m.storeErr
	}
	return m.stats, nil
}

func (m *mockDeps) Subscribe(context.Context) (<-chan queue.Frame, func(), error) {
	if m.subErr != nil {
		return nil, nil, m.subErr
	}
	return m.frames, func() {}, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func testImage() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 32, 24))
}

func newMux(deps *mockDeps) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"frames": 10}},
		api.WithClock(func() time.Time { return base.Add(90 * time.Second) }))
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("Then the metrics endpoint is served", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint is served", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"frames":10`)
		})

		Convey("Then unknown methods are refused", func() {
			w := do(mux, http.MethodDelete, "/api/episodes", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestStatusHandler(t *testing.T) {
	Convey("Given a running camera", t, func() {
		deps := newMockDeps()
		deps.status = &types.Status{
			CameraActive:   true,
			MotionDetected: true,
			FPS:            14.8,
			MotionCount:    12,
			StartTime:      base,
			State:          "active",
			Episode:        &types.EpisodeInfo{ID: "ep_a", FrameCount: 7, StartTime: base},
		}
		mux := newMux(deps)

		Convey("When the status is requested", func() {
			w := do(mux, http.MethodGet, "/api/status", "")
			var got map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)

			Convey("Then the snapshot, totals and uptime are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(got["camera_active"], ShouldEqual, true)
				So(got["motion_detected"], ShouldEqual, true)
				So(got["fps"], ShouldEqual, 14.8)
				So(got["motion_count"], ShouldEqual, 12)
				So(got["uptime_seconds"], ShouldEqual, 90)
				So(got["state"], ShouldEqual, "active")
				So(got["total_episodes"], ShouldEqual, 3)
				So(got["total_events"], ShouldEqual, 9)
				So(got["current_episode"].(map[string]any)["id"], ShouldEqual, "ep_a")
			})
		})

		Convey("When the store is down", func() {
			deps.storeErr = errors.New("locked")
			w := do(mux, http.MethodGet, "/api/status", "")

			Convey("Then the snapshot is still served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"total_episodes":0`)
			})
		})
	})
}

func TestEpisodesHandler(t *testing.T) {
	Convey("Given stored episodes", t, func() {
		deps := newMockDeps()
		deps.episodes = []model.EpisodeRecord{
			{ID: 2, EpisodeID: "ep_b", StartTime: base.Add(time.Minute), MotionDetected: true},
			{ID: 1, EpisodeID: "ep_a", StartTime: base, MotionDetected: true},
		}
		mux := newMux(deps)

		Convey("When listed without parameters", func() {
			w := do(mux, http.MethodGet, "/api/episodes", "")

			Convey("Then the defaults apply", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastEpisode.Limit, ShouldEqual, 100)
				So(deps.lastEpisode.Start.IsZero(), ShouldBeTrue)
				So(w.Body.String(), ShouldContainSubstring, `"count":2`)
			})
		})

		Convey("When listed with filters", func() {
			w := do(mux, http.MethodGet, "/api/episodes?start_date=2024-05-01&end_date=2024-05-02T10:00:00Z&motion_only=true&limit=5", "")

			Convey("Then they reach the store", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastEpisode.Limit, ShouldEqual, 5)
				So(deps.lastEpisode.MotionOnly, ShouldBeTrue)
				So(deps.lastEpisode.Start.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(deps.lastEpisode.End.Equal(time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When a bare end date is given", func() {
			do(mux, http.MethodGet, "/api/episodes?end_date=2024-05-01", "")

			Convey("Then it covers the whole day", func() {
				So(deps.lastEpisode.End.Equal(base.Truncate(24*time.Hour).Add(24*time.Hour-time.Nanosecond)), ShouldBeTrue)
			})
		})

		Convey("When parameters are invalid", func() {
			for _, q := range []string{"limit=0", "limit=1001", "limit=abc", "start_date=yesterday", "motion_only=maybe"} {
				w := do(mux, http.MethodGet, "/api/episodes?"+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When one episode is fetched", func() {
			found := do(mux, http.MethodGet, "/api/episodes/ep_a", "")
			missing := do(mux, http.MethodGet, "/api/episodes/ep_zz", "")

			Convey("Then known ids return it and unknown ids 404", func() {
				So(found.Code, ShouldEqual, http.StatusOK)
				So(found.Body.String(), ShouldContainSubstring, `"episode_id":"ep_a"`)
				So(missing.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the store fails", func() {
			deps.storeErr = errors.New("disk I/O error")
			w := do(mux, http.MethodGet, "/api/episodes", "")

			Convey("Then a server error is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestEventsHandler(t *testing.T) {
	Convey("Given stored events", t, func() {
		deps := newMockDeps()
		deps.events = []model.EventRecord{{ID: 1, Type: model.EventSystemStarted, Timestamp: base, Severity: model.SeverityInfo}}
		mux := newMux(deps)

		Convey("When filtered by type and severity", func() {
			w := do(mux, http.MethodGet, "/api/events?event_type=error&severity=WARN&limit=500", "")

			Convey("Then the filter is normalised", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastEvent, ShouldResemble, model.EventFilter{Limit: 500, Type: "error", Severity: model.SeverityWarning})
				So(w.Body.String(), ShouldContainSubstring, `"event_type":"system_started"`)
			})
		})

		Convey("When the limit or severity is out of range", func() {
			So(do(mux, http.MethodGet, "/api/events?limit=501", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/api/events?severity=loud", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestConfigHandler(t *testing.T) {
	Convey("Given the config endpoints", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When the config is read", func() {
			w := do(mux, http.MethodGet, "/api/config", "")

			Convey("Then the classifier tuning is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"motion_threshold":30`)
			})
		})

		Convey("When a partly invalid update is posted", func() {
			w := do(mux, http.MethodPost, "/api/config", `{"motion_threshold":40,"min_area":0}`)
			var got struct {
				Config   motion.Config `json:"config"`
				Rejected []string      `json:"rejected"`
				Errors   []string      `json:"errors"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)

			Convey("Then the applied config and rejected fields are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(got.Config.Threshold, ShouldEqual, 40)
				So(got.Config.MinArea, ShouldEqual, motion.DefaultMinArea)
				So(got.Rejected, ShouldResemble, []string{"min_area"})
				So(got.Errors, ShouldHaveLength, 1)
			})
		})

		Convey("When the body is empty or malformed", func() {
			So(do(mux, http.MethodPost, "/api/config", `{}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/api/config", `{"min_area":`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the worker is gone", func() {
			deps.updateErr = errors.New("worker stopped")
			w := do(mux, http.MethodPost, "/api/config", `{"min_area":800}`)

			Convey("Then the update is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestFeedHandler(t *testing.T) {
	Convey("Given a camera without frames", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("When a snapshot is requested", func() {
			w := do(mux, http.MethodGet, "/snapshot.jpg", "")

			Convey("Then it is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When a frame has been published", func() {
			deps.status = &types.Status{CameraActive: true, Frame: testImage()}
			w := do(mux, http.MethodGet, "/snapshot.jpg", "")

			Convey("Then the snapshot is a JPEG of the frame", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "image/jpeg")
				img, err := jpeg.Decode(w.Body)
				So(err, ShouldBeNil)
				So(img.Bounds().Dx(), ShouldEqual, 32)
			})
		})

		Convey("When the feed refuses subscribers", func() {
			deps.subErr = queue.ErrTooManySubscribers
			w := do(mux, http.MethodGet, "/video_feed", "")

			Convey("Then the stream is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When a client streams the feed", func() {
			srv := httptest.NewServer(mux)
			Reset(srv.Close)
			deps.frames <- types.Frame{Seq: 1, Image: testImage()}

			resp, err := http.Get(srv.URL + "/video_feed")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
			So(err, ShouldBeNil)

			Convey("Then each part is a JPEG frame", func() {
				So(mediaType, ShouldEqual, "multipart/x-mixed-replace")
				part, err := multipart.NewReader(resp.Body, params["boundary"]).NextPart()
				So(err, ShouldBeNil)
				So(part.Header.Get("Content-Type"), ShouldEqual, "image/jpeg")
				img, err := jpeg.Decode(part)
				So(err, ShouldBeNil)
				So(img.Bounds().Dy(), ShouldEqual, 24)
			})
		})
	})
}
