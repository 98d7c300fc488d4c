package testscene

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/image/bmp"

	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/pkg/logger"
)

func init() {
	_ = logger.Init(logger.WithWriter(&bytes.Buffer{}))
}

func sceneConfig(dir, format string) *Config {
	return &Config{
		OutputDir:    dir,
		Format:       format,
		Width:        16,
		Height:       16,
		Bursts:       1,
		CalmFrames:   2,
		MotionFrames: 2,
		FPS:          10,
		WaitTimeout:  2 * time.Second,
		PollInterval: 10 * time.Millisecond,
		Timeout:      time.Second,
	}
}

func closedEpisode(id string, start time.Time, seconds float64) model.EpisodeRecord {
	end := start.Add(time.Duration(seconds * float64(time.Second)))
	return model.EpisodeRecord{
		EpisodeID:       id,
		StartTime:       start,
		EndTime:         &end,
		DurationSeconds: &seconds,
		MotionDetected:  true,
	}
}

func TestPlan(t *testing.T) {
	Convey("Plan surrounds every burst with calm frames", t, func() {
		cfg := sceneConfig("", FormatPNG)
		cfg.Bursts, cfg.CalmFrames = 2, 3

		scene, err := Plan(cfg)
		So(err, ShouldBeNil)
		So(scene.Frames, ShouldEqual, 13)
		So(scene.Bursts, ShouldResemble, []Burst{{Start: 3, End: 5}, {Start: 8, End: 10}})
	})

	Convey("Plan rejects degenerate shapes", t, func() {
		cfg := sceneConfig("", FormatPNG)
		cfg.Width = 8
		_, err := Plan(cfg)
		So(errors.Is(err, ErrInvalidScene), ShouldBeTrue)

		cfg = sceneConfig("", FormatPNG)
		cfg.MotionFrames = 0
		_, err = Plan(cfg)
		So(errors.Is(err, ErrInvalidScene), ShouldBeTrue)
	})
}

func TestGenerate(t *testing.T) {
	Convey("Given an empty output directory", t, func() {
		dir := filepath.Join(t.TempDir(), "scene")
		ctx := context.Background()

		Convey("PNG frames are still outside bursts and change inside them", func() {
			stats := &Stats{}
			scene, err := Generate(ctx, sceneConfig(dir, FormatPNG), stats)
			So(err, ShouldBeNil)
			So(scene.Frames, ShouldEqual, 5)
			So(scene.Files, ShouldHaveLength, 5)
			So(scene.Files[0], ShouldEqual, "frame_000000.png")
			So(stats.FramesWritten, ShouldEqual, 5)
			So(stats.EpisodesExpected, ShouldEqual, 1)

			read := func(i int) []byte {
				data, err := os.ReadFile(filepath.Join(dir, scene.Files[i]))
				So(err, ShouldBeNil)
				return data
			}
			So(bytes.Equal(read(0), read(1)), ShouldBeTrue)
			So(bytes.Equal(read(0), read(4)), ShouldBeTrue)
			So(bytes.Equal(read(0), read(2)), ShouldBeFalse)
		})

		Convey("BMP frames decode at the configured size", func() {
			scene, err := Generate(ctx, sceneConfig(dir, FormatBMP), nil)
			So(err, ShouldBeNil)

			f, err := os.Open(filepath.Join(dir, scene.Files[2]))
			So(err, ShouldBeNil)
			defer f.Close()
			img, err := bmp.Decode(f)
			So(err, ShouldBeNil)
			So(img.Bounds(), ShouldResemble, image.Rect(0, 0, 16, 16))
		})

		Convey("JPEG frames use the .jpg extension", func() {
			scene, err := Generate(ctx, sceneConfig(dir, FormatJPEG), nil)
			So(err, ShouldBeNil)
			So(filepath.Ext(scene.Files[0]), ShouldEqual, ".jpg")
		})

		Convey("An unknown format is rejected before anything is written", func() {
			_, err := Generate(ctx, sceneConfig(dir, "gif"), nil)
			So(errors.Is(err, ErrInvalidScene), ShouldBeTrue)
			_, statErr := os.Stat(dir)
			So(os.IsNotExist(statErr), ShouldBeTrue)
		})

		Convey("A canceled context stops generation", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := Generate(cctx, sceneConfig(dir, FormatPNG), nil)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestCountEpisodes(t *testing.T) {
	Convey("countEpisodes ignores episodes from before the run", t, func() {
		since := time.Unix(1_700_000_000, 0)
		open := model.EpisodeRecord{EpisodeID: "open", StartTime: since.Add(time.Minute)}
		eps := []model.EpisodeRecord{
			closedEpisode("old", since.Add(-time.Minute), 5),
			closedEpisode("new", since.Add(time.Second), 5),
			open,
		}

		found, closed := countEpisodes(eps, since)
		So(found, ShouldHaveLength, 2)
		So(closed, ShouldHaveLength, 1)
		So(closed[0].EpisodeID, ShouldEqual, "new")
	})
}

func TestVerifyEpisodes(t *testing.T) {
	Convey("verifyEpisodes requires episodes to cover half a burst", t, func() {
		ctx := context.Background()
		cfg := sceneConfig("", FormatPNG)
		cfg.MotionFrames = 20
		start := time.Now()

		So(verifyEpisodes(ctx, cfg, 10, []model.EpisodeRecord{closedEpisode("a", start, 3)}), ShouldBeNil)

		err := verifyEpisodes(ctx, cfg, 10, []model.EpisodeRecord{closedEpisode("b", start, 0.5)})
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "episode b lasted 0.50s")

		So(verifyEpisodes(ctx, cfg, 10, []model.EpisodeRecord{{EpisodeID: "c"}}), ShouldNotBeNil)
		So(verifyEpisodes(ctx, cfg, 0, []model.EpisodeRecord{{EpisodeID: "c"}}), ShouldBeNil)
	})
}

// episodeServer serves /healthz and reports one closed episode per burst
// from the third episode poll on.
func episodeServer(t *testing.T, bursts int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/episodes", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("motion_only") != "true" {
			http.Error(w, "motion_only missing", http.StatusBadRequest)
			return
		}
		resp := EpisodesResponse{Episodes: []model.EpisodeRecord{}}
		if polls.Add(1) >= 3 {
			for i := 0; i < bursts; i++ {
				resp.Episodes = append(resp.Episodes, closedEpisode("ep", time.Now(), 2))
			}
		}
		resp.Count = len(resp.Episodes)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestWaitForEpisodes(t *testing.T) {
	Convey("Given a service that records episodes after a few polls", t, func() {
		ctx := context.Background()
		srv, polls := episodeServer(t, 2)
		cfg := sceneConfig("", FormatPNG)
		cfg.BaseURL = srv.URL
		stats := &Stats{EpisodesExpected: 2}

		eps, err := waitForEpisodes(ctx, cfg, time.Now().Add(-time.Minute), stats)
		So(err, ShouldBeNil)
		So(eps, ShouldHaveLength, 2)
		So(polls.Load(), ShouldEqual, 3)
		So(stats.Polls, ShouldEqual, 3)
		So(stats.EpisodesClosed, ShouldEqual, 2)
	})

	Convey("Waiting gives up after the wait timeout", t, func() {
		srv, _ := episodeServer(t, 0)
		cfg := sceneConfig("", FormatPNG)
		cfg.BaseURL = srv.URL
		cfg.WaitTimeout = 50 * time.Millisecond

		_, err := waitForEpisodes(context.Background(), cfg, time.Now(), &Stats{EpisodesExpected: 1})
		So(errors.Is(err, ErrEpisodesMissing), ShouldBeTrue)
	})
}

func TestRun(t *testing.T) {
	Convey("Run generates the scene, writes the manifest and verifies the episodes", t, func() {
		srv, _ := episodeServer(t, 1)
		dir := t.TempDir()
		cfg := sceneConfig(dir, FormatPNG)
		cfg.BaseURL = srv.URL

		So(Run(context.Background(), cfg), ShouldBeNil)

		data, err := os.ReadFile(filepath.Join(dir, ManifestName))
		So(err, ShouldBeNil)
		var scene Scene
		So(json.Unmarshal(data, &scene), ShouldBeNil)
		So(scene.Frames, ShouldEqual, 5)
		So(scene.Bursts, ShouldHaveLength, 1)
	})

	Convey("Run fails fast when the service is down", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		cfg := sceneConfig(t.TempDir(), FormatPNG)
		cfg.BaseURL = srv.URL

		err := Run(context.Background(), cfg)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "service health check failed")
	})
}
