package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/episodecam/internal/config"
	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithWriter(&bytes.Buffer{}))
}

// execute runs the root command with args and returns its stdout.
func execute(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func useTempStore(t *testing.T) string {
	dir := t.TempDir()
	t.Setenv("EPISODECAM_DATA_DIR", dir)
	t.Setenv("EPISODECAM_STORAGE__PATH", filepath.Join(dir, "episodecam.db"))
	t.Setenv("EPISODECAM_RECORDER__EPISODE_DIR", filepath.Join(dir, "episodes"))
	return dir
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		cmd := newRootCommand()

		convey.Convey("Then every subcommand is registered", func() {
			names := map[string]bool{}
			for _, c := range cmd.Commands() {
				names[c.Name()] = true
			}
			for _, want := range []string{"serve", "migrate", "episodes", "events"} {
				convey.So(names[want], convey.ShouldBeTrue)
			}
			convey.So(cmd.PersistentFlags().Lookup("config"), convey.ShouldNotBeNil)
		})

		convey.Convey("When the config is invalid", func() {
			t.Setenv("EPISODECAM_ADDR", "")
			_, err := execute("migrate", "version")

			convey.Convey("Then the command fails before running", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr")
			})
		})
	})
}

func TestMigrateCommands(t *testing.T) {
	convey.Convey("Given an empty database", t, func() {
		useTempStore(t)

		convey.Convey("When migrating up and down", func() {
			up, err := execute("migrate", "up")
			convey.So(err, convey.ShouldBeNil)
			version, err := execute("migrate", "version")
			convey.So(err, convey.ShouldBeNil)
			down, err := execute("migrate", "down")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then each step reports the schema version", func() {
				convey.So(up, convey.ShouldEqual, "schema version 2\n")
				convey.So(version, convey.ShouldEqual, "schema version 2\n")
				convey.So(down, convey.ShouldEqual, "schema version 1\n")
			})
		})
	})
}

func TestListCommands(t *testing.T) {
	convey.Convey("Given a migrated, empty database", t, func() {
		useTempStore(t)
		_, err := execute("migrate", "up")
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then listing reports nothing recorded", func() {
			out, err := execute("episodes", "list", "--motion-only")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "No episodes recorded")

			out, err = execute("events", "list", "-t", model.EventError)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "No events logged")
		})

		convey.Convey("Then an unknown severity is rejected", func() {
			_, err := execute("events", "list", "--severity", "loud")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRenderTables(t *testing.T) {
	convey.Convey("Given stored records", t, func() {
		start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		dur := 7.5
		dbID := int64(4)

		convey.Convey("When episodes are rendered", func() {
			out := renderEpisodes([]model.EpisodeRecord{
				{ID: 4, EpisodeID: "ep_closed", StartTime: start, DurationSeconds: &dur, MotionDetected: true, FilePath: "/data/ep_closed"},
				{ID: 5, EpisodeID: "ep_open", StartTime: start.Add(time.Minute)},
			})

			convey.Convey("Then each row shows id, duration and motion", func() {
				convey.So(out, convey.ShouldContainSubstring, "ep_closed")
				convey.So(out, convey.ShouldContainSubstring, "7.5s")
				convey.So(out, convey.ShouldContainSubstring, "open")
				convey.So(out, convey.ShouldContainSubstring, "/data/ep_closed")
			})
		})

		convey.Convey("When events are rendered", func() {
			out := renderEvents([]model.EventRecord{
				{ID: 9, Type: model.EventEpisodeSaved, Timestamp: start, EpisodeID: &dbID, Message: "episode saved: ep_closed", Severity: model.SeverityInfo},
			})

			convey.Convey("Then the message and severity are shown", func() {
				convey.So(out, convey.ShouldContainSubstring, "episode saved: ep_closed")
				convey.So(out, convey.ShouldContainSubstring, "info")
			})
		})

		convey.Convey("When a table has no headers", func() {
			convey.So(renderTable(nil, [][]string{{"x"}}, nil), convey.ShouldBeEmpty)
		})
	})
}

func TestServe(t *testing.T) {
	convey.Convey("Given a synthetic camera configuration", t, func() {
		dir := t.TempDir()
		cfg := config.New(context.Background())
		cfg.Addr = "127.0.0.1:0"
		cfg.DataDir = dir
		cfg.Storage.Path = filepath.Join(dir, "episodecam.db")
		cfg.Recorder.EpisodeDir = filepath.Join(dir, "episodes")
		cfg.Source.Width, cfg.Source.Height = 64, 48

		convey.Convey("When the serve context is canceled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			err := serve(ctx, cfg)

			convey.Convey("Then it shuts down cleanly and releases the lock", func() {
				convey.So(err, convey.ShouldBeNil)

				again, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel2()
				convey.So(serve(again, cfg), convey.ShouldBeNil)
			})
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then it updates without panicking", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then it returns when its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})
	})
}
