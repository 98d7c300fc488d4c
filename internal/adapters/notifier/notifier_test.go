package notifier_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/episodecam/internal/adapters/notifier"
	"github.com/okian/episodecam/internal/domain/dedupe"
	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStore struct {
	mu     sync.Mutex
	events []model.EventRecord
	err    error
}

func (f *fakeStore) AddEvent(_ context.Context, ev model.EventRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.events = append(f.events, ev)
	return int64(len(f.events)), nil
}

func (f *fakeStore) stored() []model.EventRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.EventRecord(nil), f.events...)
}

func TestNotifier(t *testing.T) {
	Convey("Given a notifier with a controllable clock", t, func() {
		ctx := context.Background()
		var logs bytes.Buffer
		So(logger.Init(logger.WithWriter(&logs), logger.WithFormat("json")), ShouldBeNil)

		now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		store := &fakeStore{}
		n := notifier.New(store, notifier.WithDeduper(
			dedupe.NewWindowDeduper(dedupe.WithWindow(10*time.Second), dedupe.WithClock(clock)),
		))

		Convey("When a system event is recorded", func() {
			n.SystemStarted(ctx)

			Convey("Then it is stored with info severity and logged", func() {
				evs := store.stored()
				So(evs, ShouldHaveLength, 1)
				So(evs[0].Type, ShouldEqual, model.EventSystemStarted)
				So(evs[0].Severity, ShouldEqual, model.SeverityInfo)
				So(evs[0].EpisodeID, ShouldBeNil)
				So(logs.String(), ShouldContainSubstring, "system started")
			})
		})

		Convey("When the same error repeats inside the window", func() {
			boom := errors.New("camera unplugged")
			n.Error(ctx, "source", boom)
			n.Error(ctx, "source", boom)
			now = now.Add(5 * time.Second)
			n.Error(ctx, "source", boom)

			Convey("Then only the first is recorded", func() {
				evs := store.stored()
				So(evs, ShouldHaveLength, 1)
				So(evs[0].Message, ShouldEqual, "source: camera unplugged")
				So(evs[0].Severity, ShouldEqual, model.SeverityError)
			})

			Convey("Then it passes again once the window has elapsed", func() {
				now = now.Add(10 * time.Second)
				n.Error(ctx, "source", boom)
				So(store.stored(), ShouldHaveLength, 2)
			})
		})

		Convey("When different messages share a type", func() {
			n.Warning(ctx, "worker", "slow frame")
			n.Warning(ctx, "worker", "capture miss")

			Convey("Then both are recorded", func() {
				So(store.stored(), ShouldHaveLength, 2)
			})
		})

		Convey("When motion is reported with a changing area", func() {
			id := int64(7)
			ok1 := n.Event(ctx, model.EventMotionDetected, "motion detected (area: 900 px)", model.SeverityInfo, &id)
			n.MotionDetected(ctx, 1200, &id)
			other := int64(8)
			n.MotionDetected(ctx, 1500, &other)

			Convey("Then repeats within one episode are suppressed", func() {
				So(ok1, ShouldBeTrue)
				evs := store.stored()
				So(evs, ShouldHaveLength, 2)
				So(*evs[0].EpisodeID, ShouldEqual, 7)
				So(*evs[1].EpisodeID, ShouldEqual, 8)
			})
		})

		Convey("When episode lifecycle events repeat", func() {
			id := int64(3)
			n.EpisodeStarted(ctx, "ep_a", &id)
			n.EpisodeStarted(ctx, "ep_a", &id)
			n.EpisodeSaved(ctx, "ep_a", 42, 3.5, &id)
			n.EpisodeSaved(ctx, "ep_a", 42, 3.5, &id)

			Convey("Then none are suppressed", func() {
				evs := store.stored()
				So(evs, ShouldHaveLength, 4)
				So(evs[2].Message, ShouldEqual, "episode saved: ep_a (42 frames, 3.50s)")
			})
		})

		Convey("When the store fails", func() {
			store.err = errors.New("disk full")
			ok := n.Event(ctx, "custom", "hello", model.SeverityCritical, nil)

			Convey("Then the failure is logged and swallowed", func() {
				So(ok, ShouldBeTrue)
				So(store.stored(), ShouldBeEmpty)
				So(logs.String(), ShouldContainSubstring, "failed to store event")
				So(strings.Count(logs.String(), "critical"), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When Error is given a nil error", func() {
			n.Error(ctx, "source", nil)

			Convey("Then nothing is recorded", func() {
				So(store.stored(), ShouldBeEmpty)
			})
		})

		Convey("When the notifier has no store", func() {
			bare := notifier.New(nil)

			Convey("Then events are still accepted", func() {
				So(bare.Event(ctx, "custom", "only logged", "", nil), ShouldBeTrue)
			})
		})
	})
}
