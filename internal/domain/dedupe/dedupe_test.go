package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	dedupe "github.com/okian/episodecam/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestWindowDeduper(t *testing.T) {
	Convey("Given a deduper with a 10s window", t, func() {
		ctx := context.Background()
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		d := dedupe.NewWindowDeduper(dedupe.WithWindow(10*time.Second), dedupe.WithClock(clock.Now))

		Convey("When a key is seen for the first time", func() {
			seen := d.SeenAndRecord(ctx, "error|camera offline")

			Convey("Then it passes and is recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the key repeats inside the window", func() {
			d.SeenAndRecord(ctx, "k")
			clock.Advance(9 * time.Second)

			Convey("Then it is suppressed", func() {
				So(d.SeenAndRecord(ctx, "k"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the key repeats after the window", func() {
			d.SeenAndRecord(ctx, "k")
			clock.Advance(10 * time.Second)

			Convey("Then it passes again", func() {
				So(d.SeenAndRecord(ctx, "k"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When older keys expire while newer ones stay", func() {
			d.SeenAndRecord(ctx, "a")
			clock.Advance(6 * time.Second)
			d.SeenAndRecord(ctx, "b")
			clock.Advance(5 * time.Second)

			Convey("Then only the expired tail is dropped", func() {
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})
		})

		Convey("When a key is unrecorded", func() {
			d.SeenAndRecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.Unrecord(ctx, "a")
			d.Unrecord(ctx, "missing")

			Convey("Then the next occurrence passes", func() {
				So(d.Size(), ShouldEqual, 1)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
			})
		})
	})
}

func TestBoundedDeduper(t *testing.T) {
	Convey("Given a deduper bounded to three keys without a window", t, func() {
		ctx := context.Background()
		d := dedupe.NewWindowDeduper(dedupe.WithMaxSize(3), dedupe.WithWindow(0))
		for _, k := range []string{"k1", "k2", "k3"} {
			So(d.SeenAndRecord(ctx, k), ShouldBeFalse)
		}

		Convey("When a fourth key arrives", func() {
			So(d.SeenAndRecord(ctx, "k4"), ShouldBeFalse)

			Convey("Then the oldest key is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "k3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewWindowDeduper(dedupe.WithMaxSize(0), dedupe.WithWindow(0))

		Convey("When many keys are recorded", func() {
			const n = 1000
			for i := 0; i < n; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i)), ShouldBeFalse)
			}

			Convey("Then all of them are kept", func() {
				So(d.Size(), ShouldEqual, int64(n))
				So(d.SeenAndRecord(ctx, "k-0"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper shared by several goroutines", t, func() {
		d := dedupe.NewWindowDeduper(dedupe.WithMaxSize(0), dedupe.WithWindow(time.Hour))
		const goroutines = 10
		const perGoroutine = 100

		Convey("When they record distinct keys concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for j := 0; j < perGoroutine; j++ {
						d.SeenAndRecord(context.Background(), fmt.Sprintf("k-%d-%d", id, j))
					}
				}(i)
			}
			wg.Wait()

			Convey("Then every key is recorded once", func() {
				So(d.Size(), ShouldEqual, int64(goroutines*perGoroutine))
			})
		})
	})
}
