// Package source provides frame sources for the camera worker: a synthetic
// scene generator and a directory replayer.
//
// Capture paces itself to the configured frame rate, stamps each frame at
// capture time and numbers frames monotonically. A miss is reported as
// types.ErrTransientCapture; the caller decides when to retry.
package source

import (
	"context"
	"time"
)

// pacer spaces captures at a fixed interval.
type pacer struct {
	interval time.Duration
	next     time.Time
}

func newPacer(fps float64) pacer {
	if fps <= 0 {
		return pacer{}
	}
	return pacer{interval: time.Duration(float64(time.Second) / fps)}
}

// wait blocks until the next slot. A caller that fell behind by more than
// one interval is resynchronised instead of bursting to catch up.
func (p *pacer) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil || p.interval <= 0 {
		return err
	}
	now := time.Now()
	if p.next.IsZero() || now.Sub(p.next) > p.interval {
		p.next = now
	}
	if d := p.next.Sub(now); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	p.next = p.next.Add(p.interval)
	return nil
}
