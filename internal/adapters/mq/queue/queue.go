// Package queue fans annotated frames out to live feed subscribers.
//
// Publishing never blocks: a subscriber that falls behind loses its oldest
// buffered frame so it always converges on the newest one.
package queue

import (
	"context"
	"sync"

	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/metrics"
)

// DefaultBufferSize is the per-subscriber frame buffer.
const DefaultBufferSize = 2

// Frame is the payload flowing to subscribers.
type Frame = types.Frame

// Queue publishes frames to any number of subscribers.
type Queue interface {
	// Publish hands f to every subscriber and returns how many received it
	// without a drop.
	Publish(ctx context.Context, f Frame) int

	// Subscribe registers a subscriber. The channel is closed when cancel
	// is called, ctx ends, or the queue is closed.
	Subscribe(ctx context.Context) (frames <-chan Frame, cancel func(), err error)

	// Len returns the current number of subscribers.
	Len() int

	// Close disconnects all subscribers. Further subscriptions fail.
	Close() error

	IsClosed() bool
}

type subscriber struct {
	ch   chan Frame
	once sync.Once
}

// Broadcaster implements Queue with one buffered channel per subscriber.
type Broadcaster struct {
	bufferSize     int
	maxSubscribers int

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewBroadcaster creates a broadcaster with DefaultBufferSize and no
// subscriber limit unless overridden.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		bufferSize: DefaultBufferSize,
		subs:       make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	metrics.UpdateFeedSubscribers(0)
	return b
}

// Publish delivers f to every subscriber without blocking.
func (b *Broadcaster) Publish(ctx context.Context, f Frame) int { //nolint:gocritic // hugeParam: frames travel by value
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed || ctx.Err() != nil {
		return 0
	}
	delivered := 0
	for s := range b.subs {
		if offer(s.ch, f) {
			delivered++
			continue
		}
		metrics.RecordFeedFrameDropped()
	}
	return delivered
}

// offer sends f, evicting the oldest buffered frame if the buffer is full.
// It reports false when a frame was dropped.
func offer(ch chan Frame, f Frame) bool { //nolint:gocritic // hugeParam: frames travel by value
	select {
	case ch <- f:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
	return false
}

// Subscribe registers a new subscriber.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Frame, func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrClosed
	}
	if b.maxSubscribers > 0 && len(b.subs) >= b.maxSubscribers {
		b.mu.Unlock()
		metrics.RecordErrorByComponent("feed", "too_many_subscribers")
		return nil, nil, ErrTooManySubscribers
	}
	s := &subscriber{ch: make(chan Frame, b.bufferSize)}
	b.subs[s] = struct{}{}
	metrics.UpdateFeedSubscribers(len(b.subs))
	b.mu.Unlock()

	done := make(chan struct{})
	cancel := func() {
		b.remove(s)
		s.once.Do(func() { close(done) })
	}
	go func() {
		select {
		case <-ctx.Done():
			b.remove(s)
		case <-done:
		}
	}()
	return s.ch, cancel, nil
}

// remove unregisters s and closes its channel once.
func (b *Broadcaster) remove(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.ch)
	metrics.UpdateFeedSubscribers(len(b.subs))
}

// Len returns the current number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close disconnects every subscriber.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
	b.closed = true
	metrics.UpdateFeedSubscribers(0)
	return nil
}

// IsClosed returns true if the broadcaster has been closed.
func (b *Broadcaster) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
