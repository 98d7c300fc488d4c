// Package dedupe suppresses repeated keys within a time window.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Default suppression settings.
const (
	DefaultWindow  = 10 * time.Second
	DefaultMaxSize = 1024
)

// Deduper remembers recently seen keys.
type Deduper interface {
	// SeenAndRecord reports whether key was recorded within the window. A key
	// that was not seen, or whose window expired, is recorded and false is
	// returned. Safe for concurrent use.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so the next occurrence passes.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// node is one remembered key in a newest-first list.
type node struct {
	key  string
	at   time.Time
	next *node
}

func (n *node) reset() {
	n.key = ""
	n.at = time.Time{}
	n.next = nil
}

// windowDeduper keeps keys in a newest-first linked list, so expired entries
// always form a tail that can be cut in one pass.
type windowDeduper struct {
	mu       sync.Mutex
	seen     map[string]*node
	head     *node
	window   time.Duration // <= 0 keeps keys until evicted
	maxSize  int           // <= 0 is unbounded
	clock    func() time.Time
	size     atomic.Int64
	nodePool sync.Pool
}

// NewWindowDeduper creates a deduper with DefaultWindow and DefaultMaxSize
// unless overridden.
func NewWindowDeduper(opts ...Option) Deduper {
	d := &windowDeduper{
		window:  DefaultWindow,
		maxSize: DefaultMaxSize,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	d.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return d
}

func (d *windowDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock()
	d.pruneExpired(now)

	if _, exists := d.seen[key]; exists {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}

	n := d.nodePool.Get().(*node)
	n.key = key
	n.at = now
	n.next = d.head
	d.head = n
	d.seen[key] = n
	d.size.Add(1)
	return false
}

func (d *windowDeduper) Unrecord(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	target, exists := d.seen[key]
	if !exists {
		return
	}
	if d.head == target {
		d.head = target.next
	} else {
		cur := d.head
		for cur != nil && cur.next != target {
			cur = cur.next
		}
		if cur != nil {
			cur.next = target.next
		}
	}
	d.release(target)
}

// pruneExpired cuts the tail of entries older than the window.
// Must be called with d.mu held.
func (d *windowDeduper) pruneExpired(now time.Time) {
	if d.window <= 0 {
		return
	}
	var prev *node
	for cur := d.head; cur != nil; prev, cur = cur, cur.next {
		if now.Sub(cur.at) < d.window {
			continue
		}
		if prev == nil {
			d.head = nil
		} else {
			prev.next = nil
		}
		for cur != nil {
			next := cur.next
			d.release(cur)
			cur = next
		}
		return
	}
}

// evictOldest drops the tail entry. Must be called with d.mu held.
func (d *windowDeduper) evictOldest() {
	if d.head == nil {
		return
	}
	if d.head.next == nil {
		d.release(d.head)
		d.head = nil
		return
	}
	prev := d.head
	for prev.next.next != nil {
		prev = prev.next
	}
	tail := prev.next
	prev.next = nil
	d.release(tail)
}

func (d *windowDeduper) release(n *node) {
	delete(d.seen, n.key)
	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}

func (d *windowDeduper) Size() int64 {
	return d.size.Load()
}
