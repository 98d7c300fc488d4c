package dedupe

import "time"

// Option applies a configuration option to the deduper.
type Option func(*windowDeduper)

// WithMaxSize caps the number of remembered keys; the oldest is evicted
// first. Zero or negative means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *windowDeduper) {
		d.maxSize = maxSize
	}
}

// WithWindow sets how long a key suppresses repeats. Zero or negative keeps
// keys until they are evicted or unrecorded.
func WithWindow(window time.Duration) Option {
	return func(d *windowDeduper) {
		d.window = window
	}
}

// WithClock sets the time source.
func WithClock(clock func() time.Time) Option {
	return func(d *windowDeduper) {
		if clock != nil {
			d.clock = clock
		}
	}
}
