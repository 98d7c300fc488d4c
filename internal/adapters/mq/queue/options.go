package queue

// Option applies a configuration option to the Broadcaster.
type Option func(*Broadcaster)

// WithBufferSize sets how many frames each subscriber may lag behind before
// its oldest frame is dropped.
func WithBufferSize(size int) Option {
	return func(b *Broadcaster) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithMaxSubscribers caps concurrent subscribers. Zero means unbounded.
func WithMaxSubscribers(n int) Option {
	return func(b *Broadcaster) {
		if n >= 0 {
			b.maxSubscribers = n
		}
	}
}
