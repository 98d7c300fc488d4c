package notifier

import (
	"github.com/okian/episodecam/internal/domain/dedupe"
	"github.com/okian/episodecam/pkg/logger"
)

// Option applies a configuration option to the Notifier.
type Option func(*Notifier)

// WithDeduper replaces the default 10s repeat suppressor.
func WithDeduper(d dedupe.Deduper) Option {
	return func(n *Notifier) {
		if d != nil {
			n.dedupe = d
		}
	}
}

// WithLogger sets a custom logger for the notifier.
func WithLogger(l logger.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}
