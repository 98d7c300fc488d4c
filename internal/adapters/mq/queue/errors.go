package queue

import "errors"

// Sentinel kinds for broadcaster errors.
var (
	ErrClosed             = errors.New("broadcaster closed")
	ErrTooManySubscribers = errors.New("subscriber limit reached")
)
