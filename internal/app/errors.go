package service

import "errors"

// Sentinel errors for the service lifecycle.
var (
	ErrLocked     = errors.New("another instance holds the data directory lock")
	ErrNotStarted = errors.New("service not started")
	ErrStopped    = errors.New("service already stopped")
)
