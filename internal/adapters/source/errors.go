package source

import "errors"

// Sentinel errors for frame sources.
var (
	ErrNotStarted = errors.New("source not started")
	ErrNoFrames   = errors.New("no image files found")
)
