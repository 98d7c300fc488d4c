package types

import "errors"

// Error taxonomy shared by the core and its collaborators. Wrap these with
// fmt.Errorf("...: %w", ErrX) and classify with errors.Is.
var (
	// ErrInput marks an invalid or empty frame handed to the classifier.
	ErrInput = errors.New("invalid input frame")
	// ErrConfig marks an out-of-range tuning parameter; the previous value is kept.
	ErrConfig = errors.New("invalid configuration value")
	// ErrTransientCapture marks a frame source miss; the loop retries.
	ErrTransientCapture = errors.New("no frame available")
	// ErrPersistence marks a recorder or database failure.
	ErrPersistence = errors.New("persistence failed")
	// ErrFatal marks an unrecoverable setup failure that halts the worker.
	ErrFatal = errors.New("fatal setup failure")
)
