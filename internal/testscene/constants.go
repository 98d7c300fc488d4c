package testscene

import "time"

// Default scene shape. At 15 fps the calm gap of 150 frames is 10s, longer
// than the default calm timeout plus grace period, so each burst becomes
// its own episode.
const (
	DefaultWidth        = 320
	DefaultHeight       = 240
	DefaultBursts       = 3
	DefaultCalmFrames   = 150
	DefaultMotionFrames = 45
	DefaultFPS          = 15.0
	DefaultFormat       = FormatJPEG
)

// Frame encodings.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatBMP  = "bmp"
)

// Verification defaults.
const (
	DefaultWaitTimeout  = 2 * time.Minute
	DefaultPollInterval = time.Second
	DefaultTimeout      = 10 * time.Second
)

const jpegQuality = 90
