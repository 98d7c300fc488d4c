// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Sections map one to one onto the components they configure.
// - External errors must be wrapped via this package's error sentinels.
package config

import (
	"context"
	"time"
)

// Source kinds.
const (
	SourceSynthetic = "synthetic"
	SourceDirectory = "directory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DataDir holds the process lock and is the default parent of the
	// episode directory and the database.
	DataDir string `koanf:"data_dir"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	Motion   MotionConfig   `koanf:"motion"`
	Episode  EpisodeConfig  `koanf:"episode"`
	Worker   WorkerConfig   `koanf:"worker"`
	Source   SourceConfig   `koanf:"source"`
	Recorder RecorderConfig `koanf:"recorder"`
	Storage  StorageConfig  `koanf:"storage"`
	Feed     FeedConfig     `koanf:"feed"`
	Notifier NotifierConfig `koanf:"notifier"`
}

// MotionConfig tunes the motion classifier.
type MotionConfig struct {
	Threshold            int     `koanf:"motion_threshold"`
	MinArea              int     `koanf:"min_area"`
	BlurKernel           int     `koanf:"blur_kernel"`
	BackgroundUpdateRate float64 `koanf:"background_update_rate"`
	MaxDetectHeight      int     `koanf:"max_detect_height"`
	DetectHeight         int     `koanf:"detect_height"`
}

// EpisodeConfig tunes the episode controller.
type EpisodeConfig struct {
	ConfirmationThreshold int           `koanf:"confirmation_threshold"`
	NoiseTolerance        int           `koanf:"noise_tolerance"`
	CalmTimeout           time.Duration `koanf:"calm_timeout"`
	GracePeriod           time.Duration `koanf:"grace_period"`
	MaxNegativeFrames     int           `koanf:"max_negative_frames"`
	// MaxEpisodeDuration of zero means three calm timeouts.
	MaxEpisodeDuration time.Duration `koanf:"max_episode_duration"`
}

// WorkerConfig tunes the camera worker loop.
type WorkerConfig struct {
	// Stride classifies every Nth frame.
	Stride              int           `koanf:"stride"`
	CaptureRetryDelay   time.Duration `koanf:"capture_retry_delay"`
	FPSWindow           int           `koanf:"fps_window"`
	CollaboratorTimeout time.Duration `koanf:"collaborator_timeout"`
}

// SourceConfig selects and tunes the frame source.
type SourceConfig struct {
	Kind   string  `koanf:"kind"`
	FPS    float64 `koanf:"fps"`
	Width  int     `koanf:"width"`
	Height int     `koanf:"height"`

	// Dir and Loop apply to the directory source.
	Dir  string `koanf:"dir"`
	Loop bool   `koanf:"loop"`

	// BurstEvery and BurstLength shape the synthetic motion bursts.
	BurstEvery  time.Duration `koanf:"burst_every"`
	BurstLength time.Duration `koanf:"burst_length"`
}

// RecorderConfig configures episode recording on disk.
type RecorderConfig struct {
	EpisodeDir  string `koanf:"episode_dir"`
	JPEGQuality int    `koanf:"jpeg_quality"`
}

// StorageConfig configures the SQLite store.
type StorageConfig struct {
	Path        string        `koanf:"path"`
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

// FeedConfig configures the live MJPEG feed.
type FeedConfig struct {
	MaxFPS      float64 `koanf:"max_fps"`
	JPEGQuality int     `koanf:"jpeg_quality"`
	// Buffer is the per-subscriber frame buffer.
	Buffer int `koanf:"buffer"`
}

// NotifierConfig configures event notification.
type NotifierConfig struct {
	DedupeWindow time.Duration `koanf:"dedupe_window"`
	DedupeSize   int           `koanf:"dedupe_size"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		DataDir:         "./data",
		ShutdownTimeout: 10 * time.Second,
		Motion: MotionConfig{
			Threshold:            30,
			MinArea:              500,
			BlurKernel:           5,
			BackgroundUpdateRate: 0.1,
			MaxDetectHeight:      720,
			DetectHeight:         360,
		},
		Episode: EpisodeConfig{
			ConfirmationThreshold: 10,
			NoiseTolerance:        3,
			CalmTimeout:           2 * time.Second,
			GracePeriod:           5 * time.Second,
			MaxNegativeFrames:     5,
		},
		Worker: WorkerConfig{
			Stride:              2,
			CaptureRetryDelay:   100 * time.Millisecond,
			FPSWindow:           30,
			CollaboratorTimeout: 5 * time.Second,
		},
		Source: SourceConfig{
			Kind:        SourceSynthetic,
			FPS:         30,
			Width:       640,
			Height:      480,
			Loop:        true,
			BurstEvery:  20 * time.Second,
			BurstLength: 4 * time.Second,
		},
		Recorder: RecorderConfig{
			EpisodeDir:  "./data/episodes",
			JPEGQuality: 85,
		},
		Storage: StorageConfig{
			Path:        "./data/episodecam.db",
			BusyTimeout: 5 * time.Second,
		},
		Feed: FeedConfig{
			MaxFPS:      10,
			JPEGQuality: 70,
			Buffer:      2,
		},
		Notifier: NotifierConfig{
			DedupeWindow: 10 * time.Second,
			DedupeSize:   1024,
		},
	}
}
