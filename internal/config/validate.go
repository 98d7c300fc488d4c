package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/okian/episodecam/internal/domain/episode"
	"github.com/okian/episodecam/internal/domain/motion"
)

// Validate checks every setting and joins all failures. Each failure wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	bad := func(key string, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, key, fmt.Sprintf(format, args...)))
	}

	if c.Addr == "" {
		bad("addr", "must not be empty")
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ReplaceAll(strings.ToLower(c.LogLevel), "warning", "warn"))); err != nil {
		bad("log_level", "unknown level %q", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		bad("log_format", "must be text or json, got %q", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		bad("shutdown_timeout", "must be positive")
	}

	m := c.Motion
	if m.Threshold < 0 || m.Threshold > 255 {
		bad("motion.motion_threshold", "must be within [0,255], got %d", m.Threshold)
	}
	if m.MinArea <= 0 {
		bad("motion.min_area", "must be positive, got %d", m.MinArea)
	}
	if m.BlurKernel < 1 {
		bad("motion.blur_kernel", "must be positive, got %d", m.BlurKernel)
	}
	if m.BackgroundUpdateRate < 0 || m.BackgroundUpdateRate > 1 {
		bad("motion.background_update_rate", "must be within [0,1], got %v", m.BackgroundUpdateRate)
	}
	if m.MaxDetectHeight < 0 || m.DetectHeight < 0 || (m.MaxDetectHeight > 0 && m.DetectHeight > m.MaxDetectHeight) {
		bad("motion.detect_height", "must satisfy 0 <= detect_height <= max_detect_height")
	}

	if err := c.Episode.Controller().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: episode: %w", ErrInvalidConfig, err))
	}

	w := c.Worker
	if w.Stride < 1 {
		bad("worker.stride", "must be at least 1, got %d", w.Stride)
	}
	if w.CaptureRetryDelay < 0 {
		bad("worker.capture_retry_delay", "must not be negative")
	}
	if w.FPSWindow < 2 {
		bad("worker.fps_window", "must be at least 2, got %d", w.FPSWindow)
	}
	if w.CollaboratorTimeout <= 0 {
		bad("worker.collaborator_timeout", "must be positive")
	}

	s := c.Source
	switch s.Kind {
	case SourceSynthetic:
		if s.Width <= 0 || s.Height <= 0 {
			bad("source.width", "synthetic frames need a positive size")
		}
	case SourceDirectory:
		if s.Dir == "" {
			bad("source.dir", "required for the directory source")
		}
	default:
		bad("source.kind", "must be %s or %s, got %q", SourceSynthetic, SourceDirectory, s.Kind)
	}
	if s.FPS <= 0 {
		bad("source.fps", "must be positive")
	}

	if c.Recorder.EpisodeDir == "" {
		bad("recorder.episode_dir", "must not be empty")
	}
	if q := c.Recorder.JPEGQuality; q < 1 || q > 100 {
		bad("recorder.jpeg_quality", "must be within [1,100], got %d", q)
	}
	if c.Storage.Path == "" {
		bad("storage.path", "must not be empty")
	}
	if q := c.Feed.JPEGQuality; q < 1 || q > 100 {
		bad("feed.jpeg_quality", "must be within [1,100], got %d", q)
	}
	if c.Feed.MaxFPS <= 0 {
		bad("feed.max_fps", "must be positive")
	}
	if c.Feed.Buffer < 1 {
		bad("feed.buffer", "must be at least 1")
	}
	if c.Notifier.DedupeWindow < 0 {
		bad("notifier.dedupe_window", "must not be negative")
	}

	return errors.Join(errs...)
}

// Classifier converts the section into classifier tuning.
func (m MotionConfig) Classifier() motion.Config {
	return motion.Config{
		Threshold:            m.Threshold,
		MinArea:              m.MinArea,
		BlurKernel:           m.BlurKernel,
		BackgroundUpdateRate: m.BackgroundUpdateRate,
		MaxDetectHeight:      m.MaxDetectHeight,
		DetectHeight:         m.DetectHeight,
	}
}

// Controller converts the section into controller tuning.
func (e EpisodeConfig) Controller() episode.Config {
	return episode.Config{
		ConfirmationThreshold: e.ConfirmationThreshold,
		NoiseTolerance:        e.NoiseTolerance,
		CalmTimeout:           e.CalmTimeout,
		GracePeriod:           e.GracePeriod,
		MaxNegativeFrames:     e.MaxNegativeFrames,
		MaxEpisodeDuration:    e.MaxEpisodeDuration,
	}
}
