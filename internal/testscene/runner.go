package testscene

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/episodecam/pkg/logger"
)

// ManifestName is written next to the frames and describes the bursts.
const ManifestName = "scene.json"

// Run generates the scene and, when a base URL is set, waits for the
// service to record one episode per burst.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting episodecam scene test",
		logger.String("outputDir", config.OutputDir),
		logger.String("format", config.Format),
		logger.Int("bursts", config.Bursts),
		logger.Int("calmFrames", config.CalmFrames),
		logger.Int("motionFrames", config.MotionFrames),
		logger.String("baseURL", config.BaseURL),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if config.BaseURL != "" {
		if err := checkServiceHealth(ctx, config); err != nil {
			return fmt.Errorf("service health check failed: %w", err)
		}
	}

	// Step 2: Generate frames
	scene, err := Generate(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("scene generation failed: %w", err)
	}

	// Step 3: Save manifest
	if err := saveManifest(scene); err != nil {
		logger.Get().Warn(ctx, "failed to save scene manifest", logger.Error(err))
	}

	// Step 4: Wait for episodes and verify them
	if config.BaseURL != "" {
		eps, err := waitForEpisodes(ctx, config, stats.StartTime, stats)
		if err != nil {
			return fmt.Errorf("episode wait failed: %w", err)
		}
		if err := verifyEpisodes(ctx, config, config.FPS, eps); err != nil {
			return fmt.Errorf("episode verification failed: %w", err)
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "scene test completed successfully")
	return nil
}

func saveManifest(scene Scene) error {
	data, err := json.MarshalIndent(scene, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(scene.Dir, ManifestName), data, filePermission)
}

// displayFinalStats logs the run summary.
func displayFinalStats(stats *Stats) {
	logger.Get().Info(context.Background(), "final test statistics",
		logger.Duration("duration", stats.Duration),
		logger.Int("framesWritten", stats.FramesWritten),
		logger.Int("bursts", stats.BurstsGenerated),
		logger.Int("episodesExpected", stats.EpisodesExpected),
		logger.Int("episodesFound", stats.EpisodesFound),
		logger.Int("episodesClosed", stats.EpisodesClosed),
		logger.Int("polls", stats.Polls))
}
