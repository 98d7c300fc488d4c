package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/episodecam/internal/testscene"
)

const defaultTestTimeout = 10 * time.Minute

func main() {
	var (
		outputDir = flag.String("out", "scene", "Directory to write frames to")
		format    = flag.String("format", testscene.DefaultFormat, "Frame encoding: jpeg, png or bmp")
		width     = flag.Int("width", testscene.DefaultWidth, "Frame width")
		height    = flag.Int("height", testscene.DefaultHeight, "Frame height")
		bursts    = flag.Int("bursts", testscene.DefaultBursts, "Number of motion bursts")
		calm      = flag.Int("calm", testscene.DefaultCalmFrames, "Still frames around each burst")
		motion    = flag.Int("motion", testscene.DefaultMotionFrames, "Frames per burst")
		fps       = flag.Float64("fps", testscene.DefaultFPS, "Rate the service plays the frames at")
		baseURL   = flag.String("url", "", "Base URL of a running service; empty skips verification")
		wait      = flag.Duration("wait", testscene.DefaultWaitTimeout, "How long to wait for episodes")
		poll      = flag.Duration("poll", testscene.DefaultPollInterval, "Delay between episode polls")
		timeout   = flag.Duration("timeout", testscene.DefaultTimeout, "HTTP request timeout")
		logFile   = flag.String("log", "", "Log file for test output (default: scene_log_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testscene.ShowHelp()
		return
	}

	if err := testscene.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testscene.Config{
		OutputDir:    *outputDir,
		Format:       *format,
		Width:        *width,
		Height:       *height,
		Bursts:       *bursts,
		CalmFrames:   *calm,
		MotionFrames: *motion,
		FPS:          *fps,
		BaseURL:      *baseURL,
		WaitTimeout:  *wait,
		PollInterval: *poll,
		Timeout:      *timeout,
		LogFile:      *logFile,
		Verbose:      *verbose,
	}

	if err := testscene.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
