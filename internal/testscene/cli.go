package testscene

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/episodecam/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging sends log output to stdout and logFile. If logFile is
// empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "scene_log_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	out := io.MultiWriter(os.Stdout, file)
	if err := logger.Init(logger.WithWriter(out)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return nil
}

// ShowHelp prints usage information for the scene tool.
func ShowHelp() {
	os.Stdout.WriteString(`episodecam Scene Tool
=====================

Generates a directory of frames with a still background and motion bursts
separated by calm gaps. Point a directory source at it and, with -url, the
tool waits until the service has recorded one episode per burst.

Usage:
  go run ./cmd/test-scene [options]

Options:
  -out string
        Directory to write frames to (default "scene")
  -format string
        Frame encoding: jpeg, png or bmp (default "jpeg")
  -width int / -height int
        Frame size (default 320x240)
  -bursts int
        Number of motion bursts (default 3)
  -calm int
        Still frames around each burst (default 150)
  -motion int
        Frames per burst (default 45)
  -fps float
        Rate the service plays the frames at (default 15)
  -url string
        Base URL of a running service; empty skips verification
  -wait duration
        How long to wait for episodes (default 2m)
  -timeout duration
        HTTP request timeout (default 10s)
  -log string
        Log file (default: scene_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Generate frames only
  go run ./cmd/test-scene -out /tmp/scene

  # Generate and verify against a running service
  EPISODECAM_SOURCE__KIND=directory EPISODECAM_SOURCE__DIR=/tmp/scene episodecam serve &
  go run ./cmd/test-scene -out /tmp/scene -url http://localhost:9080
`)
}
