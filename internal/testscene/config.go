package testscene

import (
	"time"

	"github.com/okian/episodecam/internal/domain/model"
)

// Config holds configuration for the scene test
type Config struct {
	OutputDir    string        // Directory the frames are written to
	Format       string        // Frame encoding: jpeg, png or bmp
	Width        int           // Frame width in pixels
	Height       int           // Frame height in pixels
	Bursts       int           // Number of motion bursts
	CalmFrames   int           // Still frames before, between and after bursts
	MotionFrames int           // Frames per motion burst
	FPS          float64       // Playback rate the service reads the frames at
	BaseURL      string        // Base URL of a running service; empty skips verification
	WaitTimeout  time.Duration // How long to wait for the expected episodes
	PollInterval time.Duration // Delay between episode polls
	Timeout      time.Duration // HTTP request timeout
	LogFile      string        // Log file for test output
	Verbose      bool          // Enable verbose logging
}

// Burst is a run of moving frames, [Start, End) in frame indexes.
type Burst struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Scene describes a generated frame directory.
type Scene struct {
	Dir    string   `json:"dir"`
	Frames int      `json:"frames"`
	Bursts []Burst  `json:"bursts"`
	Files  []string `json:"files"`
}

// EpisodesResponse is the body of GET /api/episodes.
type EpisodesResponse struct {
	Episodes []model.EpisodeRecord `json:"episodes"`
	Count    int                   `json:"count"`
}

// Stats holds test statistics
type Stats struct {
	FramesWritten    int
	BurstsGenerated  int
	EpisodesExpected int
	EpisodesFound    int
	EpisodesClosed   int
	Polls            int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
