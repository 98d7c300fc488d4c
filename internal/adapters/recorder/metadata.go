package recorder

import (
	"time"

	"github.com/okian/episodecam/internal/domain/types"
)

// metadata is the content of metadata.json.
type metadata struct {
	EpisodeID       string          `json:"episode_id"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	FPS             float64         `json:"fps"`
	Resolution      [2]int          `json:"resolution"`
	MotionDetected  bool            `json:"motion_detected"`
	TotalFrames     int             `json:"total_frames"`
	FramePaths      []string        `json:"frame_paths"`
	DurationSeconds float64         `json:"duration_seconds"`
	Frames          []frameMetadata `json:"frames"`
}

type frameMetadata struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	types.FrameMeta
}

// info is the dataset summary in info.json.
type info struct {
	Dataset     string            `json:"dataset"`
	Version     int               `json:"version"`
	EpisodeID   string            `json:"episode_id"`
	TotalFrames int               `json:"total_frames"`
	FPS         float64           `json:"fps"`
	Features    map[string]string `json:"features"`
	CreatedAt   time.Time         `json:"created_at"`
}
