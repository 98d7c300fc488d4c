package model

import "time"

// EpisodeRecord is one stored episode. EndTime and Duration stay nil until
// the episode is closed.
type EpisodeRecord struct {
	ID              int64      `json:"id"`
	EpisodeID       string     `json:"episode_id"`
	FilePath        string     `json:"file_path"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	MotionDetected  bool       `json:"motion_detected"`
	ObjectDetected  string     `json:"object_detected,omitempty"`
	ConfidenceScore *float64   `json:"confidence_score,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	MetadataJSON    string     `json:"metadata,omitempty"`
}

// Closed reports whether the episode has an end time.
func (r EpisodeRecord) Closed() bool { return r.EndTime != nil }

// EpisodeFilter narrows ListEpisodes. Zero times are open bounds.
type EpisodeFilter struct {
	Start      time.Time
	End        time.Time
	MotionOnly bool
	Limit      int
}

// Stats summarises the store.
type Stats struct {
	TotalEpisodes      int `json:"total_episodes"`
	EpisodesWithMotion int `json:"episodes_with_motion"`
	TotalEvents        int `json:"total_events"`
}
