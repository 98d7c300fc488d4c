// Package model contains the persisted record shapes passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Severity grades an event.
type Severity string

// Event severities, lowest first.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ParseSeverity accepts any case and the "warn" alias.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	case "critical":
		return SeverityCritical, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Event types written by the service.
const (
	EventSystemStarted  = "system_started"
	EventSystemStopped  = "system_stopped"
	EventMotionDetected = "motion_detected"
	EventEpisodeStarted = "episode_started"
	EventEpisodeSaved   = "episode_saved"
	EventWarning        = "warning"
	EventError          = "error"
)

// EventRecord is one row of the event log. EpisodeID refers to
// EpisodeRecord.ID and is nil for system events.
type EventRecord struct {
	ID        int64     `json:"id"`
	Type      string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	EpisodeID *int64    `json:"episode_id,omitempty"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
}

// EventFilter narrows ListEvents. Empty fields match everything.
type EventFilter struct {
	Limit    int
	Type     string
	Severity Severity
}
