// Package repository persists episodes and events in SQLite.
//
// The schema is owned by embedded golang-migrate migrations. Timestamps are
// stored as fixed-width UTC text so that lexical order is time order.
package repository

import (
	"context"
	"time"

	"github.com/okian/episodecam/internal/domain/model"
)

// List limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// EpisodeStore reads and writes episode rows.
type EpisodeStore interface {
	// AddEpisode inserts an open episode and returns its row id.
	AddEpisode(ctx context.Context, rec model.EpisodeRecord) (int64, error)
	// UpdateEpisode closes the episode. Returns ErrNotFound for unknown ids.
	UpdateEpisode(ctx context.Context, episodeID string, end time.Time, durationSeconds float64) error
	// GetEpisode returns ErrNotFound for unknown ids.
	GetEpisode(ctx context.Context, episodeID string) (model.EpisodeRecord, error)
	// ListEpisodes returns matching episodes, newest first.
	ListEpisodes(ctx context.Context, f model.EpisodeFilter) ([]model.EpisodeRecord, error)
}

// EventStore reads and writes event rows.
type EventStore interface {
	AddEvent(ctx context.Context, ev model.EventRecord) (int64, error)
	// ListEvents returns matching events, newest first.
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.EventRecord, error)
}

// Store is the full repository surface.
type Store interface {
	EpisodeStore
	EventStore
	Stats(ctx context.Context) (model.Stats, error)
	Close() error
}

var _ Store = (*SQLite)(nil)

// timeLayout is fixed width so text comparison orders correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}
