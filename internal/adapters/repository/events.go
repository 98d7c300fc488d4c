package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/internal/domain/types"
)

// AddEvent inserts ev and returns its row id. A zero timestamp is stamped
// with the store clock and an empty severity defaults to info.
func (s *SQLite) AddEvent(ctx context.Context, ev model.EventRecord) (int64, error) {
	defer s.observe("add_event", time.Now())

	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.clock()
	}
	if ev.Severity == "" {
		ev.Severity = model.SeverityInfo
	}
	var episode sql.NullInt64
	if ev.EpisodeID != nil {
		episode = sql.NullInt64{Int64: *ev.EpisodeID, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_type, timestamp, episode_id, message, severity) VALUES (?, ?, ?, ?, ?)`,
		ev.Type, formatTime(ev.Timestamp), episode, ev.Message, string(ev.Severity),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert event %s: %w", types.ErrPersistence, ev.Type, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: event id: %w", types.ErrPersistence, err)
	}
	return id, nil
}

// ListEvents returns events matching f, newest first.
func (s *SQLite) ListEvents(ctx context.Context, f model.EventFilter) ([]model.EventRecord, error) {
	defer s.observe("list_events", time.Now())

	var where []string
	var args []any
	if f.Type != "" {
		where = append(where, "event_type = ?")
		args = append(args, f.Type)
	}
	if f.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(f.Severity))
	}
	query := `SELECT id, event_type, timestamp, episode_id, message, severity FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %w", types.ErrPersistence, err)
	}
	defer rows.Close()

	out := []model.EventRecord{}
	for rows.Next() {
		var (
			ev      model.EventRecord
			ts, sev string
			episode sql.NullInt64
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ts, &episode, &ev.Message, &sev); err != nil {
			return nil, fmt.Errorf("%w: scan event: %w", types.ErrPersistence, err)
		}
		if ev.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("%w: event timestamp: %w", types.ErrPersistence, err)
		}
		if episode.Valid {
			id := episode.Int64
			ev.EpisodeID = &id
		}
		ev.Severity = model.Severity(sev)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list events: %w", types.ErrPersistence, err)
	}
	return out, nil
}

// Stats counts episodes and events.
func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	defer s.observe("stats", time.Now())

	var st model.Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM episodes),
		(SELECT COUNT(*) FROM episodes WHERE motion_detected = 1),
		(SELECT COUNT(*) FROM events)`).Scan(&st.TotalEpisodes, &st.EpisodesWithMotion, &st.TotalEvents)
	if err != nil {
		return st, fmt.Errorf("%w: stats: %w", types.ErrPersistence, err)
	}
	return st, nil
}
