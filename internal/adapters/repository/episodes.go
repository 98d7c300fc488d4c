package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/internal/domain/types"
)

const episodeColumns = `id, episode_id, file_path, start_time, end_time, duration_seconds,
	motion_detected, object_detected, confidence_score, created_at, metadata_json`

// AddEpisode inserts rec and returns its row id.
func (s *SQLite) AddEpisode(ctx context.Context, rec model.EpisodeRecord) (int64, error) {
	defer s.observe("add_episode", time.Now())

	var end, meta, object sql.NullString
	var duration, confidence sql.NullFloat64
	if rec.EndTime != nil {
		end = sql.NullString{String: formatTime(*rec.EndTime), Valid: true}
	}
	if rec.DurationSeconds != nil {
		duration = sql.NullFloat64{Float64: *rec.DurationSeconds, Valid: true}
	}
	if rec.ConfidenceScore != nil {
		confidence = sql.NullFloat64{Float64: *rec.ConfidenceScore, Valid: true}
	}
	if rec.ObjectDetected != "" {
		object = sql.NullString{String: rec.ObjectDetected, Valid: true}
	}
	if rec.MetadataJSON != "" {
		meta = sql.NullString{String: rec.MetadataJSON, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (episode_id, file_path, start_time, end_time, duration_seconds,
			motion_detected, object_detected, confidence_score, created_at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EpisodeID, rec.FilePath, formatTime(rec.StartTime), end, duration,
		rec.MotionDetected, object, confidence, formatTime(s.clock()), meta,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("%w: %s", ErrDuplicate, rec.EpisodeID)
		}
		return 0, fmt.Errorf("%w: insert episode %s: %w", types.ErrPersistence, rec.EpisodeID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: episode id: %w", types.ErrPersistence, err)
	}
	return id, nil
}

// UpdateEpisode records the end of an episode.
func (s *SQLite) UpdateEpisode(ctx context.Context, episodeID string, end time.Time, durationSeconds float64) error {
	defer s.observe("update_episode", time.Now())

	res, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET end_time = ?, duration_seconds = ? WHERE episode_id = ?`,
		formatTime(end), durationSeconds, episodeID,
	)
	if err != nil {
		return fmt.Errorf("%w: update episode %s: %w", types.ErrPersistence, episodeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update episode %s: %w", types.ErrPersistence, episodeID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, episodeID)
	}
	return nil
}

// GetEpisode returns one episode by its episode id.
func (s *SQLite) GetEpisode(ctx context.Context, episodeID string) (model.EpisodeRecord, error) {
	defer s.observe("get_episode", time.Now())

	row := s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE episode_id = ?`, episodeID)
	rec, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EpisodeRecord{}, fmt.Errorf("%w: %s", ErrNotFound, episodeID)
	}
	if err != nil {
		return model.EpisodeRecord{}, fmt.Errorf("%w: get episode %s: %w", types.ErrPersistence, episodeID, err)
	}
	return rec, nil
}

// ListEpisodes returns episodes matching f, newest first.
func (s *SQLite) ListEpisodes(ctx context.Context, f model.EpisodeFilter) ([]model.EpisodeRecord, error) {
	defer s.observe("list_episodes", time.Now())

	var where []string
	var args []any
	if !f.Start.IsZero() {
		where = append(where, "start_time >= ?")
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		where = append(where, "start_time <= ?")
		args = append(args, formatTime(f.End))
	}
	if f.MotionOnly {
		where = append(where, "motion_detected = 1")
	}
	query := `SELECT ` + episodeColumns + ` FROM episodes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list episodes: %w", types.ErrPersistence, err)
	}
	defer rows.Close()

	out := []model.EpisodeRecord{}
	for rows.Next() {
		rec, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan episode: %w", types.ErrPersistence, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list episodes: %w", types.ErrPersistence, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEpisode(sc scanner) (model.EpisodeRecord, error) {
	var (
		rec                  model.EpisodeRecord
		start, created       string
		end, object, meta    sql.NullString
		duration, confidence sql.NullFloat64
	)
	if err := sc.Scan(&rec.ID, &rec.EpisodeID, &rec.FilePath, &start, &end, &duration,
		&rec.MotionDetected, &object, &confidence, &created, &meta); err != nil {
		return rec, err
	}
	var err error
	if rec.StartTime, err = parseTime(start); err != nil {
		return rec, fmt.Errorf("start_time: %w", err)
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return rec, fmt.Errorf("created_at: %w", err)
	}
	if end.Valid {
		t, err := parseTime(end.String)
		if err != nil {
			return rec, fmt.Errorf("end_time: %w", err)
		}
		rec.EndTime = &t
	}
	if duration.Valid {
		rec.DurationSeconds = &duration.Float64
	}
	if confidence.Valid {
		rec.ConfidenceScore = &confidence.Float64
	}
	rec.ObjectDetected = object.String
	rec.MetadataJSON = meta.String
	return rec, nil
}
