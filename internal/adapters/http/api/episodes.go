package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/episodecam/internal/domain/model"
)

// Episode list limits.
const (
	defaultEpisodeLimit = 100
	maxEpisodeLimit     = 1000
)

// EpisodesHandler serves stored episodes.
type EpisodesHandler struct {
	store Store
}

// NewEpisodesHandler creates a new episodes handler.
func NewEpisodesHandler(store Store) *EpisodesHandler {
	return &EpisodesHandler{store: store}
}

type episodesResponse struct {
	Episodes []model.EpisodeRecord `json:"episodes"`
	Count    int                   `json:"count"`
}

// HandleList handles GET /api/episodes?start_date&end_date&motion_only&limit.
func (h *EpisodesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_episodes"
	q := r.URL.Query()

	var f model.EpisodeFilter
	var err error
	if f.Limit, err = parseLimit(q.Get("limit"), defaultEpisodeLimit, maxEpisodeLimit); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if f.Start, err = parseDate(q.Get("start_date"), false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if f.End, err = parseDate(q.Get("end_date"), true); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if v := q.Get("motion_only"); v != "" {
		if f.MotionOnly, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("motion_only must be a boolean")))
			return
		}
	}

	eps, err := h.store.ListEpisodes(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, episodesResponse{Episodes: eps, Count: len(eps)})
}

// HandleGet handles GET /api/episodes/{episode_id}.
func (h *EpisodesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("episode_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	ep, err := h.store.GetEpisode(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

// parseLimit returns def for an empty value and rejects values outside
// [1, maxLimit].
func parseLimit(v string, def, maxLimit int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxLimit {
		return 0, fmt.Errorf("limit must be an integer in [1,%d]", maxLimit)
	}
	return n, nil
}

const dateLayout = "2006-01-02"

// parseDate accepts RFC3339 or a bare date. A bare end date covers the
// whole day.
func parseDate(v string, end bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; use RFC3339 or YYYY-MM-DD", v)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
