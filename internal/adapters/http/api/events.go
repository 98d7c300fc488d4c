package api

import (
	"net/http"

	"github.com/okian/episodecam/internal/domain/model"
)

// Event list limits.
const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

// EventsHandler serves the event log.
type EventsHandler struct {
	store Store
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(store Store) *EventsHandler {
	return &EventsHandler{store: store}
}

type eventsResponse struct {
	Events []model.EventRecord `json:"events"`
	Count  int                 `json:"count"`
}

// HandleList handles GET /api/events?limit&event_type&severity.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	q := r.URL.Query()

	f := model.EventFilter{Type: q.Get("event_type")}
	var err error
	if f.Limit, err = parseLimit(q.Get("limit"), defaultEventLimit, maxEventLimit); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if v := q.Get("severity"); v != "" {
		if f.Severity, err = model.ParseSeverity(v); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
	}

	evs, err := h.store.ListEvents(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: evs, Count: len(evs)})
}
