package api

import (
	"net/http"
	"time"

	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
)

// StatusHandler serves the camera snapshot with store totals.
type StatusHandler struct {
	status StatusProvider
	store  Store
	clock  func() time.Time
	logger logger.Logger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(status StatusProvider, store Store, clock func() time.Time, l logger.Logger) *StatusHandler {
	return &StatusHandler{status: status, store: store, clock: clock, logger: l}
}

type statusResponse struct {
	types.Status
	TotalEpisodes int `json:"total_episodes"`
	TotalEvents   int `json:"total_events"`
}

// HandleStatus handles GET /api/status requests.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	if st := h.status.Status(); st != nil {
		resp.Status = *st
	}
	if resp.CameraActive && !resp.StartTime.IsZero() {
		resp.Uptime = h.clock().Sub(resp.StartTime).Seconds()
	}
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Warn(r.Context(), "status without store totals", logger.Error(err))
	}
	resp.TotalEpisodes = stats.TotalEpisodes
	resp.TotalEvents = stats.TotalEvents
	writeJSON(w, http.StatusOK, resp)
}
