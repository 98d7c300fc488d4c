package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/episodecam/internal/domain/motion"
	"github.com/okian/episodecam/internal/domain/types"
)

// ConfigHandler reads and updates the classifier tuning.
type ConfigHandler struct {
	svc ConfigService
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(svc ConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

type configResponse struct {
	Config   motion.Config `json:"config"`
	Rejected []string      `json:"rejected,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
}

// HandleGet handles GET /api/config.
func (h *ConfigHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{Config: h.svc.ClassifierConfig()})
}

// HandleUpdate handles POST /api/config. Valid fields are applied even when
// others are rejected; the response lists the rejected ones.
func (h *ConfigHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_config"
	var u motion.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if u.Threshold == nil && u.MinArea == nil && u.BlurKernel == nil && u.BackgroundUpdateRate == nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("no settings supplied")))
		return
	}

	cfg, err := h.svc.UpdateConfig(r.Context(), u)
	if err != nil && !errors.Is(err, types.ErrConfig) {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	resp := configResponse{Config: cfg, Rejected: motion.RejectedFields(err)}
	if err != nil {
		for _, field := range unwrapAll(err) {
			resp.Errors = append(resp.Errors, field.Error())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// unwrapAll flattens a joined error.
func unwrapAll(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
