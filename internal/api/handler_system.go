package api

import (
	"net/http"

	"github.com/payorch/payorch-backend-sqs/internal/core"
	"github.com/payorch/payorch-backend-sqs/internal/state"
)

// SystemHandler handles system-level HTTP endpoints.
type SystemHandler struct {
	store state.Store
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(store state.Store) *SystemHandler {
	return &SystemHandler{store: store}
}

// Health handles GET /v1/health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"backend": "sqs",
		"version": core.Version,
	}
	if err := h.store.Ping(r.Context()); err != nil {
		resp["status"] = "unavailable"
		resp["error"] = err.Error()
		WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}
