package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Healthz is the liveness probe. It answers as long as the process serves
// HTTP, regardless of hub state.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health reports the aggregate hub diagnosis: breaker state, queue depth,
// performance window and active connection count.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.HealthStatus())
}

// Heartbeat refreshes the silence deadline for a connection created over a
// transport that cannot carry its own liveness signal (SSE, long-poll).
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	connID := chi.URLParam(r, "connID")
	if !h.hub.Heartbeat(connID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown connection"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type disableRequest struct {
	Reason string `json:"reason"`
}

// Disable switches the hub into the emergency-off state. Every Emit from
// now on fails fast with a fallback hint until Enable is called.
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	var req disableRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "manual intervention"
	}

	h.hub.EmergencyDisable(req.Reason)
	h.logger.Warn("hub disabled by operator", "reason", req.Reason)
	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled", "reason": req.Reason})
}

func (h *Handler) Enable(w http.ResponseWriter, _ *http.Request) {
	h.hub.Enable()
	h.logger.Info("hub re-enabled by operator")
	writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}
