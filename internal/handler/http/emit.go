package http

import (
	"encoding/json"
	"net/http"

	"github.com/boardkit/event-hub/internal/domain/event"
	"github.com/boardkit/event-hub/internal/service"
)

// Emit accepts a single event, runs it through the hub pipeline and maps
// the result onto an HTTP status: 200 for delivered, 400 for rejected,
// 429 for backpressure, 503 when the hub is shielding itself.
func (h *Handler) Emit(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "malformed event payload",
			"code":  "MALFORMED_PAYLOAD",
		})
		return
	}

	res := h.hub.Emit(r.Context(), &ev)
	writeJSON(w, emitStatus(res), res)
}

func emitStatus(res service.EmitResult) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Code {
	case service.CodeQueueOverflow, service.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case service.CodeHubDisabled, service.CodeCircuitBreakerOpen, service.CodeInternalError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
