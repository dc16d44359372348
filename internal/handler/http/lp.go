package http

import (
	"net/http"
	"time"

	"github.com/boardkit/event-hub/internal/handler/marshaller"
)

// Poll is the degraded-network transport: the caller blocks until at least
// one frame arrives, then receives everything buffered at that moment as a
// single JSON array. An empty window ends with 204.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	sessionID, userID, ok := subscriberIdentity(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	conn := h.hub.Attach(r.Context(), sessionID, userID)
	defer h.hub.Detach(conn.ID())

	w.Header().Set("X-Connection-ID", conn.ID())

	timeout := time.NewTimer(h.pollTimeout)
	defer timeout.Stop()

	var frames [][]byte
	select {
	case <-r.Context().Done():
		return
	case <-conn.Done():
		w.WriteHeader(http.StatusNoContent)
		return
	case <-timeout.C:
		w.WriteHeader(http.StatusNoContent)
		return
	case frame, open := <-conn.Recv():
		if !open {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		frames = append(frames, frame)
	}

	// Sweep whatever else is already buffered without blocking again.
drain:
	for len(frames) < maxPollBatch {
		select {
		case frame, open := <-conn.Recv():
			if !open {
				break drain
			}
			frames = append(frames, frame)
		default:
			break drain
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(marshaller.LongPollBatch(frames))
}
