package http

import (
	"net/http"
	"time"

	"github.com/boardkit/event-hub/internal/handler/marshaller"
)

// Stream attaches the caller as a server-sent-events subscriber and relays
// hub frames until the client disconnects or the connection is evicted.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID, userID, ok := subscriberIdentity(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	conn := h.hub.Attach(r.Context(), sessionID, userID)
	defer h.hub.Detach(conn.ID())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Connection-ID", conn.ID())
	w.WriteHeader(http.StatusOK)

	// The identifying comment is the client's cue that the attachment is live.
	_, _ = w.Write(marshaller.SSEComment("connected " + conn.ID()))
	flusher.Flush()

	h.logger.Debug("sse subscriber attached",
		"conn_id", conn.ID(), "session_id", sessionID, "user_id", userID)

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-conn.Done():
			return
		case frame, open := <-conn.Recv():
			if !open {
				return
			}
			if _, err := w.Write(marshaller.SSEFrame(frame)); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := w.Write(marshaller.SSEComment("keep-alive")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
