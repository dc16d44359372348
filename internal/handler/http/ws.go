package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Websocket upgrades the caller and relays hub frames as text messages.
// Client pongs count as heartbeats, so a well-behaved websocket subscriber
// never trips the silence sweeper.
func (h *Handler) Websocket(w http.ResponseWriter, r *http.Request) {
	sessionID, userID, ok := subscriberIdentity(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	conn := h.hub.Attach(r.Context(), sessionID, userID)

	ws, err := h.upgrader.Upgrade(w, r, http.Header{"X-Connection-ID": []string{conn.ID()}})
	if err != nil {
		h.hub.Detach(conn.ID())
		h.logger.Warn("websocket upgrade failed", "error", err, "user_id", userID)
		return
	}
	defer func() {
		h.hub.Detach(conn.ID())
		_ = ws.Close()
	}()

	h.logger.Debug("websocket subscriber attached",
		"conn_id", conn.ID(), "session_id", sessionID, "user_id", userID)

	ws.SetPongHandler(func(string) error {
		h.hub.Heartbeat(conn.ID())
		return nil
	})

	// Reader drains control frames and detects the peer going away.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				h.hub.Detach(conn.ID())
				return
			}
		}
	}()

	pinger := time.NewTicker(h.keepAlive)
	defer pinger.Stop()

	for {
		select {
		case <-pinger.C:
			deadline := time.Now().Add(h.keepAlive / 2)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		case <-conn.Done():
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "connection evicted"))
			return
		case frame, open := <-conn.Recv():
			if !open {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}
