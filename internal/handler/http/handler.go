// Package http exposes the hub over HTTP: event ingestion for producers,
// three subscriber transports (SSE, WebSocket, long-poll), the heartbeat
// endpoint, and the administrative surface.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/boardkit/event-hub/internal/service"
)

const (
	DefaultKeepAlive   = 30 * time.Second
	DefaultPollTimeout = 30 * time.Second
	maxPollBatch       = 16
)

type Handler struct {
	hub    *service.Hub
	logger *slog.Logger

	upgrader    websocket.Upgrader
	keepAlive   time.Duration
	pollTimeout time.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithKeepAlive sets the SSE comment and websocket ping cadence.
func WithKeepAlive(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.keepAlive = d
		}
	}
}

// WithPollTimeout bounds how long a long-poll request waits for the first
// frame before answering 204.
func WithPollTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.pollTimeout = d
		}
	}
}

func NewHandler(hub *service.Hub, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // origin policy is the edge proxy's job
		},
		keepAlive:   DefaultKeepAlive,
		pollTimeout: DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts all hub routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", h.Emit)
		r.Get("/events/stream", h.Stream)
		r.Get("/events/ws", h.Websocket)
		r.Get("/events/poll", h.Poll)
		r.Post("/connections/{connID}/heartbeat", h.Heartbeat)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/health", h.Health)
			r.Post("/disable", h.Disable)
			r.Post("/enable", h.Enable)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// subscriberIdentity pulls the attachment attribution from the query.
// user_id is mandatory; session_id is only needed for session-scoped
// deliveries.
func subscriberIdentity(r *http.Request) (sessionID, userID string, ok bool) {
	q := r.URL.Query()
	return q.Get("session_id"), q.Get("user_id"), q.Get("user_id") != ""
}
