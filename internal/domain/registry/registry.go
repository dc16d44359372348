// Package registry tracks the live subscriber connections of the event
// hub. Connections are keyed by id and tagged with the session and user
// they belong to; the registry is their sole owner and the only component
// allowed to create or destroy them.
package registry

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/boardkit/event-hub/internal/domain/event"
)

const DefaultBufferSize = 64

// Registry is a single mutually-exclusive structure: target selection and
// connection lifecycle never race with a send in progress.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	bufferSize int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithBufferSize sets the per-connection frame buffer capacity.
func WithBufferSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		conns:      make(map[string]*Connection),
		bufferSize: DefaultBufferSize,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create allocates a new connection for an attaching subscriber.
func (r *Registry) Create(ctx context.Context, sessionID, userID string) *Connection {
	conn := newConnection(ctx, sessionID, userID, r.bufferSize, r.now())

	r.mu.Lock()
	r.conns[conn.id] = conn
	r.mu.Unlock()

	r.logger.Debug("connection attached",
		"conn_id", conn.id,
		"session_id", sessionID,
		"user_id", userID,
	)
	return conn
}

// Remove detaches and destroys a connection. Idempotent: removing an
// unknown or already-removed id is a no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	conn.close()
	r.logger.Debug("connection removed", "conn_id", connID, "events_sent", conn.EventsSent())
}

// Heartbeat refreshes a connection's liveness clock. It reports whether
// the connection is still registered.
func (r *Registry) Heartbeat(connID string) bool {
	r.mu.RLock()
	conn, ok := r.conns[connID]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	conn.Heartbeat(r.now())
	return true
}

// Get looks up a connection by id.
func (r *Registry) Get(connID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// SelectTargets filters active connections by the event's authorization
// scope: session-owner events go to the owning session, user-scoped events
// to every connection of the user, system events to everyone.
func (r *Registry) SelectTargets(ev *event.Event, cfg *event.TypeConfig) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var targets []*Connection
	for _, conn := range r.conns {
		if !conn.IsActive() {
			continue
		}
		switch cfg.Authorization {
		case event.ScopeSessionOwner:
			if conn.sessionID == ev.SessionID {
				targets = append(targets, conn)
			}
		case event.ScopeUser:
			if conn.userID == ev.UserID {
				targets = append(targets, conn)
			}
		case event.ScopeSystem:
			targets = append(targets, conn)
		}
	}
	return targets
}

// SweepSilent evicts every connection whose last heartbeat is older than
// the silence threshold. It returns the number of evicted connections.
func (r *Registry) SweepSilent(threshold time.Duration) int {
	now := r.now()

	r.mu.Lock()
	var stale []*Connection
	for id, conn := range r.conns {
		if now.Sub(conn.LastHeartbeat()) > threshold {
			stale = append(stale, conn)
			delete(r.conns, id)
		}
	}
	r.mu.Unlock()

	for _, conn := range stale {
		conn.close()
		r.logger.Info("silent connection evicted",
			"conn_id", conn.id,
			"session_id", conn.sessionID,
			"last_heartbeat", conn.LastHeartbeat(),
		)
	}
	return len(stale)
}

// ActiveCount returns the number of registered connections.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll destroys every connection. Used by the administrative disable
// path and process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
	if len(conns) > 0 {
		r.logger.Info("all connections closed", "count", len(conns))
	}
}
