package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Connection is a single live subscriber channel. It is owned exclusively
// by the Registry for its lifetime: created on attach, mutated on delivery
// and heartbeat, destroyed on send failure, silence, or explicit detach.
type Connection struct {
	id        string
	sessionID string
	userID    string
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	// sendCh decouples the broadcaster from individual transports. It acts
	// as a shock absorber so a slow consumer cannot stall delivery to the
	// remaining targets.
	sendCh    chan []byte
	closeOnce sync.Once
	// sendMu serializes teardown against in-flight Sends so the channel is
	// never closed mid-send.
	sendMu sync.RWMutex

	lastHeartbeat atomic.Int64 // unix nanos
	eventsSent    atomic.Uint64
	dropped       atomic.Uint64
	active        atomic.Bool
}

func newConnection(ctx context.Context, sessionID, userID string, bufferSize int, now time.Time) *Connection {
	childCtx, cancel := context.WithCancel(ctx)

	c := &Connection{
		id:        uuid.NewString(),
		sessionID: sessionID,
		userID:    userID,
		createdAt: now,
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan []byte, bufferSize),
	}
	c.lastHeartbeat.Store(now.UnixNano())
	c.active.Store(true)
	return c
}

func (c *Connection) ID() string        { return c.id }
func (c *Connection) SessionID() string { return c.sessionID }
func (c *Connection) UserID() string    { return c.userID }

func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// IsActive reports whether the connection is still registry-owned and
// eligible for delivery.
func (c *Connection) IsActive() bool { return c.active.Load() }

// EventsSent returns how many frames were accepted for this connection.
func (c *Connection) EventsSent() uint64 { return c.eventsSent.Load() }

// Dropped returns how many frames were shed due to a saturated buffer.
func (c *Connection) Dropped() uint64 { return c.dropped.Load() }

// LastHeartbeat returns the most recent liveness signal.
func (c *Connection) LastHeartbeat() time.Time {
	return time.Unix(0, c.lastHeartbeat.Load())
}

// Heartbeat refreshes the liveness clock.
func (c *Connection) Heartbeat(now time.Time) {
	c.lastHeartbeat.Store(now.UnixNano())
}

// Send pushes a serialized frame toward the transport, waiting up to
// timeout for buffer space. It reports false when the connection is closed
// or remains saturated for the whole window; the caller decides eviction.
func (c *Connection) Send(frame []byte, timeout time.Duration) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if !c.active.Load() {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- frame:
		c.eventsSent.Add(1)
		return true
	case <-timer.C:
		c.dropped.Add(1)
		return false
	}
}

// Recv exposes the frame stream to the transport handler. The channel is
// closed when the connection is destroyed, which signals the handler to
// finish its pump loop.
func (c *Connection) Recv() <-chan []byte { return c.sendCh }

// Done is closed when the connection is destroyed.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// close tears the connection down exactly once. Cancel first so pending
// Sends abort, then wait out in-flight Sends before the channel goes away.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.active.Store(false)
		c.cancelFn()

		c.sendMu.Lock()
		close(c.sendCh)
		c.sendMu.Unlock()
	})
}
