// Package service composes the event broadcasting hub: the emit pipeline
// (breaker gate, validation, rate limiting, enrichment, enqueue), the
// background broadcaster draining the bounded queue, the health sweeper,
// and the administrative surface.
package service

import (
	"context"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/boardkit/event-hub/internal/domain/breaker"
	"github.com/boardkit/event-hub/internal/domain/event"
	"github.com/boardkit/event-hub/internal/domain/registry"
)

const (
	DefaultDrainInterval     = 50 * time.Millisecond
	DefaultSweepInterval     = 30 * time.Second
	DefaultSilenceThreshold  = 90 * time.Second
	DefaultSendTimeout       = 500 * time.Millisecond
	DefaultCountersResetTime = 5 * time.Minute
)

// Dispatcher hands persisted events to the out-of-process storage
// collaborator. Implementations must be safe for concurrent use.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *event.Event) error
}

// Hub is the process-wide broadcasting service. One instance is shared by
// all producers and all subscriber connections.
type Hub struct {
	types      *event.Registry
	conns      *registry.Registry
	breaker    *breaker.Breaker
	monitor    *Monitor
	queue      *boundedQueue
	limiter    *rateLimiter
	dispatcher Dispatcher

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	drainInterval    time.Duration
	sweepInterval    time.Duration
	silenceThreshold time.Duration
	sendTimeout      time.Duration
	countersReset    time.Duration

	disabled      atomic.Bool
	disableReason atomic.Value // string

	runMu  sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Option configures a Hub.
type Option func(*Hub)

// WithMaxQueueSize bounds the pending-event queue.
func WithMaxQueueSize(n int) Option {
	return func(h *Hub) { h.queue = newBoundedQueue(n) }
}

// WithDrainInterval sets the broadcaster tick.
func WithDrainInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.drainInterval = d
		}
	}
}

// WithSweepInterval sets the health sweeper tick.
func WithSweepInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.sweepInterval = d
		}
	}
}

// WithSilenceThreshold sets how long a connection may stay silent before
// the sweeper evicts it.
func WithSilenceThreshold(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.silenceThreshold = d
		}
	}
}

// WithSendTimeout bounds a single delivery attempt to one connection.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.sendTimeout = d
		}
	}
}

// WithCountersResetInterval sets how often per-type counters are cleared.
func WithCountersResetInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.countersReset = d
		}
	}
}

// WithDispatcher wires the persistence side-channel.
func WithDispatcher(d Dispatcher) Option {
	return func(h *Hub) { h.dispatcher = d }
}

// WithRateLimiterSize bounds the rate-limit counter cache.
func WithRateLimiterSize(n int) Option {
	return func(h *Hub) { h.limiter = newRateLimiter(n, h.now) }
}

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
			h.limiter.now = now
		}
	}
}

// NewHub composes the hub from its collaborators.
func NewHub(types *event.Registry, conns *registry.Registry, brk *breaker.Breaker, mon *Monitor, opts ...Option) *Hub {
	h := &Hub{
		types:            types,
		conns:            conns,
		breaker:          brk,
		monitor:          mon,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:           otel.Tracer("event-hub"),
		now:              time.Now,
		drainInterval:    DefaultDrainInterval,
		sweepInterval:    DefaultSweepInterval,
		silenceThreshold: DefaultSilenceThreshold,
		sendTimeout:      DefaultSendTimeout,
		countersReset:    DefaultCountersResetTime,
	}
	h.queue = newBoundedQueue(DefaultMaxQueueSize)
	h.limiter = newRateLimiter(defaultLimiterSize, h.now)
	h.disableReason.Store("")

	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Emit pushes one event through the full pipeline: breaker gate,
// validation, rate limit, enrichment, enqueue. It never panics outward;
// unexpected faults become a generic failure plus a breaker failure record.
func (h *Hub) Emit(ctx context.Context, ev *event.Event) (res EmitResult) {
	_, span := h.tracer.Start(ctx, "hub.emit",
		trace.WithAttributes(attribute.String("event.type", ev.Type)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("emit panic recovered", "panic", r, "stack", string(debug.Stack()))
			h.breaker.RecordFailure()
			span.SetStatus(codes.Error, "panic")
			res = failure(CodeInternalError, "internal hub failure")
		}
	}()

	if h.disabled.Load() {
		return fallbackFailure(CodeHubDisabled, "event hub is administratively disabled")
	}

	if !h.breaker.ShouldAllow() {
		span.SetAttributes(attribute.Bool("hub.fallback", true))
		return fallbackFailure(CodeCircuitBreakerOpen, "Circuit breaker open")
	}

	start := h.now()

	cfg, rej := h.types.Validate(ev)
	if rej != nil {
		h.breaker.RecordFailure()
		span.SetStatus(codes.Error, rej.Code)
		return EmitResult{Success: false, Error: rej.Message, Code: rej.Code, Details: rej.Details}
	}

	if !h.limiter.Allow(ev, cfg.RateLimit) {
		// A budget breach is the producer's pacing problem, not a hub fault.
		return failure(CodeRateLimitExceeded, "emission budget exhausted for "+ev.Type)
	}

	ev.Enrich(h.now())

	evicted, err := h.queue.Enqueue(ev, cfg)
	if evicted > 0 {
		h.logger.Warn("queue pressure: ephemeral events evicted", "evicted", evicted)
	}
	if err != nil {
		// Capacity condition, not a system fault: the breaker is untouched.
		span.SetStatus(codes.Error, CodeQueueOverflow)
		return failure(CodeQueueOverflow, "event queue is full")
	}

	h.monitor.RecordLatency(start, h.now())
	h.monitor.RecordEvent(ev.Type)
	h.breaker.RecordSuccess()

	perf := h.monitor.Snapshot()
	return EmitResult{
		Success:     true,
		EventID:     ev.ID,
		Timestamp:   ev.Timestamp,
		Performance: &perf,
	}
}

// Attach registers a new subscriber connection.
func (h *Hub) Attach(ctx context.Context, sessionID, userID string) *registry.Connection {
	return h.conns.Create(ctx, sessionID, userID)
}

// Detach removes a subscriber connection; idempotent.
func (h *Hub) Detach(connID string) {
	h.conns.Remove(connID)
}

// Heartbeat refreshes a connection's liveness clock.
func (h *Hub) Heartbeat(connID string) bool {
	return h.conns.Heartbeat(connID)
}

// ShouldPersist exposes the per-type persistence flag to the storage
// collaborator.
func (h *Hub) ShouldPersist(eventType string) bool {
	return h.types.ShouldPersist(eventType)
}

// QueueDepth returns the number of events awaiting broadcast.
func (h *Hub) QueueDepth() int {
	return h.queue.Depth()
}

// Start launches the background loops: queue drain, health sweep, counter
// janitor. All of them stop when Stop is called.
func (h *Hub) Start() {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	if h.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	h.group = g

	g.Go(func() error { return h.drainLoop(ctx) })
	g.Go(func() error { return h.sweepLoop(ctx) })
	g.Go(func() error { return h.janitorLoop(ctx) })

	h.logger.Info("hub started",
		"drain_interval", h.drainInterval,
		"sweep_interval", h.sweepInterval,
		"queue_capacity", h.queue.max,
	)
}

// Stop cancels the background loops and discards pending work. Queued
// events are not durable by contract, so shutdown drops them.
func (h *Hub) Stop() error {
	h.runMu.Lock()
	cancel, group := h.cancel, h.group
	h.cancel, h.group = nil, nil
	h.runMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := group.Wait()

	if dropped := h.queue.Clear(); dropped > 0 {
		h.logger.Warn("shutdown discarded queued events", "dropped", dropped)
	}
	h.conns.CloseAll()
	h.logger.Info("hub stopped")
	return err
}

// drainLoop periodically empties the queue, one event at a time in FIFO
// order. Delivery is sequential per tick so per-event ordering stays
// observable.
func (h *Hub) drainLoop(ctx context.Context) error {
	ticker := time.NewTicker(h.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for ctx.Err() == nil {
				entry, ok := h.queue.Dequeue()
				if !ok {
					break
				}
				h.broadcast(ctx, entry)
			}
		}
	}
}

// broadcast routes one event to its eligible connections and signals the
// persistence collaborator. A failed send evicts only that connection and
// never aborts delivery to the remaining targets.
func (h *Hub) broadcast(ctx context.Context, entry queueEntry) {
	if entry.cfg.Broadcast {
		payload, err := entry.ev.DeliveryPayload()
		if err != nil {
			h.logger.Error("event payload marshal failed", "event_id", entry.ev.ID, "err", err)
			return
		}

		for _, conn := range h.conns.SelectTargets(entry.ev, entry.cfg) {
			if !conn.Send(payload, h.sendTimeout) {
				h.conns.Remove(conn.ID())
				h.logger.Warn("delivery failed, connection evicted",
					"conn_id", conn.ID(),
					"event_id", entry.ev.ID,
				)
			}
		}
	}

	if entry.cfg.Persistence && h.dispatcher != nil {
		if err := h.dispatcher.Dispatch(ctx, entry.ev); err != nil {
			// Persistence signaling is fire-and-forget from the hub's point
			// of view; the producer already got its result.
			h.logger.Warn("persistence dispatch failed", "event_id", entry.ev.ID, "err", err)
		}
	}
}

func (h *Hub) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := h.conns.SweepSilent(h.silenceThreshold); n > 0 {
				h.logger.Info("health sweep evicted connections", "count", n)
			}
		}
	}
}

func (h *Hub) janitorLoop(ctx context.Context) error {
	ticker := time.NewTicker(h.countersReset)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.monitor.ResetCounts()
		}
	}
}

// HealthStatus aggregates the hub's operational state for the admin
// surface.
type HealthStatus struct {
	Status            string              `json:"status"`
	Reason            string              `json:"reason,omitempty"`
	ActiveConnections int                 `json:"activeConnections"`
	QueueDepth        int                 `json:"queueDepth"`
	CircuitBreaker    breaker.Snapshot    `json:"circuitBreaker"`
	Performance       PerformanceSnapshot `json:"performance"`
}

func (h *Hub) HealthStatus() HealthStatus {
	perf := h.monitor.Snapshot()
	brk := h.breaker.Stats()

	status := StatusHealthy
	switch {
	case h.disabled.Load():
		status = StatusDisabled
	case brk.State == breaker.StateOpen:
		status = StatusCritical
	case perf.Status == PerfDegraded:
		status = StatusDegraded
	}

	reason, _ := h.disableReason.Load().(string)
	return HealthStatus{
		Status:            status,
		Reason:            reason,
		ActiveConnections: h.conns.ActiveCount(),
		QueueDepth:        h.queue.Depth(),
		CircuitBreaker:    brk,
		Performance:       perf,
	}
}

// EmergencyDisable is the hard administrative override: it stops accepting
// emissions, clears the queue, and closes every connection.
func (h *Hub) EmergencyDisable(reason string) {
	h.disabled.Store(true)
	h.disableReason.Store(reason)

	dropped := h.queue.Clear()
	h.conns.CloseAll()

	h.logger.Warn("hub emergency disabled", "reason", reason, "dropped_events", dropped)
}

// Enable lifts an emergency disable and resets the breaker to closed.
func (h *Hub) Enable() {
	h.disabled.Store(false)
	h.disableReason.Store("")
	h.breaker.Reset()

	h.logger.Info("hub enabled")
}
