package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardkit/event-hub/internal/domain/breaker"
	"github.com/boardkit/event-hub/internal/domain/event"
	"github.com/boardkit/event-hub/internal/domain/registry"
	"github.com/boardkit/event-hub/internal/service"
)

func newTestHub(t *testing.T, opts ...service.Option) (*service.Hub, *registry.Registry) {
	t.Helper()

	conns := registry.New()
	hub := service.NewHub(
		event.NewBoardRegistry(),
		conns,
		breaker.New(),
		service.NewMonitor(),
		opts...,
	)
	return hub, conns
}

func cardCreated(sessionID, userID string) *event.Event {
	return &event.Event{
		Type:      event.TypeCardCreated,
		SessionID: sessionID,
		UserID:    userID,
		Data: map[string]any{
			"cardId":   "c1",
			"cardData": map[string]any{"type": "topic"},
		},
	}
}

func TestHub_EmitEndToEnd(t *testing.T) {
	t.Parallel()

	hub, _ := newTestHub(t, service.WithDrainInterval(5*time.Millisecond))
	hub.Start()
	t.Cleanup(func() { _ = hub.Stop() })

	ctx := context.Background()
	owner := hub.Attach(ctx, "S1", "U1")
	other := hub.Attach(ctx, "S2", "U2")

	res := hub.Emit(ctx, cardCreated("S1", "U1"))

	require.True(t, res.Success, "emit failed: %s %s", res.Code, res.Error)
	assert.NotEmpty(t, res.EventID)
	assert.NotZero(t, res.Timestamp)
	require.NotNil(t, res.Performance)
	assert.EqualValues(t, 1, res.Performance.EventCounts[event.TypeCardCreated])

	select {
	case frame := <-owner.Recv():
		var payload map[string]any
		require.NoError(t, json.Unmarshal(frame, &payload))
		assert.Equal(t, event.TypeCardCreated, payload["eventType"])
		assert.Equal(t, "S1", payload["sessionId"])
		assert.Equal(t, res.EventID, payload["eventId"])
	case <-time.After(2 * time.Second):
		t.Fatal("owner connection never received the event")
	}

	// The S2 connection shares nothing with the event; it must stay silent.
	select {
	case frame := <-other.Recv():
		t.Fatalf("unexpected delivery to foreign session: %s", frame)
	case <-time.After(50 * time.Millisecond):
	}

	assert.EqualValues(t, 1, owner.EventsSent())
}

func TestHub_EmitValidationFailure(t *testing.T) {
	t.Parallel()

	hub, _ := newTestHub(t)

	res := hub.Emit(context.Background(), &event.Event{Type: "card.exploded", SessionID: "S1", UserID: "U1"})

	require.False(t, res.Success)
	assert.Equal(t, event.CodeUnknownEventType, res.Code)
	assert.False(t, res.Fallback)
	assert.Zero(t, hub.QueueDepth(), "rejected events are never enqueued")
}

func TestHub_CircuitBreakerGate(t *testing.T) {
	t.Parallel()

	hub, _ := newTestHub(t)
	ctx := context.Background()

	// Five consecutive validation failures trip the breaker.
	for i := 0; i < 5; i++ {
		res := hub.Emit(ctx, &event.Event{Type: "card.exploded"})
		require.False(t, res.Success)
	}

	res := hub.Emit(ctx, cardCreated("S1", "U1"))
	require.False(t, res.Success)
	assert.Equal(t, service.CodeCircuitBreakerOpen, res.Code)
	assert.True(t, res.Fallback, "open breaker must hint the fallback path")
	assert.Zero(t, hub.QueueDepth(), "gated events are never enqueued")

	assert.Equal(t, service.StatusCritical, hub.HealthStatus().Status)
}

func TestHub_QueueOverflow(t *testing.T) {
	t.Parallel()

	// Drain loop intentionally not started: events pile up.
	hub, _ := newTestHub(t, service.WithMaxQueueSize(2))
	ctx := context.Background()

	t.Run("durable entries reject the newcomer", func(t *testing.T) {
		require.True(t, hub.Emit(ctx, cardCreated("S1", "U1")).Success)
		require.True(t, hub.Emit(ctx, cardCreated("S1", "U1")).Success)

		res := hub.Emit(ctx, cardCreated("S1", "U1"))
		require.False(t, res.Success)
		assert.Equal(t, service.CodeQueueOverflow, res.Code)
		assert.False(t, res.Fallback)

		// Queue pressure is a capacity condition, not a breaker fault.
		assert.Equal(t, service.StatusHealthy, hub.HealthStatus().Status)
	})
}

func TestHub_QueueEvictsEphemeralFirst(t *testing.T) {
	t.Parallel()

	hub, _ := newTestHub(t, service.WithMaxQueueSize(2))
	ctx := context.Background()

	joined := func() *event.Event {
		return &event.Event{Type: event.TypeSessionJoined, UserID: "U1", Data: map[string]any{}}
	}
	require.True(t, hub.Emit(ctx, joined()).Success)
	require.True(t, hub.Emit(ctx, joined()).Success)
	require.Equal(t, 2, hub.QueueDepth())

	// A durable event displaces the ephemeral backlog instead of failing.
	res := hub.Emit(ctx, cardCreated("S1", "U1"))
	require.True(t, res.Success)
	assert.Equal(t, 1, hub.QueueDepth())
}

func TestHub_RateLimit(t *testing.T) {
	t.Parallel()

	types := event.NewRegistry(&event.TypeConfig{
		Type:          "test.limited",
		Schema:        func(map[string]any) map[string]string { return nil },
		Authorization: event.ScopeUser,
		Broadcast:     true,
		Priority:      event.PriorityLow,
		RateLimit:     event.RateLimit{Window: time.Minute, MaxEvents: 2},
	})
	conns := registry.New()
	hub := service.NewHub(types, conns, breaker.New(), service.NewMonitor())
	ctx := context.Background()

	limited := func() *event.Event {
		return &event.Event{Type: "test.limited", SessionID: "S1", UserID: "U1", Data: map[string]any{}}
	}

	require.True(t, hub.Emit(ctx, limited()).Success)
	require.True(t, hub.Emit(ctx, limited()).Success)

	res := hub.Emit(ctx, limited())
	require.False(t, res.Success)
	assert.Equal(t, service.CodeRateLimitExceeded, res.Code)

	// Breach does not count against the breaker.
	assert.Equal(t, service.StatusHealthy, hub.HealthStatus().Status)
}

func TestHub_EmergencyDisable(t *testing.T) {
	t.Parallel()

	hub, _ := newTestHub(t)
	ctx := context.Background()

	conn := hub.Attach(ctx, "S1", "U1")
	require.True(t, hub.Emit(ctx, cardCreated("S1", "U1")).Success)

	hub.EmergencyDisable("load shedding drill")

	health := hub.HealthStatus()
	assert.Equal(t, service.StatusDisabled, health.Status)
	assert.Equal(t, "load shedding drill", health.Reason)
	assert.Zero(t, health.QueueDepth)
	assert.Zero(t, health.ActiveConnections)
	assert.False(t, conn.IsActive())

	res := hub.Emit(ctx, cardCreated("S1", "U1"))
	require.False(t, res.Success)
	assert.Equal(t, service.CodeHubDisabled, res.Code)
	assert.True(t, res.Fallback)

	hub.Enable()
	assert.Equal(t, service.StatusHealthy, hub.HealthStatus().Status)
	assert.True(t, hub.Emit(ctx, cardCreated("S1", "U1")).Success)
}

func TestHub_BrokenConnectionIsEvicted(t *testing.T) {
	t.Parallel()

	hub, conns := newTestHub(t,
		service.WithDrainInterval(5*time.Millisecond),
		service.WithSendTimeout(10*time.Millisecond),
	)
	hub.Start()
	t.Cleanup(func() { _ = hub.Stop() })

	ctx := context.Background()

	// A connection with a full buffer and no reader simulates a dead peer.
	stuck := conns.Create(ctx, "S1", "U1")
	healthy := hub.Attach(ctx, "S1", "U2")

	// Saturate the stuck connection's buffer.
	for stuck.Send([]byte("{}"), time.Millisecond) {
	}

	require.True(t, hub.Emit(ctx, cardCreated("S1", "U1")).Success)

	// The healthy peer still gets its frame.
	select {
	case <-healthy.Recv():
	case <-time.After(2 * time.Second):
		t.Fatal("healthy connection did not receive the event")
	}

	require.Eventually(t, func() bool { return !stuck.IsActive() },
		2*time.Second, 10*time.Millisecond, "stuck connection should be evicted")
}

func TestHub_StopNotHeldBySlowSubscriber(t *testing.T) {
	t.Parallel()

	conns := registry.New(registry.WithBufferSize(1))
	hub := service.NewHub(
		event.NewBoardRegistry(),
		conns,
		breaker.New(),
		service.NewMonitor(),
		service.WithDrainInterval(5*time.Millisecond),
		service.WithSendTimeout(2*time.Second),
	)
	hub.Start()

	ctx := context.Background()
	slow := hub.Attach(ctx, "S1", "U1")

	// A reader that takes 150ms per frame keeps every send blocking for a
	// while without ever failing one, so the connection is never evicted.
	go func() {
		for range slow.Recv() {
			time.Sleep(150 * time.Millisecond)
		}
	}()

	for i := 0; i < 12; i++ {
		require.True(t, hub.Emit(ctx, cardCreated("S1", "U1")).Success)
	}
	time.Sleep(50 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- hub.Stop() }()

	// Stop abandons the backlog instead of delivering it at the slow
	// subscriber's pace.
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown waited for the full backlog behind a slow subscriber")
	}
}

func TestHub_ShouldPersist(t *testing.T) {
	t.Parallel()

	hub, _ := newTestHub(t)

	assert.True(t, hub.ShouldPersist(event.TypeCardMoved))
	assert.False(t, hub.ShouldPersist(event.TypeHeartbeat))
}

// captureDispatcher records persisted events handed to the storage
// collaborator.
type captureDispatcher struct {
	ch chan *event.Event
}

func (d *captureDispatcher) Dispatch(_ context.Context, ev *event.Event) error {
	d.ch <- ev
	return nil
}

func TestHub_PersistenceDispatch(t *testing.T) {
	t.Parallel()

	disp := &captureDispatcher{ch: make(chan *event.Event, 8)}
	hub, _ := newTestHub(t,
		service.WithDrainInterval(5*time.Millisecond),
		service.WithDispatcher(disp),
	)
	hub.Start()
	t.Cleanup(func() { _ = hub.Stop() })

	ctx := context.Background()
	res := hub.Emit(ctx, cardCreated("S1", "U1"))
	require.True(t, res.Success)

	select {
	case ev := <-disp.ch:
		assert.Equal(t, res.EventID, ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("persisted event never reached the dispatcher")
	}

	// Ephemeral events are not handed to the storage collaborator.
	require.True(t, hub.Emit(ctx, &event.Event{Type: event.TypeSessionJoined, UserID: "U1", Data: map[string]any{}}).Success)
	select {
	case ev := <-disp.ch:
		t.Fatalf("unexpected dispatch of ephemeral event %s", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}
