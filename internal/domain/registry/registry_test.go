package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardkit/event-hub/internal/domain/event"
	"github.com/boardkit/event-hub/internal/domain/registry"
)

func sessionOwnerConfig() *event.TypeConfig {
	cfg, _ := event.NewBoardRegistry().Lookup(event.TypeCardCreated)
	return cfg
}

func TestRegistry_CreateRemove(t *testing.T) {
	t.Parallel()

	r := registry.New()
	conn := r.Create(context.Background(), "S1", "U1")

	require.NotEmpty(t, conn.ID())
	assert.True(t, conn.IsActive())
	assert.Equal(t, 1, r.ActiveCount())

	r.Remove(conn.ID())
	assert.False(t, conn.IsActive())
	assert.Equal(t, 0, r.ActiveCount())

	// Removing again is a no-op.
	r.Remove(conn.ID())
	r.Remove("never-existed")
	assert.Equal(t, 0, r.ActiveCount())

	// The frame channel is closed so transport pumps terminate.
	_, ok := <-conn.Recv()
	assert.False(t, ok)
}

func TestRegistry_SelectTargets(t *testing.T) {
	t.Parallel()

	r := registry.New()
	ctx := context.Background()

	s1a := r.Create(ctx, "S1", "U1")
	s1b := r.Create(ctx, "S1", "U2")
	s2 := r.Create(ctx, "S2", "U1") // same user, different session

	t.Run("session-owner matches session only", func(t *testing.T) {
		ev := &event.Event{Type: event.TypeCardCreated, SessionID: "S1", UserID: "U1"}
		targets := r.SelectTargets(ev, sessionOwnerConfig())

		ids := connIDs(targets)
		assert.ElementsMatch(t, []string{s1a.ID(), s1b.ID()}, ids)
		assert.NotContains(t, ids, s2.ID(), "same user in another session must not receive the event")
	})

	t.Run("user-scoped matches user across sessions", func(t *testing.T) {
		cfg, _ := event.NewBoardRegistry().Lookup(event.TypeSessionJoined)
		ev := &event.Event{Type: event.TypeSessionJoined, UserID: "U1"}
		targets := r.SelectTargets(ev, cfg)

		assert.ElementsMatch(t, []string{s1a.ID(), s2.ID()}, connIDs(targets))
	})

	t.Run("system matches all active", func(t *testing.T) {
		cfg, _ := event.NewBoardRegistry().Lookup(event.TypeAnnouncement)
		ev := &event.Event{Type: event.TypeAnnouncement, Source: event.SourceSystem}
		targets := r.SelectTargets(ev, cfg)

		assert.Len(t, targets, 3)
	})

	t.Run("removed connection is no longer a target", func(t *testing.T) {
		r.Remove(s1b.ID())

		ev := &event.Event{Type: event.TypeCardCreated, SessionID: "S1", UserID: "U1"}
		targets := r.SelectTargets(ev, sessionOwnerConfig())
		assert.ElementsMatch(t, []string{s1a.ID()}, connIDs(targets))
	})
}

func TestRegistry_SweepSilent(t *testing.T) {
	t.Parallel()

	now := time.Unix(10_000, 0)
	r := registry.New(registry.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	stale := r.Create(ctx, "S1", "U1")
	fresh := r.Create(ctx, "S1", "U2")

	// 91s of silence for one connection, 89s for the other.
	now = now.Add(91 * time.Second)
	fresh.Heartbeat(now.Add(-89 * time.Second))

	evicted := r.SweepSilent(90 * time.Second)

	assert.Equal(t, 1, evicted)
	assert.False(t, stale.IsActive())
	assert.True(t, fresh.IsActive())
	assert.Equal(t, 1, r.ActiveCount())
}

func TestRegistry_Heartbeat(t *testing.T) {
	t.Parallel()

	now := time.Unix(10_000, 0)
	r := registry.New(registry.WithClock(func() time.Time { return now }))

	conn := r.Create(context.Background(), "S1", "U1")

	now = now.Add(time.Minute)
	require.True(t, r.Heartbeat(conn.ID()))
	assert.Equal(t, now, conn.LastHeartbeat())

	assert.False(t, r.Heartbeat("unknown"))
}

func TestConnection_Send(t *testing.T) {
	t.Parallel()

	r := registry.New(registry.WithBufferSize(1))
	conn := r.Create(context.Background(), "S1", "U1")

	require.True(t, conn.Send([]byte("one"), 10*time.Millisecond))
	assert.EqualValues(t, 1, conn.EventsSent())

	// Buffer full and no reader: the send times out instead of blocking.
	assert.False(t, conn.Send([]byte("two"), 10*time.Millisecond))
	assert.EqualValues(t, 1, conn.Dropped())

	r.Remove(conn.ID())
	assert.False(t, conn.Send([]byte("three"), 10*time.Millisecond), "send after close fails")
}

func TestRegistry_CloseAll(t *testing.T) {
	t.Parallel()

	r := registry.New()
	ctx := context.Background()
	a := r.Create(ctx, "S1", "U1")
	b := r.Create(ctx, "S2", "U2")

	r.CloseAll()

	assert.Equal(t, 0, r.ActiveCount())
	assert.False(t, a.IsActive())
	assert.False(t, b.IsActive())
}

func connIDs(conns []*registry.Connection) []string {
	ids := make([]string, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ID())
	}
	return ids
}
