package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardkit/event-hub/internal/domain/breaker"
	"github.com/boardkit/event-hub/internal/domain/event"
	"github.com/boardkit/event-hub/internal/domain/registry"
	handlerhttp "github.com/boardkit/event-hub/internal/handler/http"
	"github.com/boardkit/event-hub/internal/service"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func newTestServer(t *testing.T, opts ...handlerhttp.HandlerOption) (*httptest.Server, *service.Hub) {
	t.Helper()

	hub := service.NewHub(
		event.NewBoardRegistry(),
		registry.New(),
		breaker.New(),
		service.NewMonitor(),
		service.WithDrainInterval(5*time.Millisecond),
	)
	hub.Start()
	t.Cleanup(func() { _ = hub.Stop() })

	h := handlerhttp.NewHandler(hub, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	router := chi.NewRouter()
	h.Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, hub
}

func postEvent(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestEmit_Accepted(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp := postEvent(t, srv, `{
		"eventType": "card.created",
		"sessionId": "S1",
		"userId": "U1",
		"eventData": {"cardId": "c1", "cardData": {"type": "topic"}}
	}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res service.EmitResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.EventID)
	require.NotNil(t, res.Performance)
}

func TestEmit_RejectedEvent(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp := postEvent(t, srv, `{"eventType": "card.imploded", "sessionId": "S1", "userId": "U1"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var res service.EmitResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.False(t, res.Success)
	assert.Equal(t, event.CodeUnknownEventType, res.Code)
}

func TestEmit_MalformedBody(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp := postEvent(t, srv, `{"eventType": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEmit_DisabledHubReturns503(t *testing.T) {
	t.Parallel()

	srv, hub := newTestServer(t)
	hub.EmergencyDisable("maintenance")

	resp := postEvent(t, srv, `{
		"eventType": "card.created",
		"sessionId": "S1",
		"userId": "U1",
		"eventData": {"cardId": "c1", "cardData": {"type": "topic"}}
	}`)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var res service.EmitResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, service.CodeHubDisabled, res.Code)
	assert.True(t, res.Fallback)
}

func TestStream_DeliversFrames(t *testing.T) {
	t.Parallel()

	srv, hub := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet,
		srv.URL+"/api/v1/events/stream?session_id=S1&user_id=U1", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Connection-ID"))

	reader := bufio.NewReader(resp.Body)

	// First line is the connected comment.
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, ": connected "))
	_, _ = reader.ReadString('\n')

	res := hub.Emit(testContext(t), &event.Event{
		Type:      event.TypeCardCreated,
		SessionID: "S1",
		UserID:    "U1",
		Data:      map[string]any{"cardId": "c1", "cardData": map[string]any{"type": "topic"}},
	})
	require.True(t, res.Success, "emit failed: %s", res.Error)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "), "unexpected frame line: %q", line)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload))
	assert.Equal(t, event.TypeCardCreated, payload["eventType"])
	assert.Equal(t, res.EventID, payload["eventId"])
	assert.Equal(t, "S1", payload["sessionId"])

	// Frame terminator: one blank line.
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "\n", line)
}

func TestStream_RequiresUserID(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/events/stream?session_id=S1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHeartbeat(t *testing.T) {
	t.Parallel()

	srv, hub := newTestServer(t)
	conn := hub.Attach(testContext(t), "S1", "U1")
	t.Cleanup(func() { hub.Detach(conn.ID()) })

	resp, err := http.Post(srv.URL+"/api/v1/connections/"+conn.ID()+"/heartbeat", "", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/connections/nope/heartbeat", "", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdmin_DisableEnableCycle(t *testing.T) {
	t.Parallel()

	srv, hub := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/admin/disable", "application/json",
		strings.NewReader(`{"reason": "incident 42"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, service.StatusDisabled, hub.HealthStatus().Status)

	resp, err = http.Post(srv.URL+"/api/v1/admin/enable", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, service.StatusHealthy, hub.HealthStatus().Status)
}

func TestAdmin_Health(t *testing.T) {
	t.Parallel()

	srv, hub := newTestServer(t)
	conn := hub.Attach(testContext(t), "S1", "U1")
	t.Cleanup(func() { hub.Detach(conn.ID()) })

	resp, err := http.Get(srv.URL + "/api/v1/admin/health")
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health service.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, service.StatusHealthy, health.Status)
	assert.Equal(t, 1, health.ActiveConnections)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
