package inspect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filament-dev/filament/pkg/filament"
)

func newTestServer(t *testing.T, opts ...ServerOption) (*filament.Runtime, *Server, *httptest.Server) {
	t.Helper()
	rt := filament.New()
	s := NewServer(rt, opts...)
	rt.SetHooks(s)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return rt, s, ts
}

func TestStatsEndpoint(t *testing.T) {
	rt, _, ts := newTestServer(t)

	src := filament.NewObservable(rt, 1)
	c := filament.NewComputed(rt, func() int { return src.Get() })
	src.Set(2)
	_ = c.Get()

	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got struct {
		Evaluations   uint64 `json:"evaluations"`
		Notifications uint64 `json:"notifications"`
		DroppedEvents uint64 `json:"dropped_events"`
		Clients       int    `json:"clients"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.GreaterOrEqual(t, got.Evaluations, uint64(2))
	assert.GreaterOrEqual(t, got.Notifications, uint64(1))
	assert.Equal(t, 0, got.Clients)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	_, s, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	s.ComputedEvaluated(42 * time.Microsecond)
	s.NotificationDelivered("change", 2)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var first, second Event
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &first))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &second))

	assert.Equal(t, EventEvaluation, first.Type)
	assert.Equal(t, int64(42), first.DurationMicros)
	assert.Equal(t, EventNotification, second.Type)
	assert.Equal(t, "change", second.Event)
	assert.Equal(t, 2, second.Subscribers)
}

func TestClientDisconnectIsNoticed(t *testing.T) {
	_, s, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return s.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestOverflowDropsInsteadOfBlocking(t *testing.T) {
	rt := filament.New()
	s := NewServer(rt, WithBufferSize(1))

	// With the broadcast loop stopped the buffer fills up; further events must
	// drop rather than block the runtime goroutine.
	s.Close()
	require.Eventually(t, func() bool {
		s.FlushCompleted(1, 1)
		return s.DroppedEvents() > 0
	}, time.Second, time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	rt := filament.New()
	s := NewServer(rt)
	s.Close()
	assert.NotPanics(t, s.Close)
}
