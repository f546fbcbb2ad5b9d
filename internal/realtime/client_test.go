package realtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-realtime/internal/realtime"
	"soc-realtime/pkg/log"
)

// rtServer is a minimal realtime backend for driving the client.
type rtServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	reject atomic.Bool

	mu     sync.Mutex
	conns  []*websocket.Conn
	frames chan *realtime.Frame
}

func newRTServer(t *testing.T) *rtServer {
	s := &rtServer{
		t:      t,
		frames: make(chan *realtime.Frame, 64),
	}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.reject.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if f, err := realtime.DecodeFrame(raw); err == nil {
				s.frames <- f
			}
		}
	}))

	t.Cleanup(s.srv.Close)
	return s
}

func (s *rtServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// push sends a frame to the most recent connection.
func (s *rtServer) push(t *testing.T, f *realtime.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	require.NotEmpty(t, s.conns, "no connection to push to")
	conn := s.conns[len(s.conns)-1]

	data, err := f.Encode()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// killAll drops every connection without a close frame, which the
// client observes as an abnormal closure.
func (s *rtServer) killAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conn := range s.conns {
		conn.UnderlyingConn().Close()
	}
	s.conns = nil
}

func (s *rtServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// nextFrame waits for the next inbound frame of the given type.
func (s *rtServer) nextFrame(t *testing.T, frameType string) *realtime.Frame {
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-s.frames:
			if f.Type == frameType {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s frame", frameType)
			return nil
		}
	}
}

func newTestClient(t *testing.T, endpoint string, policy realtime.ReconnectPolicy) *realtime.Client {
	c, err := realtime.NewClient(realtime.Options{
		Endpoint:          endpoint,
		Policy:            policy,
		HeartbeatInterval: -1, // disabled: tests assert exact frame traffic
		HandshakeTimeout:  time.Second,
		WriteWait:         time.Second,
		Logger:            log.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// stateRecorder collects connection state transitions.
type stateRecorder struct {
	mu      sync.Mutex
	changes []realtime.StateChange
}

func (r *stateRecorder) record(change realtime.StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *stateRecorder) states() []realtime.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]realtime.ConnectionState, len(r.changes))
	for i, change := range r.changes {
		out[i] = change.New
	}
	return out
}

func TestClient_ConnectReplaysSubscriptions(t *testing.T) {
	srv := newRTServer(t)
	c := newTestClient(t, srv.url(), realtime.ReconnectPolicy{BaseDelay: 20 * time.Millisecond, MaxAttempts: 3})

	// Offline subscriptions are deferred, not dropped.
	c.Subscribe("alerts", "notifications")
	assert.Equal(t, realtime.StateDisconnected, c.State())

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, realtime.StateConnected, c.State())

	f := srv.nextFrame(t, realtime.FrameSubscribe)
	assert.Equal(t, []string{"alerts", "notifications"}, f.Channels)
}

func TestClient_ConnectIsIdempotent(t *testing.T) {
	srv := newRTServer(t)
	c := newTestClient(t, srv.url(), realtime.ReconnectPolicy{BaseDelay: 20 * time.Millisecond, MaxAttempts: 3})

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Connect(context.Background()))

	assert.Eventually(t, func() bool { return srv.connCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, realtime.StateConnected, c.State())
}

func TestClient_DispatchesInboundEvents(t *testing.T) {
	srv := newRTServer(t)
	c := newTestClient(t, srv.url(), realtime.ReconnectPolicy{BaseDelay: 20 * time.Millisecond, MaxAttempts: 3})

	received := make(chan *realtime.Frame, 1)
	c.On(realtime.EventNotification, func(f *realtime.Frame) { received <- f })

	require.NoError(t, c.Connect(context.Background()))

	srv.push(t, &realtime.Frame{
		Type: realtime.EventNotification,
		Data: []byte(`{"title":"X","message":"Y","priority":"high"}`),
	})

	select {
	case f := <-received:
		var payload struct {
			Title    string `json:"title"`
			Priority string `json:"priority"`
		}
		require.NoError(t, f.DecodeData(&payload))
		assert.Equal(t, "X", payload.Title)
		assert.Equal(t, "high", payload.Priority)
	case <-time.After(2 * time.Second):
		t.Fatal("notification handler never ran")
	}
}

func TestClient_ReconnectsAfterAbnormalClose(t *testing.T) {
	srv := newRTServer(t)
	c := newTestClient(t, srv.url(), realtime.ReconnectPolicy{BaseDelay: 30 * time.Millisecond, MaxAttempts: 5})

	rec := &stateRecorder{}
	c.OnStateChange(rec.record)

	c.Subscribe("alerts")
	require.NoError(t, c.Connect(context.Background()))
	srv.nextFrame(t, realtime.FrameSubscribe)

	srv.killAll()

	assert.Eventually(t, func() bool { return c.State() == realtime.StateConnected }, 2*time.Second, 10*time.Millisecond)

	// The fresh connection gets the full subscription set again.
	f := srv.nextFrame(t, realtime.FrameSubscribe)
	assert.Equal(t, []string{"alerts"}, f.Channels)

	// Counter resets on success.
	assert.Equal(t, 0, c.Attempts())

	states := rec.states()
	assert.Contains(t, states, realtime.StateReconnecting)
	assert.Equal(t, realtime.StateConnected, states[len(states)-1])
}

func TestClient_FailsAfterRetryCeiling(t *testing.T) {
	srv := newRTServer(t)
	endpoint := srv.url()
	srv.srv.Close() // nothing listening: every dial fails

	c := newTestClient(t, endpoint, realtime.ReconnectPolicy{BaseDelay: 10 * time.Millisecond, MaxAttempts: 2})

	err := c.Connect(context.Background())
	require.Error(t, err)

	assert.Eventually(t, func() bool { return c.State() == realtime.StateFailed }, 2*time.Second, 10*time.Millisecond)

	// No further automatic timer after Failed.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, realtime.StateFailed, c.State())
}

func TestClient_CloseCancelsPendingReconnect(t *testing.T) {
	srv := newRTServer(t)
	c := newTestClient(t, srv.url(), realtime.ReconnectPolicy{BaseDelay: 80 * time.Millisecond, MaxAttempts: 5})

	require.NoError(t, c.Connect(context.Background()))
	srv.killAll()

	assert.Eventually(t, func() bool { return c.State() == realtime.StateReconnecting }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.Equal(t, realtime.StateDisconnected, c.State())

	// The cancelled timer must not race the deliberate shutdown.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, realtime.StateDisconnected, c.State())
	assert.Zero(t, srv.connCount())
}

func TestClient_NormalCloseDoesNotRetry(t *testing.T) {
	srv := newRTServer(t)
	c := newTestClient(t, srv.url(), realtime.ReconnectPolicy{BaseDelay: 10 * time.Millisecond, MaxAttempts: 5})

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	assert.Eventually(t, func() bool { return c.State() == realtime.StateDisconnected }, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, realtime.StateDisconnected, c.State())
}

func TestClient_HeartbeatWhileConnected(t *testing.T) {
	srv := newRTServer(t)

	c, err := realtime.NewClient(realtime.Options{
		Endpoint:          srv.url(),
		Policy:            realtime.ReconnectPolicy{BaseDelay: 20 * time.Millisecond, MaxAttempts: 3},
		HeartbeatInterval: 30 * time.Millisecond,
		HandshakeTimeout:  time.Second,
		WriteWait:         time.Second,
		Logger:            log.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.Connect(context.Background()))

	f := srv.nextFrame(t, realtime.FramePing)
	ts, err := time.Parse(time.RFC3339, f.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, 5*time.Second)

	// A second tick proves the ping is periodic, not a connect one-off.
	srv.nextFrame(t, realtime.FramePing)

	require.NoError(t, c.Close())

	// Drain in-flight frames, then the line must stay silent.
	deadline := time.After(200 * time.Millisecond)
drain:
	for {
		select {
		case <-srv.frames:
		case <-deadline:
			break drain
		}
	}

	select {
	case f := <-srv.frames:
		t.Fatalf("received %s frame after Close", f.Type)
	case <-time.After(120 * time.Millisecond):
	}
}

func TestClient_CloseDuringFailedConnect(t *testing.T) {
	srv := newRTServer(t)
	srv.reject.Store(true)

	c := newTestClient(t, srv.url(), realtime.ReconnectPolicy{BaseDelay: 40 * time.Millisecond, MaxAttempts: 5})

	require.Error(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	// Deterministic immediately, not eventually.
	assert.Equal(t, realtime.StateDisconnected, c.State())

	// The abandoned retry schedule must not resurrect Reconnecting.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, realtime.StateDisconnected, c.State())
}

func TestClient_ManualConnectResumesFromFailed(t *testing.T) {
	srv := newRTServer(t)
	c := newTestClient(t, srv.url(), realtime.ReconnectPolicy{BaseDelay: 10 * time.Millisecond, MaxAttempts: 1})

	require.NoError(t, c.Connect(context.Background()))

	srv.reject.Store(true)
	srv.killAll()

	assert.Eventually(t, func() bool { return c.State() == realtime.StateFailed }, 2*time.Second, 10*time.Millisecond)

	srv.reject.Store(false)
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, realtime.StateConnected, c.State())
	assert.Equal(t, 0, c.Attempts())
}
