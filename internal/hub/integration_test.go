package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"soc-realtime/internal/realtime"
	"soc-realtime/pkg/log"
)

func testWSConfig() WSConfig {
	return WSConfig{
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	}
}

type hubHarness struct {
	hub *Hub
	srv *httptest.Server
}

func newHubHarness(t *testing.T, maxConnections int) *hubHarness {
	t.Helper()

	h := NewHub(log.Nop(), maxConnections)
	go h.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.Shutdown(ctx)
	})

	handler := NewHandler(h, nil, log.Nop(), testWSConfig())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.SetupRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &hubHarness{hub: h, srv: srv}
}

func (hh *hubHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(hh.srv.URL, "http") + realtime.DefaultPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) (*realtime.Frame, error) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(timeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return realtime.DecodeFrame(raw)
}

func writeFrame(t *testing.T, conn *websocket.Conn, f *realtime.Frame) {
	t.Helper()

	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Failed to encode frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
}

// waitForTopics polls until the hub sees the expected topic count.
func waitForTopics(t *testing.T, h *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Stats().ActiveTopics == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d active topics (have %d)", want, h.Stats().ActiveTopics)
}

func TestHub_ConnectionEstablishedOnConnect(t *testing.T) {
	hh := newHubHarness(t, 100)
	conn := hh.dial(t)

	f, err := readFrame(t, conn, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to read welcome frame: %v", err)
	}
	if f.Type != realtime.EventConnectionEstablished {
		t.Errorf("first frame type = %q, want %q", f.Type, realtime.EventConnectionEstablished)
	}
	if f.Timestamp == "" {
		t.Error("welcome frame missing timestamp")
	}
}

func TestHub_SubscribePublishReceive(t *testing.T) {
	hh := newHubHarness(t, 100)
	conn := hh.dial(t)

	if _, err := readFrame(t, conn, 2*time.Second); err != nil {
		t.Fatalf("Failed to read welcome frame: %v", err)
	}

	writeFrame(t, conn, &realtime.Frame{Type: realtime.FrameSubscribe, Channels: []string{"alerts"}})
	waitForTopics(t, hh.hub, 1)

	hh.hub.Publish("alerts", &realtime.Frame{
		Type: realtime.EventNewAlert,
		Data: json.RawMessage(`{"id":"a-1","severity":"high"}`),
	})

	f, err := readFrame(t, conn, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to read published frame: %v", err)
	}
	if f.Type != realtime.EventNewAlert {
		t.Errorf("frame type = %q, want %q", f.Type, realtime.EventNewAlert)
	}

	var alert struct {
		ID string `json:"id"`
	}
	if err := f.DecodeData(&alert); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
	if alert.ID != "a-1" {
		t.Errorf("alert id = %q, want a-1", alert.ID)
	}
}

func TestHub_TopicFiltering(t *testing.T) {
	hh := newHubHarness(t, 100)

	alerts := hh.dial(t)
	if _, err := readFrame(t, alerts, 2*time.Second); err != nil {
		t.Fatalf("Failed to read welcome frame: %v", err)
	}
	notifications := hh.dial(t)
	if _, err := readFrame(t, notifications, 2*time.Second); err != nil {
		t.Fatalf("Failed to read welcome frame: %v", err)
	}

	writeFrame(t, alerts, &realtime.Frame{Type: realtime.FrameSubscribe, Channels: []string{"alerts"}})
	writeFrame(t, notifications, &realtime.Frame{Type: realtime.FrameSubscribe, Channels: []string{"notifications"}})
	waitForTopics(t, hh.hub, 2)

	hh.hub.Publish("alerts", &realtime.Frame{Type: realtime.EventNewAlert})

	if _, err := readFrame(t, alerts, 2*time.Second); err != nil {
		t.Errorf("alerts subscriber should have received the frame: %v", err)
	}

	// The notifications subscriber must not see the alerts frame.
	if f, err := readFrame(t, notifications, 300*time.Millisecond); err == nil {
		t.Errorf("notifications subscriber received %q frame for another topic", f.Type)
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hh := newHubHarness(t, 100)
	conn := hh.dial(t)

	if _, err := readFrame(t, conn, 2*time.Second); err != nil {
		t.Fatalf("Failed to read welcome frame: %v", err)
	}

	writeFrame(t, conn, &realtime.Frame{Type: realtime.FrameSubscribe, Channels: []string{"alerts"}})
	waitForTopics(t, hh.hub, 1)

	writeFrame(t, conn, &realtime.Frame{Type: realtime.FrameUnsubscribe, Channels: []string{"alerts"}})
	waitForTopics(t, hh.hub, 0)

	hh.hub.Publish("alerts", &realtime.Frame{Type: realtime.EventNewAlert})

	if f, err := readFrame(t, conn, 300*time.Millisecond); err == nil {
		t.Errorf("received %q frame after unsubscribe", f.Type)
	}
}

func TestHub_PingPong(t *testing.T) {
	hh := newHubHarness(t, 100)
	conn := hh.dial(t)

	if _, err := readFrame(t, conn, 2*time.Second); err != nil {
		t.Fatalf("Failed to read welcome frame: %v", err)
	}

	writeFrame(t, conn, &realtime.Frame{Type: realtime.FramePing})

	f, err := readFrame(t, conn, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to read pong: %v", err)
	}
	if f.Type != realtime.EventPong {
		t.Errorf("frame type = %q, want %q", f.Type, realtime.EventPong)
	}
}

func TestHub_MalformedFrameIgnored(t *testing.T) {
	hh := newHubHarness(t, 100)
	conn := hh.dial(t)

	if _, err := readFrame(t, conn, 2*time.Second); err != nil {
		t.Fatalf("Failed to read welcome frame: %v", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	// The connection survives: a ping still round-trips.
	writeFrame(t, conn, &realtime.Frame{Type: realtime.FramePing})
	f, err := readFrame(t, conn, 2*time.Second)
	if err != nil {
		t.Fatalf("connection died after malformed frame: %v", err)
	}
	if f.Type != realtime.EventPong {
		t.Errorf("frame type = %q, want %q", f.Type, realtime.EventPong)
	}
}

func TestHub_InvalidTopicRejected(t *testing.T) {
	hh := newHubHarness(t, 100)
	conn := hh.dial(t)

	if _, err := readFrame(t, conn, 2*time.Second); err != nil {
		t.Fatalf("Failed to read welcome frame: %v", err)
	}

	writeFrame(t, conn, &realtime.Frame{Type: realtime.FrameSubscribe, Channels: []string{"bad topic!"}})
	writeFrame(t, conn, &realtime.Frame{Type: realtime.FramePing})

	// Pong proves the subscribe frame was processed before we check.
	if _, err := readFrame(t, conn, 2*time.Second); err != nil {
		t.Fatalf("Failed to read pong: %v", err)
	}

	if got := hh.hub.Stats().ActiveTopics; got != 0 {
		t.Errorf("ActiveTopics = %d, want 0 after invalid topic", got)
	}
}

func TestHub_StatsEndpoint(t *testing.T) {
	hh := newHubHarness(t, 100)
	conn := hh.dial(t)

	if _, err := readFrame(t, conn, 2*time.Second); err != nil {
		t.Fatalf("Failed to read welcome frame: %v", err)
	}

	resp, err := http.Get(hh.srv.URL + "/api/v1/realtime/stats")
	if err != nil {
		t.Fatalf("Failed to fetch stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.ActiveConnections != 1 {
		t.Errorf("ActiveConnections = %d, want 1", stats.ActiveConnections)
	}
}

func TestHub_MaxConnectionsRejected(t *testing.T) {
	hh := newHubHarness(t, 1)

	first := hh.dial(t)
	if _, err := readFrame(t, first, 2*time.Second); err != nil {
		t.Fatalf("Failed to read welcome frame: %v", err)
	}

	second := hh.dial(t)

	// The hub closes the surplus connection instead of welcoming it.
	if f, err := readFrame(t, second, 2*time.Second); err == nil && f.Type == realtime.EventConnectionEstablished {
		t.Error("second connection was welcomed past the connection limit")
	}
}
