package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"soc-realtime/pkg/log"
)

// DefaultPath is the backend realtime endpoint path.
const DefaultPath = "/api/v1/realtime/ws"

// EndpointFromBase derives the websocket endpoint from an http(s) base URL:
// the scheme maps to ws/wss, the host is kept, and the path is fixed.
func EndpointFromBase(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	u.Path = DefaultPath
	u.RawQuery = ""
	return u.String(), nil
}

// Transport owns exactly one live websocket connection at a time.
//
// It is a best-effort channel: Send drops frames while disconnected
// instead of queuing them. Inbound messages and connection closures are
// reported through the onFrame and onClose callbacks, which must be set
// before the first Dial. Callbacks fire from the single read goroutine.
type Transport struct {
	endpoint  string
	header    http.Header
	dialer    *websocket.Dialer
	writeWait time.Duration
	logger    log.Logger

	onFrame func(raw []byte)
	onClose func(code int, err error)

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewTransport creates a new Transport for the given endpoint.
func NewTransport(endpoint string, header http.Header, handshakeTimeout, writeWait time.Duration, logger log.Logger) *Transport {
	return &Transport{
		endpoint: endpoint,
		header:   header,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		writeWait: writeWait,
		logger:    logger,
	}
}

// Dial establishes the connection. It is a no-op when a connection is
// already open.
func (t *Transport) Dial(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	conn, _, err := t.dialer.DialContext(ctx, t.endpoint, t.header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.endpoint, err)
	}

	t.conn = conn
	go t.readPump(conn)

	return nil
}

// Send serializes the frame and transmits it if the socket is open;
// otherwise the frame is silently dropped.
func (t *Transport) Send(f *Frame) error {
	data, err := f.Encode()
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		t.logger.Debugf(context.Background(), "Dropping %s frame: not connected", f.Type)
		return nil
	}

	t.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close initiates a clean shutdown with the given close code. The read
// pump observes the closure and reports it through onClose.
func (t *Transport) Close(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	t.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
	t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	return t.conn.Close()
}

// Connected reports whether a connection is currently open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// readPump reads messages off the connection until it dies. There is at
// most one reader per connection, as required by gorilla/websocket.
func (t *Transport) readPump(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
			}
			t.mu.Unlock()

			t.onClose(closeCode(err), err)
			return
		}

		t.onFrame(raw)
	}
}

// closeCode extracts the websocket close code from a read error.
// Errors without a close frame (network failures, dead sockets) count
// as abnormal closure.
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
