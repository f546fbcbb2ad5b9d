package hub

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"soc-realtime/internal/realtime"
	"soc-realtime/pkg/log"
)

// Connection represents one client websocket connection.
type Connection struct {
	// Hub reference
	hub *Hub

	// WebSocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// Configuration
	pongWait       time.Duration
	pingPeriod     time.Duration
	writeWait      time.Duration
	maxMessageSize int64

	// Logger
	logger log.Logger

	// Done signal
	done chan struct{}
}

// NewConnection creates a new Connection instance.
func NewConnection(
	hub *Hub,
	conn *websocket.Conn,
	pongWait time.Duration,
	pingPeriod time.Duration,
	writeWait time.Duration,
	maxMessageSize int64,
	logger log.Logger,
) *Connection {
	return &Connection{
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, 256),
		pongWait:       pongWait,
		pingPeriod:     pingPeriod,
		writeWait:      writeWait,
		maxMessageSize: maxMessageSize,
		logger:         logger,
		done:           make(chan struct{}),
	}
}

// readPump pumps messages from the websocket connection to the hub.
//
// The application runs readPump in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection
// by executing all reads from this goroutine.
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})
	c.conn.SetReadLimit(c.maxMessageSize)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Errorf(context.Background(), "WebSocket read error: %v", err)
			}
			break
		}

		c.handleFrame(raw)
	}
}

// handleFrame processes one inbound control frame. Malformed frames are
// logged and dropped; they never tear down the connection.
func (c *Connection) handleFrame(raw []byte) {
	f, err := realtime.DecodeFrame(raw)
	if err != nil {
		c.logger.Warnf(context.Background(), "Dropping malformed frame: %v", err)
		return
	}

	switch f.Type {
	case realtime.FrameSubscribe:
		c.hub.Subscribe(c, f.Channels...)
	case realtime.FrameUnsubscribe:
		c.hub.Unsubscribe(c, f.Channels...)
	case realtime.FramePing:
		c.sendFrame(&realtime.Frame{
			Type:      realtime.EventPong,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	default:
		c.logger.Debugf(context.Background(), "Ignoring inbound frame type: %s", f.Type)
	}
}

// writePump pumps messages from the hub to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection
// by executing all writes from this goroutine.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))

			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// Protocol-level keepalive ping
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// sendFrame queues one frame for this connection, dropping it when the
// buffer is full.
func (c *Connection) sendFrame(f *realtime.Frame) {
	data, err := f.Encode()
	if err != nil {
		c.logger.Errorf(context.Background(), "Failed to encode frame: %v", err)
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warnf(context.Background(), "Dropping %s frame (buffer full)", f.Type)
	}
}

// Start starts the connection's read and write pumps.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection.
func (c *Connection) Close() {
	select {
	case <-c.done:
		// Already closed
		return
	default:
		close(c.done)
		c.conn.Close()
	}
}
