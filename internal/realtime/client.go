package realtime

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"soc-realtime/pkg/log"
)

// DefaultHeartbeatInterval is the app-level ping cadence while connected.
const DefaultHeartbeatInterval = 30 * time.Second

// Options configures a Client.
type Options struct {
	// Endpoint is the full ws(s) URL; see EndpointFromBase.
	Endpoint string

	// Token, when set, is attached to the handshake as a query parameter.
	Token string

	Policy            ReconnectPolicy
	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration
	WriteWait         time.Duration
	Logger            log.Logger
}

// Client is the realtime connection context: it wires the transport,
// reconnect policy, multiplexer, and router behind one handle that is
// passed to consumers explicitly. Instances are independent, so tests
// can run several side by side.
type Client struct {
	transport *Transport
	mux       *Multiplexer
	router    *Router
	policy    ReconnectPolicy

	heartbeatInterval time.Duration
	handshakeTimeout  time.Duration
	logger            log.Logger

	mu            sync.Mutex
	state         ConnectionState
	attempts      int
	retryTimer    *time.Timer
	stopHeartbeat chan struct{}
	closed        bool
	listeners     []func(StateChange)
}

// NewClient creates a new Client instance.
func NewClient(opts Options) (*Client, error) {
	endpoint := opts.Endpoint
	if opts.Token != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		q := u.Query()
		q.Set("token", opts.Token)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	policy := opts.Policy
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultBaseDelay
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}

	heartbeat := opts.HeartbeatInterval
	if heartbeat == 0 {
		heartbeat = DefaultHeartbeatInterval
	}

	handshake := opts.HandshakeTimeout
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	writeWait := opts.WriteWait
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}

	c := &Client{
		transport:         NewTransport(endpoint, nil, handshake, writeWait, logger),
		router:            NewRouter(logger),
		policy:            policy,
		heartbeatInterval: heartbeat,
		handshakeTimeout:  handshake,
		logger:            logger,
		state:             StateDisconnected,
	}
	c.mux = NewMultiplexer(c.transport, logger)

	c.transport.onFrame = c.router.Dispatch
	c.transport.onClose = c.handleClose

	return c, nil
}

// Connect establishes the connection. It is a no-op while connected or
// connecting. A manual Connect also resumes from Failed and preempts a
// pending retry timer.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.cancelRetryLocked()
	change := c.setStateLocked(StateConnecting, nil)
	c.mu.Unlock()
	c.emit(change)

	if err := c.transport.Dial(ctx); err != nil {
		c.mu.Lock()
		change := c.scheduleReconnectLocked(err)
		c.mu.Unlock()
		c.emit(change)
		return err
	}

	c.finishConnect()
	return nil
}

// Close shuts the connection down cleanly and cancels any pending
// reconnect timer. The server sees a normal closure, so no retry runs.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.cancelRetryLocked()
	c.stopHeartbeatLocked()
	c.mu.Unlock()

	err := c.transport.Close(websocket.CloseNormalClosure, "client closed")

	// Disconnected is set here, not when the read pump notices the
	// closure, so State() is deterministic once Close returns.
	c.mu.Lock()
	change := c.setStateLocked(StateDisconnected, nil)
	c.mu.Unlock()
	c.emit(change)
	return err
}

// Subscribe adds topics to the subscription set.
func (c *Client) Subscribe(topics ...string) {
	c.mux.Subscribe(topics...)
}

// Unsubscribe removes topics from the subscription set.
func (c *Client) Unsubscribe(topics ...string) {
	c.mux.Unsubscribe(topics...)
}

// Topics returns the current subscription set.
func (c *Client) Topics() []string {
	return c.mux.Topics()
}

// On registers a handler for an inbound event type.
func (c *Client) On(eventType string, h Handler) {
	c.router.On(eventType, h)
}

// OnStateChange registers a listener for connection state transitions.
func (c *Client) OnStateChange(fn func(StateChange)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the current reconnect attempt counter.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// finishConnect completes a successful dial: the attempt counter resets,
// the heartbeat starts, and the full subscription set is replayed.
func (c *Client) finishConnect() {
	c.mu.Lock()
	if c.closed {
		// Close won the race against an in-flight dial.
		c.mu.Unlock()
		c.transport.Close(websocket.CloseNormalClosure, "client closed")
		return
	}
	c.attempts = 0
	c.startHeartbeatLocked()
	change := c.setStateLocked(StateConnected, nil)
	c.mu.Unlock()
	c.emit(change)

	c.mux.Replay()
}

// handleClose runs when the read pump observes the connection dying.
func (c *Client) handleClose(code int, err error) {
	c.mu.Lock()
	c.stopHeartbeatLocked()

	if c.closed || code == websocket.CloseNormalClosure {
		change := c.setStateLocked(StateDisconnected, nil)
		c.mu.Unlock()
		c.emit(change)
		return
	}

	c.logger.Warnf(context.Background(), "Connection lost (code %d): %v", code, err)
	change := c.scheduleReconnectLocked(err)
	c.mu.Unlock()
	c.emit(change)
}

// scheduleReconnectLocked applies the backoff policy to one abnormal
// close. Caller holds c.mu.
func (c *Client) scheduleReconnectLocked(err error) StateChange {
	if c.closed {
		// Nothing will ever clear Reconnecting after Close, so a close
		// racing a failed dial ends Disconnected instead.
		return c.setStateLocked(StateDisconnected, nil)
	}

	if !c.policy.ShouldRetry(c.attempts) {
		c.logger.Errorf(context.Background(), "Reconnect attempts exhausted after %d tries", c.attempts)
		return c.setStateLocked(StateFailed, err)
	}

	delay := c.policy.Delay(c.attempts)
	c.attempts++
	c.retryTimer = time.AfterFunc(delay, c.retry)
	c.logger.Infof(context.Background(), "Reconnecting in %s (attempt %d/%d)", delay, c.attempts, c.policy.MaxAttempts)
	return c.setStateLocked(StateReconnecting, err)
}

// retry is the timer callback for one reconnect attempt.
func (c *Client) retry() {
	c.mu.Lock()
	if c.closed || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.handshakeTimeout)
	defer cancel()

	if err := c.transport.Dial(ctx); err != nil {
		c.mu.Lock()
		change := c.scheduleReconnectLocked(err)
		c.mu.Unlock()
		c.emit(change)
		return
	}

	c.finishConnect()
}

// cancelRetryLocked stops a pending reconnect timer so it cannot race a
// deliberate shutdown. Caller holds c.mu.
func (c *Client) cancelRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Client) startHeartbeatLocked() {
	c.stopHeartbeatLocked()
	if c.heartbeatInterval <= 0 {
		return
	}

	stop := make(chan struct{})
	c.stopHeartbeat = stop
	go c.heartbeat(stop)
}

func (c *Client) stopHeartbeatLocked() {
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
}

// heartbeat sends app-level pings while connected. Send-only: a missing
// pong is not treated as a failure signal.
func (c *Client) heartbeat(stop chan struct{}) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			f := &Frame{Type: FramePing, Timestamp: time.Now().UTC().Format(time.RFC3339)}
			if err := c.transport.Send(f); err != nil {
				c.logger.Debugf(context.Background(), "Heartbeat send failed: %v", err)
			}
		}
	}
}

func (c *Client) setStateLocked(state ConnectionState, err error) StateChange {
	change := StateChange{Old: c.state, New: state, Err: err}
	c.state = state
	return change
}

func (c *Client) emit(change StateChange) {
	if change.Old == change.New {
		return
	}

	c.mu.Lock()
	listeners := make([]func(StateChange), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
}
