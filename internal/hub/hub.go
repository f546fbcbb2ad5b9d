package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"soc-realtime/internal/realtime"
	"soc-realtime/pkg/log"
)

// TopicMessage is a frame addressed to every subscriber of a topic.
type TopicMessage struct {
	Topic string
	Frame *realtime.Frame
}

// Hub maintains the set of active connections, their topic
// subscriptions, and fans published frames out to subscribers.
type Hub struct {
	// Active connections and topic membership
	conns  map[*Connection]map[string]struct{}
	topics map[string]map[*Connection]struct{}
	mu     sync.RWMutex

	// Channel for connection teardown
	unregister chan *Connection

	// Channel for publishing messages
	broadcast chan *TopicMessage

	// Metrics
	totalConnections    atomic.Int64
	totalMessagesSent   atomic.Int64
	totalMessagesFailed atomic.Int64

	// Configuration
	maxConnections int

	// Dependencies
	logger log.Logger

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a new Hub instance.
func NewHub(logger log.Logger, maxConnections int) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		conns:          make(map[*Connection]map[string]struct{}),
		topics:         make(map[string]map[*Connection]struct{}),
		unregister:     make(chan *Connection, 100),
		broadcast:      make(chan *TopicMessage, 1000),
		maxConnections: maxConnections,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info(context.Background(), "Hub shutting down...")
			h.closeAllConnections()
			return

		case conn := <-h.unregister:
			h.unregisterConnection(conn)

		case msg := <-h.broadcast:
			h.publishToTopic(msg)
		}
	}
}

// Publish queues a frame for every subscriber of the topic.
func (h *Hub) Publish(topic string, frame *realtime.Frame) {
	select {
	case h.broadcast <- &TopicMessage{Topic: topic, Frame: frame}:
	case <-time.After(time.Second):
		h.logger.Warnf(context.Background(), "Timeout publishing to topic %s", topic)
		h.totalMessagesFailed.Add(1)
	}
}

// Subscribe adds the connection to the given topics. Called from the
// connection's read pump on an inbound subscribe frame.
func (h *Hub) Subscribe(conn *Connection, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.conns[conn]
	if !ok {
		return
	}

	for _, topic := range topics {
		if !ValidTopic(topic) {
			h.logger.Warnf(context.Background(), "Rejecting invalid topic: %q", topic)
			continue
		}
		subs[topic] = struct{}{}
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[*Connection]struct{})
		}
		h.topics[topic][conn] = struct{}{}
	}
}

// Unsubscribe removes the connection from the given topics.
func (h *Hub) Unsubscribe(conn *Connection, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.conns[conn]
	if !ok {
		return
	}

	for _, topic := range topics {
		delete(subs, topic)
		h.dropTopicMemberLocked(topic, conn)
	}
}

// Register adds the connection before its pumps start, so a subscribe
// frame arriving right after the handshake always finds the membership
// entry. Returns false when the connection limit is reached.
func (h *Hub) Register(conn *Connection) bool {
	h.mu.Lock()

	if len(h.conns) >= h.maxConnections {
		h.mu.Unlock()
		h.logger.Warn(context.Background(), "Max connections reached, rejecting connection")
		return false
	}

	h.conns[conn] = make(map[string]struct{})
	h.totalConnections.Add(1)
	total := len(h.conns)
	h.mu.Unlock()

	h.logger.Infof(context.Background(), "Client connected (total connections: %d)", total)

	conn.sendFrame(&realtime.Frame{
		Type:      realtime.EventConnectionEstablished,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return true
}

func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.conns[conn]
	if !ok {
		return
	}

	for topic := range subs {
		h.dropTopicMemberLocked(topic, conn)
	}
	delete(h.conns, conn)
	close(conn.send)

	h.logger.Infof(context.Background(), "Client disconnected (remaining connections: %d)", len(h.conns))
}

func (h *Hub) publishToTopic(msg *TopicMessage) {
	data, err := msg.Frame.Encode()
	if err != nil {
		h.logger.Errorf(context.Background(), "Failed to marshal frame: %v", err)
		h.totalMessagesFailed.Add(1)
		return
	}

	h.mu.RLock()
	members := make([]*Connection, 0, len(h.topics[msg.Topic]))
	for conn := range h.topics[msg.Topic] {
		members = append(members, conn)
	}
	h.mu.RUnlock()

	for _, conn := range members {
		select {
		case conn.send <- data:
			h.totalMessagesSent.Add(1)
		default:
			// Connection's send buffer is full, skip
			h.logger.Warnf(context.Background(), "Dropping frame for topic %s (buffer full)", msg.Topic)
			h.totalMessagesFailed.Add(1)
		}
	}
}

func (h *Hub) dropTopicMemberLocked(topic string, conn *Connection) {
	if members, ok := h.topics[topic]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[*Connection]map[string]struct{})
	h.topics = make(map[string]map[*Connection]struct{})
}

// Stats returns hub statistics.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Stats{
		ActiveConnections:   len(h.conns),
		ActiveTopics:        len(h.topics),
		TotalMessagesSent:   h.totalMessagesSent.Load(),
		TotalMessagesFailed: h.totalMessagesFailed.Load(),
	}
}

// Shutdown gracefully shuts down the hub.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats represents hub statistics.
type Stats struct {
	ActiveConnections   int   `json:"active_connections"`
	ActiveTopics        int   `json:"active_topics"`
	TotalMessagesSent   int64 `json:"total_messages_sent"`
	TotalMessagesFailed int64 `json:"total_messages_failed"`
}
