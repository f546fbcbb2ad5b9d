package realtime

import (
	"context"
	"sort"
	"sync"

	"soc-realtime/pkg/log"
)

// sender is the outbound half of the transport seen by the multiplexer.
type sender interface {
	Send(f *Frame) error
	Connected() bool
}

// Multiplexer tracks which logical topics the client wants and keeps
// server-side subscriptions consistent with that set across reconnects.
//
// The set has no reference counting: two consumers subscribing to the
// same topic share one subscription, and either unsubscribing drops it
// for both.
type Multiplexer struct {
	sender sender
	logger log.Logger

	mu     sync.Mutex
	topics map[string]struct{}
}

// NewMultiplexer creates a new Multiplexer writing through the given sender.
func NewMultiplexer(s sender, logger log.Logger) *Multiplexer {
	return &Multiplexer{
		sender: s,
		logger: logger,
		topics: make(map[string]struct{}),
	}
}

// Subscribe adds topics to the subscription set. When connected, a
// subscribe frame listing them is sent immediately; otherwise the
// addition is flushed by the full replay on the next connect.
func (m *Multiplexer) Subscribe(topics ...string) {
	if len(topics) == 0 {
		return
	}

	m.mu.Lock()
	for _, topic := range topics {
		m.topics[topic] = struct{}{}
	}
	m.mu.Unlock()

	if !m.sender.Connected() {
		return
	}
	if err := m.sender.Send(&Frame{Type: FrameSubscribe, Channels: sorted(topics)}); err != nil {
		m.logger.Warnf(context.Background(), "Failed to send subscribe frame: %v", err)
	}
}

// Unsubscribe removes topics from the subscription set and, when
// connected, tells the server to stop delivering them.
func (m *Multiplexer) Unsubscribe(topics ...string) {
	if len(topics) == 0 {
		return
	}

	m.mu.Lock()
	for _, topic := range topics {
		delete(m.topics, topic)
	}
	m.mu.Unlock()

	if !m.sender.Connected() {
		return
	}
	if err := m.sender.Send(&Frame{Type: FrameUnsubscribe, Channels: sorted(topics)}); err != nil {
		m.logger.Warnf(context.Background(), "Failed to send unsubscribe frame: %v", err)
	}
}

// Replay re-sends the entire current subscription set as one subscribe
// frame. Called on every connected transition: the server is stateless
// across reconnects and must be told everything again.
func (m *Multiplexer) Replay() {
	topics := m.Topics()
	if len(topics) == 0 {
		return
	}

	if err := m.sender.Send(&Frame{Type: FrameSubscribe, Channels: topics}); err != nil {
		m.logger.Warnf(context.Background(), "Failed to replay subscriptions: %v", err)
	}
}

// Topics returns the current subscription set, sorted.
func (m *Multiplexer) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	topics := make([]string, 0, len(m.topics))
	for topic := range m.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

func sorted(topics []string) []string {
	out := make([]string, len(topics))
	copy(out, topics)
	sort.Strings(out)
	return out
}
