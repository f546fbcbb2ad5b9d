package hub

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"soc-realtime/internal/realtime"
	"soc-realtime/pkg/log"
)

// Subscriber bridges Redis Pub/Sub channels onto hub topics so backend
// services can publish realtime events without holding websocket
// connections themselves.
type Subscriber struct {
	client  *redis.Client
	hub     *Hub
	logger  log.Logger
	pattern string

	pubsub *redis.PubSub

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber creates a Subscriber over an already-connected client.
// The pattern selects bridged channels, e.g. "realtime:*"; the suffix
// after the first colon becomes the hub topic.
func NewSubscriber(client *redis.Client, pattern string, h *Hub, logger log.Logger) *Subscriber {
	if pattern == "" {
		pattern = "realtime:*"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		client:  client,
		hub:     h,
		logger:  logger,
		pattern: pattern,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start begins listening on the configured pattern.
func (s *Subscriber) Start() error {
	s.pubsub = s.client.PSubscribe(s.ctx, s.pattern)
	s.logger.Infof(s.ctx, "Redis subscriber started, listening on pattern: %s", s.pattern)

	go s.listen()
	return nil
}

func (s *Subscriber) listen() {
	defer close(s.done)

	ch := s.pubsub.Channel()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info(context.Background(), "Redis subscriber shutting down...")
			return

		case msg, ok := <-ch:
			if !ok {
				s.logger.Error(s.ctx, "Redis pub/sub channel closed")
				return
			}
			s.handleMessage(msg.Channel, msg.Payload)
		}
	}
}

// handleMessage bridges one Redis message to the hub. The channel is
// realtime:{topic} and the payload is a complete frame.
func (s *Subscriber) handleMessage(channel, payload string) {
	_, topic, ok := strings.Cut(channel, ":")
	if !ok || topic == "" {
		s.logger.Warnf(s.ctx, "Invalid channel format: %s", channel)
		return
	}

	frame, err := realtime.DecodeFrame([]byte(payload))
	if err != nil {
		s.logger.Errorf(s.ctx, "Dropping malformed payload on %s: %v", channel, err)
		return
	}

	s.hub.Publish(topic, frame)
}

// Shutdown stops the subscriber. The injected client is not closed; its
// owner closes it.
func (s *Subscriber) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.pubsub != nil {
		s.pubsub.Close()
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
