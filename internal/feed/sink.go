package feed

import (
	"context"
	"fmt"
	"io"
	"sync"

	"soc-realtime/internal/notification"
	"soc-realtime/internal/realtime"
	"soc-realtime/pkg/log"
)

// Sink receives every stored notification for presentation side effects
// (toast, sound, desktop notification). Sink failures are swallowed:
// they must never block notification creation.
type Sink interface {
	Notify(n notification.Notification) error
}

// BindStore wires the realtime client into the notification store:
// inbound notification events create records, inbound errors surface as
// error-typed notifications, and every created record fans out to the
// sinks. A muted sink set still stores the notification.
func BindStore(c *realtime.Client, store *notification.Store, logger log.Logger, sinks ...Sink) {
	store.OnAdd(func(n notification.Notification) {
		for _, sink := range sinks {
			if err := sink.Notify(n); err != nil {
				logger.Debugf(context.Background(), "Notification sink failed: %v", err)
			}
		}
	})

	c.On(realtime.EventNotification, func(frame *realtime.Frame) {
		n, err := notification.FromPayload(frame.Data)
		if err != nil {
			logger.Warnf(context.Background(), "Dropping malformed notification: %v", err)
			return
		}
		store.Add(n)
	})

	c.On(realtime.EventError, func(frame *realtime.Frame) {
		msg := frame.Message
		if msg == "" {
			msg = string(frame.Data)
		}
		store.Add(notification.Notification{
			Type:     notification.TypeError,
			Priority: notification.PriorityHigh,
			Title:    "Server error",
			Message:  msg,
		})
	})
}

// ConsoleSink writes notifications to an io.Writer. Used by the CLI as
// its toast surface.
type ConsoleSink struct {
	mu    sync.Mutex
	out   io.Writer
	muted bool
}

// NewConsoleSink creates a ConsoleSink writing to out.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

// SetMuted toggles the user-controlled mute flag.
func (s *ConsoleSink) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

func (s *ConsoleSink) Notify(n notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.muted {
		return nil
	}
	_, err := fmt.Fprintf(s.out, "[%s/%s] %s: %s\n", n.Type, n.Priority, n.Title, n.Message)
	return err
}
