package realtime

import (
	"context"
	"sync"

	"soc-realtime/pkg/log"
)

// Handler consumes one decoded inbound frame. Handlers run synchronously
// on the read goroutine and must not block; a panicking handler is
// isolated from the others.
type Handler func(f *Frame)

// Router dispatches decoded frames to registered handlers by event type.
type Router struct {
	logger log.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewRouter creates a new Router instance.
func NewRouter(logger log.Logger) *Router {
	return &Router{
		logger:   logger,
		handlers: make(map[string][]Handler),
	}
}

// On registers a handler for the given event type. Handlers for the
// same type run in registration order.
func (r *Router) On(eventType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], h)
}

// Dispatch decodes a raw inbound message and delivers it to every
// handler registered for its type. Malformed frames and unknown types
// are logged and dropped; they never tear down the connection.
func (r *Router) Dispatch(raw []byte) {
	f, err := DecodeFrame(raw)
	if err != nil {
		r.logger.Warnf(context.Background(), "Dropping malformed frame: %v", err)
		return
	}

	r.mu.RLock()
	handlers := r.handlers[f.Type]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		r.logger.Debugf(context.Background(), "No handlers for event type: %s", f.Type)
		return
	}

	for _, h := range handlers {
		r.invoke(h, f)
	}
}

// invoke runs one handler, catching panics so one failing subscriber
// cannot break delivery to the rest.
func (r *Router) invoke(h Handler, f *Frame) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf(context.Background(), "Handler panic for event %s: %v", f.Type, rec)
		}
	}()
	h(f)
}
