package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"soc-realtime/internal/storage"
	"soc-realtime/pkg/log"
)

// Store defaults.
const (
	DefaultMaxNotifications = 50
	DefaultAutoExpiry       = 5 * time.Second
)

// Config holds Store configuration.
type Config struct {
	// MaxNotifications bounds the collection; oldest non-persistent
	// entries are evicted first on overflow.
	MaxNotifications int

	// AutoExpiry is the delay after which a non-persistent notification
	// is marked read automatically. Zero or negative disables expiry.
	AutoExpiry time.Duration
}

// Store maintains the bounded, newest-first notification collection
// with read state, persists it through the Blob port on every
// mutation, and rehydrates it on startup.
type Store struct {
	cfg    Config
	blob   storage.Blob
	logger log.Logger

	mu       sync.Mutex
	items    []*Notification
	timers   map[string]*time.Timer
	onAdd    []func(Notification)
	onUnread []func(int)
}

// NewStore creates a Store and rehydrates any previously persisted
// collection. Corrupt stored data is discarded, never fatal.
func NewStore(cfg Config, blob storage.Blob, logger log.Logger) *Store {
	if cfg.MaxNotifications <= 0 {
		cfg.MaxNotifications = DefaultMaxNotifications
	}

	s := &Store{
		cfg:    cfg,
		blob:   blob,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
	s.rehydrate()
	return s
}

func (s *Store) rehydrate() {
	data, err := s.blob.Get()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warnf(context.Background(), "Failed to load notifications, starting empty: %v", err)
		}
		return
	}

	var items []*Notification
	if err := json.Unmarshal(data, &items); err != nil {
		s.logger.Warnf(context.Background(), "Discarding corrupt notification data: %v", err)
		s.blob.Delete()
		return
	}

	s.items = items
}

// OnAdd registers a callback fired after every successful Add. This is
// the seam presentation side effects (toast, sound, desktop) hang off.
func (s *Store) OnAdd(fn func(Notification)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAdd = append(s.onAdd, fn)
}

// OnUnreadChange registers a callback fired with the unread count after
// every mutation that can change it.
func (s *Store) OnUnreadChange(fn func(int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUnread = append(s.onUnread, fn)
}

// Add prepends a notification, assigning id and timestamp when absent,
// and evicts past the bound. Returns the stored record.
func (s *Store) Add(n Notification) Notification {
	s.mu.Lock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}

	stored := n
	s.items = append([]*Notification{&stored}, s.items...)
	s.evictLocked()
	s.persistLocked()

	if !stored.Persistent && !stored.Read && s.cfg.AutoExpiry > 0 {
		id := stored.ID
		s.timers[id] = time.AfterFunc(s.cfg.AutoExpiry, func() { s.expire(id) })
	}

	adds, unreads, count := s.callbacksLocked()
	s.mu.Unlock()

	for _, fn := range adds {
		fn(n)
	}
	for _, fn := range unreads {
		fn(count)
	}
	return n
}

// MarkRead flips one notification to read. No-op if the id is absent.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()

	found := false
	for _, item := range s.items {
		if item.ID == id {
			found = true
			if !item.Read {
				item.Read = true
				s.cancelTimerLocked(id)
				s.persistLocked()
			}
			break
		}
	}

	_, unreads, count := s.callbacksLocked()
	s.mu.Unlock()

	if found {
		for _, fn := range unreads {
			fn(count)
		}
	}
	return found
}

// MarkAllRead flips every notification to read.
func (s *Store) MarkAllRead() {
	s.mu.Lock()

	changed := false
	for _, item := range s.items {
		if !item.Read {
			item.Read = true
			s.cancelTimerLocked(item.ID)
			changed = true
		}
	}
	if changed {
		s.persistLocked()
	}

	_, unreads, count := s.callbacksLocked()
	s.mu.Unlock()

	for _, fn := range unreads {
		fn(count)
	}
}

// Remove deletes one notification. No-op if the id is absent.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()

	found := false
	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.cancelTimerLocked(id)
			s.persistLocked()
			found = true
			break
		}
	}

	_, unreads, count := s.callbacksLocked()
	s.mu.Unlock()

	if found {
		for _, fn := range unreads {
			fn(count)
		}
	}
	return found
}

// Clear deletes every notification.
func (s *Store) Clear() {
	s.mu.Lock()

	for id := range s.timers {
		s.cancelTimerLocked(id)
	}
	s.items = nil
	s.persistLocked()

	_, unreads, count := s.callbacksLocked()
	s.mu.Unlock()

	for _, fn := range unreads {
		fn(count)
	}
}

// List returns a copy of the collection, newest first.
func (s *Store) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Notification, len(s.items))
	for i, item := range s.items {
		out[i] = *item
	}
	return out
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadLocked()
}

// Close cancels all pending expiry timers.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.timers {
		s.cancelTimerLocked(id)
	}
}

// expire marks one notification read after its auto-expiry delay,
// unless it was read or removed first.
func (s *Store) expire(id string) {
	s.mu.Lock()

	delete(s.timers, id)

	changed := false
	for _, item := range s.items {
		if item.ID == id {
			if !item.Read {
				item.Read = true
				s.persistLocked()
				changed = true
			}
			break
		}
	}

	_, unreads, count := s.callbacksLocked()
	s.mu.Unlock()

	if changed {
		for _, fn := range unreads {
			fn(count)
		}
	}
}

// evictLocked truncates the collection to the bound, dropping the
// oldest non-persistent entries first. Caller holds s.mu.
func (s *Store) evictLocked() {
	for len(s.items) > s.cfg.MaxNotifications {
		idx := -1
		for i := len(s.items) - 1; i >= 0; i-- {
			if !s.items[i].Persistent {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Everything persistent: drop the oldest regardless.
			idx = len(s.items) - 1
		}

		s.cancelTimerLocked(s.items[idx].ID)
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
}

func (s *Store) cancelTimerLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Store) persistLocked() {
	data, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Errorf(context.Background(), "Failed to marshal notifications: %v", err)
		return
	}
	if err := s.blob.Put(data); err != nil {
		s.logger.Errorf(context.Background(), "Failed to persist notifications: %v", err)
	}
}

func (s *Store) unreadLocked() int {
	count := 0
	for _, item := range s.items {
		if !item.Read {
			count++
		}
	}
	return count
}

// callbacksLocked snapshots the registered callbacks and the unread
// count so they can be invoked after the lock is released.
func (s *Store) callbacksLocked() ([]func(Notification), []func(int), int) {
	adds := make([]func(Notification), len(s.onAdd))
	copy(adds, s.onAdd)
	unreads := make([]func(int), len(s.onUnread))
	copy(unreads, s.onUnread)
	return adds, unreads, s.unreadLocked()
}
