package feed

import (
	"context"
	"encoding/json"
	"sync"

	"soc-realtime/internal/realtime"
	"soc-realtime/pkg/log"
)

// DefaultMaxEntries bounds the live alert feed.
const DefaultMaxEntries = 100

// Alert is one entry in the live alert feed.
type Alert struct {
	ID          string  `json:"id"`
	Severity    string  `json:"severity"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Source      string  `json:"source"`
	Status      string  `json:"status"`
	Score       float64 `json:"score"`
	CreatedAt   string  `json:"created_at"`
}

// Feed is the bounded, newest-first live alert feed. new_alert events
// prepend; alert_update events merge into the matching entry by id.
type Feed struct {
	max    int
	logger log.Logger

	mu      sync.Mutex
	entries []*Alert
}

// NewFeed creates a Feed bounded to max entries.
func NewFeed(max int, logger log.Logger) *Feed {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Feed{max: max, logger: logger}
}

// Bind registers the feed's handlers on the client.
func (f *Feed) Bind(c *realtime.Client) {
	c.On(realtime.EventNewAlert, f.handleNew)
	c.On(realtime.EventAlertUpdate, f.handleUpdate)
}

func (f *Feed) handleNew(frame *realtime.Frame) {
	var alert Alert
	if err := frame.DecodeData(&alert); err != nil {
		f.logger.Warnf(context.Background(), "Dropping malformed alert: %v", err)
		return
	}
	f.Push(alert)
}

func (f *Feed) handleUpdate(frame *realtime.Frame) {
	id := frame.AlertID
	if id == "" {
		// Some producers put the id inside data instead.
		var body struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(frame.Data, &body); err == nil {
			id = body.ID
		}
	}
	if id == "" {
		f.logger.Warn(context.Background(), "Dropping alert_update without alert_id")
		return
	}

	if !f.Merge(id, frame.Data) {
		f.logger.Debugf(context.Background(), "alert_update for unknown alert: %s", id)
	}
}

// Push prepends an alert and truncates past the bound.
func (f *Feed) Push(alert Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append([]*Alert{&alert}, f.entries...)
	if len(f.entries) > f.max {
		f.entries = f.entries[:f.max]
	}
}

// Merge applies a partial update to the entry with the given id.
// Only fields present in patch overwrite; returns false when the id is
// not in the feed.
func (f *Feed) Merge(id string, patch json.RawMessage) bool {
	if patch == nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entry := range f.entries {
		if entry.ID == id {
			if err := json.Unmarshal(patch, entry); err != nil {
				f.logger.Warnf(context.Background(), "Failed to merge alert update: %v", err)
				return false
			}
			entry.ID = id
			return true
		}
	}
	return false
}

// List returns a copy of the feed, newest first.
func (f *Feed) List() []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Alert, len(f.entries))
	for i, entry := range f.entries {
		out[i] = *entry
	}
	return out
}

// Len returns the number of entries in the feed.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
