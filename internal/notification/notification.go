package notification

import (
	"encoding/json"
	"time"
)

// Type classifies a notification for presentation.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
	TypeAlert   Type = "alert"
)

// Priority orders notifications by urgency.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Notification is one persisted notification record.
type Notification struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      Type      `json:"type"`
	Priority  Priority  `json:"priority"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`

	// Persistent notifications are exempt from auto-expiry and are
	// evicted last on overflow.
	Persistent bool `json:"persistent"`
}

// FromPayload decodes the data payload of an inbound notification event.
// Missing type and priority default to info/normal.
func FromPayload(data json.RawMessage) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, err
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	return n, nil
}
