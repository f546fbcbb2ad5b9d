package realtime

import (
	"encoding/json"
	"errors"
)

// Inbound event types pushed by the backend.
const (
	EventNewAlert              = "new_alert"
	EventAlertUpdate           = "alert_update"
	EventNotification          = "notification"
	EventConnectionEstablished = "connection_established"
	EventError                 = "error"
	EventPong                  = "pong"
)

// Outbound control frame types.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"
)

// ErrInvalidFrame indicates a frame without a type discriminator.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is one discrete JSON message sent or received over the socket.
//
// The envelope is not uniform across event types: alert_update echoes
// alert_id at the top level beside data, error carries a bare message,
// and control frames use channels/timestamp. Absent fields are omitted
// on the wire.
type Frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Channels  []string        `json:"channels,omitempty"`
	AlertID   string          `json:"alert_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// DecodeFrame parses a raw inbound message into a Frame.
func DecodeFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if f.Type == "" {
		return nil, ErrInvalidFrame
	}
	return &f, nil
}

// Encode converts the frame to JSON bytes.
func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// DecodeData unmarshals the frame's data payload into v.
func (f *Frame) DecodeData(v any) error {
	if f.Data == nil {
		return ErrInvalidFrame
	}
	return json.Unmarshal(f.Data, v)
}
