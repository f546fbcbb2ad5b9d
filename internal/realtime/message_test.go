package realtime

import (
	"encoding/json"
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType string
		wantErr  bool
	}{
		{
			name:     "notification frame",
			raw:      `{"type":"notification","data":{"title":"X","message":"Y"}}`,
			wantType: "notification",
		},
		{
			name:     "alert update with top-level alert_id",
			raw:      `{"type":"alert_update","alert_id":"a-1","data":{"status":"closed"}}`,
			wantType: "alert_update",
		},
		{
			name:     "pong without data",
			raw:      `{"type":"pong"}`,
			wantType: "pong",
		},
		{
			name:    "not json",
			raw:     `{{{`,
			wantErr: true,
		},
		{
			name:    "missing type",
			raw:     `{"data":{"title":"X"}}`,
			wantErr: true,
		},
		{
			name:    "empty type",
			raw:     `{"type":"","data":{}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if f.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", f.Type, tt.wantType)
			}
		})
	}
}

func TestDecodeFrame_TopLevelAlertID(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"type":"alert_update","alert_id":"a-42","data":{"severity":"high"}}`))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if f.AlertID != "a-42" {
		t.Errorf("AlertID = %q, want %q", f.AlertID, "a-42")
	}

	var payload struct {
		Severity string `json:"severity"`
	}
	if err := f.DecodeData(&payload); err != nil {
		t.Fatalf("DecodeData() error = %v", err)
	}
	if payload.Severity != "high" {
		t.Errorf("Severity = %q, want %q", payload.Severity, "high")
	}
}

func TestFrame_EncodeOmitsEmptyFields(t *testing.T) {
	f := &Frame{Type: FramePing, Timestamp: "2026-01-02T03:04:05Z"}

	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if _, ok := decoded["channels"]; ok {
		t.Error("empty channels should be omitted")
	}
	if _, ok := decoded["data"]; ok {
		t.Error("empty data should be omitted")
	}
	if decoded["type"] != "ping" {
		t.Errorf("type = %v, want ping", decoded["type"])
	}
}

func TestFrame_DecodeDataWithoutPayload(t *testing.T) {
	f := &Frame{Type: EventPong}

	var v map[string]any
	if err := f.DecodeData(&v); err == nil {
		t.Error("expected error decoding absent data")
	}
}
