package hub

import (
	"strings"
	"testing"
)

func TestValidTopic(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  bool
	}{
		{"simple", "alerts", true},
		{"with underscore", "alert_updates", true},
		{"with hyphen", "soc-team-1", true},
		{"digits", "channel42", true},
		{"single char", "a", true},
		{"max length", strings.Repeat("a", 50), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 51), false},
		{"spaces", "alert updates", false},
		{"special chars", "alerts@prod", false},
		{"path traversal", "../alerts", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTopic(tt.topic); got != tt.want {
				t.Errorf("ValidTopic(%q) = %v, want %v", tt.topic, got, tt.want)
			}
		})
	}
}
