package feed

import (
	"testing"

	"soc-realtime/internal/notification"
	"soc-realtime/pkg/discord"
)

func TestDiscordSink_SkipsBelowMinPriority(t *testing.T) {
	// nil client: reaching the send path would panic, so a pass proves
	// the filter short-circuited.
	sink := NewDiscordSink(nil, notification.PriorityHigh)

	if err := sink.Notify(notification.Notification{Priority: notification.PriorityNormal}); err != nil {
		t.Errorf("Notify() = %v, want nil for filtered notification", err)
	}
}

func TestDiscordSink_PriorityRank(t *testing.T) {
	if priorityRank(notification.PriorityCritical) <= priorityRank(notification.PriorityHigh) {
		t.Error("critical must outrank high")
	}
	if priorityRank(notification.PriorityHigh) <= priorityRank(notification.PriorityNormal) {
		t.Error("high must outrank normal")
	}
}

func TestDiscordSink_MessageTypeMapping(t *testing.T) {
	tests := []struct {
		in   notification.Type
		want discord.MessageType
	}{
		{notification.TypeInfo, discord.MessageTypeInfo},
		{notification.TypeSuccess, discord.MessageTypeSuccess},
		{notification.TypeWarning, discord.MessageTypeWarning},
		{notification.TypeError, discord.MessageTypeError},
		{notification.TypeAlert, discord.MessageTypeError},
	}

	for _, tt := range tests {
		if got := messageTypeFor(tt.in); got != tt.want {
			t.Errorf("messageTypeFor(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
