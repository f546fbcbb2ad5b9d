package feed

import (
	"context"
	"time"

	"soc-realtime/internal/notification"
	"soc-realtime/pkg/discord"
)

// DiscordSink forwards notifications at or above a priority floor to a
// Discord webhook, so on-call analysts see critical alerts outside the
// dashboard.
type DiscordSink struct {
	client      *discord.Discord
	minPriority notification.Priority
	timeout     time.Duration
}

// NewDiscordSink creates a DiscordSink. Notifications below minPriority
// are ignored.
func NewDiscordSink(client *discord.Discord, minPriority notification.Priority) *DiscordSink {
	if minPriority == "" {
		minPriority = notification.PriorityHigh
	}
	return &DiscordSink{
		client:      client,
		minPriority: minPriority,
		timeout:     10 * time.Second,
	}
}

func (s *DiscordSink) Notify(n notification.Notification) error {
	if priorityRank(n.Priority) < priorityRank(s.minPriority) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.client.SendEmbed(ctx, discord.MessageOptions{
		Type:        messageTypeFor(n.Type),
		Title:       n.Title,
		Description: n.Message,
		Fields: []discord.EmbedField{
			{Name: "Priority", Value: string(n.Priority), Inline: true},
			{Name: "Type", Value: string(n.Type), Inline: true},
		},
		Timestamp: n.Timestamp,
	})
}

func priorityRank(p notification.Priority) int {
	switch p {
	case notification.PriorityCritical:
		return 2
	case notification.PriorityHigh:
		return 1
	default:
		return 0
	}
}

func messageTypeFor(t notification.Type) discord.MessageType {
	switch t {
	case notification.TypeSuccess:
		return discord.MessageTypeSuccess
	case notification.TypeWarning:
		return discord.MessageTypeWarning
	case notification.TypeError, notification.TypeAlert:
		return discord.MessageTypeError
	default:
		return discord.MessageTypeInfo
	}
}
