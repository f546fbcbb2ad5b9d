package hub

import "regexp"

// Topic name constraints.
const (
	MinTopicLength = 1
	MaxTopicLength = 50
)

// topicPattern matches valid topic names: alphanumeric, underscore, and hyphen.
var topicPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidTopic validates a topic name against format and length constraints.
func ValidTopic(topic string) bool {
	if len(topic) < MinTopicLength || len(topic) > MaxTopicLength {
		return false
	}
	return topicPattern.MatchString(topic)
}
