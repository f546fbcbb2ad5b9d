package realtime

import "time"

// Reconnection defaults.
const (
	DefaultBaseDelay   = 3 * time.Second
	DefaultMaxAttempts = 5
)

// ReconnectPolicy decides whether and when to retry after an abnormal
// close. Delays grow exponentially: baseDelay * 2^attempt.
type ReconnectPolicy struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// DefaultReconnectPolicy returns the standard backoff schedule
// (3s, 6s, 12s, 24s, 48s).
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay:   DefaultBaseDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// ShouldRetry reports whether another attempt is allowed.
func (p ReconnectPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}

// Delay returns the wait before the given attempt (0-based).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * (1 << attempt)
}
