package realtime

// ConnectionState represents the current state of the realtime connection.
type ConnectionState int

const (
	// StateDisconnected means the client is not connected.
	StateDisconnected ConnectionState = iota

	// StateConnecting means the client is establishing a connection.
	StateConnecting

	// StateConnected means the client is connected and ready.
	StateConnected

	// StateReconnecting means the client is waiting to retry after an abnormal close.
	StateReconnecting

	// StateFailed means the client exhausted its automatic retries.
	// A manual Connect call is required to resume.
	StateFailed
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateChange describes a connection state transition.
type StateChange struct {
	Old ConnectionState
	New ConnectionState

	// Err carries the error that caused the transition, if any.
	Err error
}
