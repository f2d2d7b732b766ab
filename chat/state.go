package chat

// State is the connection lifecycle position reported by Client.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticating
	StateJoining
	StateStreaming
	StateClosing
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateJoining:
		return "joining"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}
