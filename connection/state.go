package connection

import "fmt"

// State is the connection manager state.
type State uint32

// connection states
const (
	Disconnected State = iota
	ConnectingPrimary
	ConnectingFallback
	ConnectedPrimary
	ConnectedFallback
	PermanentlyDisconnected
)

var stateNames = [...]string{
	Disconnected:            "Disconnected",
	ConnectingPrimary:       "ConnectingPrimary",
	ConnectingFallback:      "ConnectingFallback",
	ConnectedPrimary:        "ConnectedPrimary",
	ConnectedFallback:       "ConnectedFallback",
	PermanentlyDisconnected: "PermanentlyDisconnected",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// IsConnected reports whether a session is active.
func (s State) IsConnected() bool {
	return s == ConnectedPrimary || s == ConnectedFallback
}

// role of a server endpoint
type role int

const (
	rolePrimary role = iota
	roleFallback
)

func (r role) String() string {
	if r == rolePrimary {
		return "primary"
	}
	return "fallback"
}

func (r role) connecting() State {
	if r == rolePrimary {
		return ConnectingPrimary
	}
	return ConnectingFallback
}

func (r role) connected() State {
	if r == rolePrimary {
		return ConnectedPrimary
	}
	return ConnectedFallback
}
