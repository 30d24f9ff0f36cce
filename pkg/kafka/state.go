package kafka

import (
	"fmt"
	"sync"
)

// ConnState is the explicit connection lifecycle of a consumer,
// replacing scattered isConnected/isSubscribed flags with one machine
// any component can query.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Subscribing
	Running
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Subscribing:
		return "subscribing"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// validTransitions encodes the forward path plus a drop back to
// Disconnected from anywhere (broker loss can happen at any stage).
var validTransitions = map[ConnState][]ConnState{
	Disconnected: {Connecting},
	Connecting:   {Connected, Disconnected},
	Connected:    {Subscribing, Disconnected},
	Subscribing:  {Running, Disconnected},
	Running:      {Disconnected},
}

type ConnStateMachine struct {
	mu    sync.RWMutex
	state ConnState
}

func NewConnStateMachine() *ConnStateMachine {
	return &ConnStateMachine{state: Disconnected}
}

func (m *ConnStateMachine) State() ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// To transitions to the target state, failing on transitions the
// machine does not allow.
func (m *ConnStateMachine) To(target ConnState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, allowed := range validTransitions[m.state] {
		if allowed == target {
			m.state = target
			return nil
		}
	}
	return fmt.Errorf("invalid connection state transition: %s -> %s", m.state, target)
}

// Is reports whether the machine is currently in the given state.
func (m *ConnStateMachine) Is(s ConnState) bool {
	return m.State() == s
}
