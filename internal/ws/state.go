package ws

import "sync/atomic"

// ConnState is the lifecycle state of a WSClient.
//
//	Disconnected -> Connecting -> Connected -> Disconnected -> ...
//
// Any state may move to Closed, which is final.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateClosed
)

var connStateNames = [...]string{"disconnected", "connecting", "connected", "closed"}

func (s ConnState) String() string {
	if s < 0 || int(s) >= len(connStateNames) {
		return "unknown"
	}
	return connStateNames[s]
}

// State is an atomically updated ConnState. The zero value is StateDisconnected.
type State struct {
	v atomic.Int32
}

func (s *State) Load() ConnState {
	return ConnState(s.v.Load())
}

func (s *State) Store(state ConnState) {
	s.v.Store(int32(state))
}

func (s *State) CompareAndSwap(old, new ConnState) bool {
	return s.v.CompareAndSwap(int32(old), int32(new))
}

// Drop returns a connecting or connected state to StateDisconnected.
func (s *State) Drop() bool {
	return s.CompareAndSwap(StateConnected, StateDisconnected) ||
		s.CompareAndSwap(StateConnecting, StateDisconnected)
}

// Shutdown moves to StateClosed and reports whether this call made the move.
func (s *State) Shutdown() bool {
	for {
		current := s.Load()
		if current == StateClosed {
			return false
		}
		if s.CompareAndSwap(current, StateClosed) {
			return true
		}
	}
}
