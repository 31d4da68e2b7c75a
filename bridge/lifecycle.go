package bridge

// State is the lifecycle shared by all bridges:
//
//	StateCreated → StateActive → {StateCompleted | StateFailed | StateCancelled}
//
// Terminal states are absorbing. A State is owned by the loop, so the
// transitions are plain compare-and-set, without atomics.
type State uint8

const (
	StateCreated State = iota
	StateActive
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateActive:
		return "Active"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s is one of the absorbing states.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// activate transitions Created to Active, reporting success.
func (s *State) activate() bool {
	if *s != StateCreated {
		return false
	}
	*s = StateActive
	return true
}

// terminate transitions to the terminal state to, unless already terminal,
// reporting success. The first terminal transition wins.
func (s *State) terminate(to State) bool {
	if s.Terminal() || !to.Terminal() {
		return false
	}
	*s = to
	return true
}
