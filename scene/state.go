package scene

// State is a level's position in the load/activate/unload lifecycle.
// None is both the initial state and the state a fully unloaded level
// returns to.
type State int

const (
	StateNone State = iota
	StateLoading
	StateLoaded
	StateActivating
	StateActive
	StateDeactivated
	StateUnloading
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateDeactivated:
		return "deactivated"
	case StateUnloading:
		return "unloading"
	default:
		return "unknown"
	}
}

// inFlight reports whether the state has pending segment operations.
func (s State) inFlight() bool {
	switch s {
	case StateLoading, StateActivating, StateUnloading:
		return true
	default:
		return false
	}
}
