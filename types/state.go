package types

// State represents the ingress lifecycle state.
//
// States follow a single forward progression:
//
//	StateConstructed → StateIngesting → StateFinalizing → StateFinalized
//
// AddEdge is only accepted in StateConstructed and StateIngesting. Finalize is a
// one-shot transition; a finalized ingress must not be reused.
type State int

const (
	// StateConstructed is the initial state before any edge arrived.
	StateConstructed State = iota

	// StateIngesting indicates loaders are adding edges.
	StateIngesting

	// StateFinalizing indicates the collective finalize step is running.
	StateFinalizing

	// StateFinalized is terminal.
	StateFinalized
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConstructed:
		return "Constructed"
	case StateIngesting:
		return "Ingesting"
	case StateFinalizing:
		return "Finalizing"
	case StateFinalized:
		return "Finalized"
	default:
		return "Unknown"
	}
}

// AcceptsEdges reports whether AddEdge is valid in this state.
func (s State) AcceptsEdges() bool {
	return s == StateConstructed || s == StateIngesting
}
