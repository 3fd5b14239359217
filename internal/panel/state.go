// ABOUTME: Panel lifecycle states and their ordering.
// ABOUTME: Closed is terminal; Closing and later states refuse deliveries.

package panel

// State is a panel's position in its lifecycle. States are ordered: a panel
// only ever moves forward.
type State int

const (
	StateCreated State = iota
	StateInitializing
	StateReady
	StateClosing
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
