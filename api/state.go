// File: api/state.go
//
// Connection lifecycle state machine. Transitions not listed in the
// table are invalid and must fail rather than silently recover.

package api

// State is the lifecycle phase of a data source or transport context.
//
//	None → Init → ReadyPending → Ready → Start → Stop → Closed → Uninit
//
// Closed is terminal for the connection; closing an already closed
// source is a no-op, not a transition. Uninit tears down the owning
// context once buffers and handle are released.
type State int32

const (
	StateNone         State = iota // zero value, nothing constructed yet
	StateInit                      // native handle created, not connected
	StateReadyPending              // connect/accept handshake in flight
	StateReady                     // handshake done, buffers allocated
	StateStart                     // reactor actively pumped
	StateStop                      // loop termination requested
	StateClosed                    // handle torn down, buffers released
	StateUninit                    // owning context destroyed
)

// String returns the lower-case state name for logs.
func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateInit:
		return "init"
	case StateReadyPending:
		return "ready_pending"
	case StateReady:
		return "ready"
	case StateStart:
		return "start"
	case StateStop:
		return "stop"
	case StateClosed:
		return "closed"
	case StateUninit:
		return "uninit"
	default:
		return "unknown"
	}
}

// legal enumerates every valid transition. Close is reachable from any
// post-Init phase so a failed handshake or runtime I/O error can always
// tear the connection down; reopening a closed source is not possible.
var legal = map[State][]State{
	StateNone:         {StateInit},
	StateInit:         {StateReadyPending, StateClosed},
	StateReadyPending: {StateReady, StateClosed},
	StateReady:        {StateStart, StateClosed},
	StateStart:        {StateStop, StateClosed},
	StateStop:         {StateStart, StateClosed},
	StateClosed:       {StateUninit},
	StateUninit:       nil,
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to State) bool {
	for _, next := range legal[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the new state, or an error naming
// both endpoints when the step is illegal.
func Transition(from, to State) (State, error) {
	if !CanTransition(from, to) {
		return from, NewError(ErrCodeInvalidState, "illegal lifecycle transition").
			WithContext("from", from.String()).
			WithContext("to", to.String())
	}
	return to, nil
}
