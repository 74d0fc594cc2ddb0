package session

// State is the per-session conversation state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateSpeaking
	StateError
)

// String returns the wire-level representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// validTransitions defines the edges of the session state machine. Error is
// reachable from anywhere (a stage failure can hit at any point) and is a
// soft state: the next frame resumes Listening or Idle.
var validTransitions = map[State][]State{
	StateIdle:       {StateListening, StateProcessing, StateError},
	StateListening:  {StateListening, StateProcessing, StateIdle, StateError},
	StateProcessing: {StateSpeaking, StateIdle, StateError},
	StateSpeaking:   {StateSpeaking, StateIdle, StateError},
	StateError:      {StateListening, StateIdle, StateProcessing, StateError},
}

// TransitionValid reports whether the edge from → to exists.
func TransitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports an attempted transition outside the table.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
