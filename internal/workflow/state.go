// Package workflow coordinates the listen, send and auto-restart cycle of a
// voice note session.
package workflow

// Phase is the lifecycle stage of one listen/send cycle.
type Phase int

const (
	// PhaseIdle means no cycle has started yet.
	PhaseIdle Phase = iota
	// PhaseListening means a capture request is outstanding.
	PhaseListening
	// PhaseSending means a recognized transcript is being delivered.
	PhaseSending
	// PhaseSent means the last cycle delivered its transcript.
	PhaseSent
	// PhaseErrored means the last cycle ended in a failure.
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListening:
		return "listening"
	case PhaseSending:
		return "sending"
	case PhaseSent:
		return "sent"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// State is the single record a session's surfaces render. It is a value type;
// the Store hands out copies.
type State struct {
	Phase          Phase
	RecognizedText string
	LastSentText   string
	ErrorMessage   string
	AutoRestart    bool
}

// IsListening reports whether a capture is outstanding.
func (s State) IsListening() bool {
	return s.Phase == PhaseListening
}

// IsSending reports whether a delivery is in flight.
func (s State) IsSending() bool {
	return s.Phase == PhaseSending
}

// CanStartListening reports whether a manual start would be accepted.
func (s State) CanStartListening() bool {
	return !s.IsListening() && !s.IsSending()
}

// Err maps ErrorMessage back to its sentinel. Nil when no error is active.
func (s State) Err() error {
	switch s.ErrorMessage {
	case "":
		return nil
	case ErrRecognitionCancelled.Error():
		return ErrRecognitionCancelled
	case ErrDeliveryFailed.Error():
		return ErrDeliveryFailed
	default:
		return errorString(s.ErrorMessage)
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }
