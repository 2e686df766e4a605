package workflow

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// StartListening asks for a new capture. Sent by a surface on user action.
type StartListening struct{}

// CaptureCancelled reports a capture that produced no usable transcript.
type CaptureCancelled struct {
	// Err carries the underlying cause for logging. It does not change the
	// recorded message.
	Err error
}

// CaptureProduced reports the transcript of a completed capture.
type CaptureProduced struct {
	Text string
}

// SendCompleted reports the outcome of a delivery.
type SendCompleted struct {
	Success bool
}

// ConsumeAutoRestart is sent by a surface that observed AutoRestart.
type ConsumeAutoRestart struct{}

func (StartListening) isEvent()     {}
func (CaptureCancelled) isEvent()   {}
func (CaptureProduced) isEvent()    {}
func (SendCompleted) isEvent()      {}
func (ConsumeAutoRestart) isEvent() {}

// Effect is a side effect Reduce asks the Store to perform.
type Effect interface {
	isEffect()
}

// RequestCapture starts a capture through the Listener.
type RequestCapture struct{}

// DeliverNote sends Text through the NoteSender.
type DeliverNote struct {
	Text string
}

func (RequestCapture) isEffect() {}
func (DeliverNote) isEffect()    {}
