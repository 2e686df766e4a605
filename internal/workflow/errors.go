package workflow

import "errors"

var (
	// ErrRecognitionCancelled is recorded when a capture ends without a usable
	// transcript: the user cancelled, the facility timed out, or no speech was heard.
	ErrRecognitionCancelled = errors.New("recognition was cancelled")

	// ErrDeliveryFailed is recorded when a note could not be delivered.
	ErrDeliveryFailed = errors.New("failed to deliver note")
)
