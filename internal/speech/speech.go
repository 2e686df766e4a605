// Package speech adapts an external speech-capture facility to the session
// workflow: it builds capture requests and picks the transcript out of results.
package speech

import (
	"context"
	"errors"
	"fmt"
)

// LanguageModel selects how the facility should interpret speech.
type LanguageModel string

// LanguageModelFreeForm is free-form dictation, as opposed to short commands.
const LanguageModelFreeForm LanguageModel = "free_form"

// DefaultPrompt is shown by facilities that display a prompt while listening.
const DefaultPrompt = "Speak..."

var (
	// ErrCaptureCancelled means the facility ended the capture without a result.
	ErrCaptureCancelled = errors.New("capture cancelled")

	// ErrNoTranscript means the capture completed but returned no candidates.
	ErrNoTranscript = errors.New("capture returned no transcript")
)

// CaptureRequest describes one dictation request.
type CaptureRequest struct {
	LanguageModel LanguageModel
	Locale        string
	Prompt        string
}

// Status is how a capture ended.
type Status int

const (
	// StatusOK means the facility completed and may carry candidates.
	StatusOK Status = iota
	// StatusCancelled means the user or the facility abandoned the capture.
	StatusCancelled
)

// CaptureResult is what a Recognizer returns. Candidates are ordered best first.
type CaptureResult struct {
	Status     Status
	Candidates []string
}

// Recognizer is the external capture facility.
type Recognizer interface {
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
}

// BuildCaptureRequest returns a free-form dictation request.
func BuildCaptureRequest(locale, prompt string) CaptureRequest {
	return CaptureRequest{
		LanguageModel: LanguageModelFreeForm,
		Locale:        locale,
		Prompt:        prompt,
	}
}

// ExtractTranscript returns the first candidate, or false when there is none.
func ExtractTranscript(result CaptureResult) (string, bool) {
	if len(result.Candidates) == 0 {
		return "", false
	}

	return result.Candidates[0], true
}

// Session binds a Recognizer to the user's locale and prompt.
type Session struct {
	recognizer Recognizer
	locale     string
	prompt     string
}

// NewSession creates a Session. An empty locale resolves to DefaultLocale and an
// empty prompt to DefaultPrompt.
func NewSession(recognizer Recognizer, locale, prompt string) *Session {
	if locale == "" {
		locale = DefaultLocale()
	}

	if prompt == "" {
		prompt = DefaultPrompt
	}

	return &Session{
		recognizer: recognizer,
		locale:     locale,
		prompt:     prompt,
	}
}

// Listen runs one capture and returns its transcript.
func (s *Session) Listen(ctx context.Context) (string, error) {
	result, err := s.recognizer.Capture(ctx, BuildCaptureRequest(s.locale, s.prompt))
	if err != nil {
		return "", fmt.Errorf("failed to capture speech: %w", err)
	}

	if result.Status != StatusOK {
		return "", ErrCaptureCancelled
	}

	text, ok := ExtractTranscript(result)
	if !ok {
		return "", ErrNoTranscript
	}

	return text, nil
}

// Locale returns the locale the session requests.
func (s *Session) Locale() string {
	return s.locale
}
