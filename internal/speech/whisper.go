package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transcriber turns an audio file into text.
type Transcriber interface {
	TranscribeFile(ctx context.Context, audio io.Reader, language string) (string, error)
}

// AudioRecorder records one utterance into path. FileExt names the format it
// writes, without the dot.
type AudioRecorder interface {
	Record(ctx context.Context, path string) error
	FileExt() string
}

// CommandRecorder runs an external record command with the output path as its
// last argument. A non-zero exit is a cancelled capture.
type CommandRecorder struct {
	cmd []string
	ext string
}

// NewCommandRecorder parses command with shell quoting rules. ext is the file
// extension the command writes, "wav" when empty.
func NewCommandRecorder(command, ext string) (*CommandRecorder, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse record command: %w", err)
	}

	if len(args) == 0 {
		return nil, errors.New("record command is empty")
	}

	if ext == "" {
		ext = "wav"
	}

	return &CommandRecorder{cmd: args, ext: ext}, nil
}

// Record runs the command once.
func (r *CommandRecorder) Record(ctx context.Context, path string) error {
	args := append([]string{}, r.cmd[1:]...)
	args = append(args, path)

	//nolint:gosec // command comes from the user's own configuration
	command := exec.CommandContext(ctx, r.cmd[0], args...)
	command.WaitDelay = waitDelay

	if out, err := command.CombinedOutput(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ErrCaptureCancelled
		}

		return fmt.Errorf("failed to run record command: %w: %s", err, strings.TrimSpace(string(out)))
	}

	return nil
}

// FileExt returns the extension recordings are written with.
func (r *CommandRecorder) FileExt() string {
	return r.ext
}

// WhisperRecognizer records an utterance and transcribes the recording with a
// Transcriber.
type WhisperRecognizer struct {
	recorder    AudioRecorder
	scratchDir  string
	transcriber Transcriber
}

// NewWhisperRecognizer stores recordings in scratchDir (os.TempDir when empty).
func NewWhisperRecognizer(recorder AudioRecorder, scratchDir string, transcriber Transcriber) *WhisperRecognizer {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}

	return &WhisperRecognizer{
		recorder:    recorder,
		scratchDir:  scratchDir,
		transcriber: transcriber,
	}
}

// Capture records one utterance and transcribes it. The recording is removed
// afterwards.
func (r *WhisperRecognizer) Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	if err := os.MkdirAll(r.scratchDir, 0o750); err != nil {
		return CaptureResult{}, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	file, err := os.CreateTemp(r.scratchDir, "memnote_*."+r.recorder.FileExt())
	if err != nil {
		return CaptureResult{}, fmt.Errorf("failed to create recording file: %w", err)
	}
	path := file.Name()
	_ = file.Close()
	defer os.Remove(path)

	if err := r.recorder.Record(ctx, path); err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrCaptureCancelled) {
			return CaptureResult{Status: StatusCancelled}, nil
		}

		return CaptureResult{}, fmt.Errorf("failed to record audio: %w", err)
	}

	recording, err := os.Open(filepath.Clean(path))
	if err != nil {
		return CaptureResult{}, fmt.Errorf("failed to open recording: %w", err)
	}
	defer recording.Close()

	text, err := r.transcriber.TranscribeFile(ctx, recording, BaseLanguage(req.Locale))
	if err != nil {
		return CaptureResult{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return CaptureResult{Status: StatusOK}, nil
	}

	return CaptureResult{Status: StatusOK, Candidates: []string{text}}, nil
}

// OpenAITranscriber transcribes with the Whisper API.
type OpenAITranscriber struct {
	apiKey  string
	options []option.RequestOption
}

// NewOpenAITranscriber creates a transcriber for apiKey. Extra options are
// passed to the OpenAI client (base URL overrides in tests, for instance).
func NewOpenAITranscriber(apiKey string, opts ...option.RequestOption) *OpenAITranscriber {
	return &OpenAITranscriber{
		apiKey:  apiKey,
		options: opts,
	}
}

// TranscribeFile transcribes audio using Whisper. An empty language lets the
// API detect it.
func (t *OpenAITranscriber) TranscribeFile(ctx context.Context, audio io.Reader, language string) (string, error) {
	if t.apiKey == "" {
		return "", errors.New("API key required: set OPENAI_API_KEY or run 'memnote config set-key openai <key>'")
	}

	opts := append([]option.RequestOption{option.WithAPIKey(t.apiKey)}, t.options...)
	client := openai.NewClient(opts...)

	//nolint:exhaustruct // only file, model and language are needed
	params := openai.AudioTranscriptionNewParams{
		File:  audio,
		Model: openai.AudioModelWhisper1,
	}
	if language != "" {
		params.Language = openai.String(language)
	}

	resp, err := client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create transcription via Whisper API: %w", err)
	}

	return resp.Text, nil
}
