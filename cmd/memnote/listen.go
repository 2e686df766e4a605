package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alkime/memnote/internal/audio"
	"github.com/alkime/memnote/internal/config"
	"github.com/alkime/memnote/internal/console"
	"github.com/alkime/memnote/internal/keyring"
	"github.com/alkime/memnote/internal/logger"
	"github.com/alkime/memnote/internal/notes"
	"github.com/alkime/memnote/internal/speech"
	"github.com/alkime/memnote/internal/tui"
	"github.com/alkime/memnote/internal/workflow"
	tea "github.com/charmbracelet/bubbletea"
)

const stateBuffer = 16

// ListenCmd runs the dictate-and-send loop, in the TUI by default.
type ListenCmd struct {
	Headless        bool   `flag:"" help:"Run without the terminal UI, printing one line per step"`
	NoListenOnStart bool   `flag:"" name:"no-listen-on-start" help:"Wait for a key press before the first capture"`
	MaxNotes        int    `flag:"" default:"0" help:"Stop after this many notes in headless mode (0 means no limit)"`
	Recognizer      string `flag:"" optional:"" help:"Capture backend, overrides MEMNOTE_RECOGNIZER (exec or whisper)"`
}

// Run executes the listen command.
//
//nolint:funlen // CLI command with multiple setup steps
func (c *ListenCmd) Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if c.Recognizer != "" {
		cfg.Recognizer = c.Recognizer
	}

	if err := cfg.ValidateClient(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, closer, err := c.setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	locale := cfg.Locale
	if locale != "" {
		tag, ok := speech.ParseLocale(locale)
		if !ok {
			return fmt.Errorf("invalid locale %q", cfg.Locale)
		}
		locale = tag
	}

	recognizer, err := buildRecognizer(cfg, log)
	if err != nil {
		return err
	}

	session := speech.NewSession(recognizer, locale, cfg.Prompt)

	client, err := notes.NewClient(cfg.NotesURL, notes.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create notes client: %w", err)
	}

	log.Info("Starting session",
		"recognizer", cfg.Recognizer,
		"locale", session.Locale(),
		"endpoint", client.Endpoint(),
		"headless", c.Headless,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := workflow.NewStore(session, client,
		workflow.WithLogger(log),
		workflow.WithCaptureTimeout(cfg.CaptureTimeout),
		workflow.WithSendTimeout(cfg.SendTimeout),
	)

	states := make(chan workflow.State, stateBuffer)
	if err := store.Subscribe(states); err != nil {
		return fmt.Errorf("failed to subscribe to session state: %w", err)
	}

	if err := store.Run(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	// stop capture and delivery before the log file closes
	defer func() {
		cancel()
		store.Wait()
	}()

	if c.Headless {
		return console.Run(ctx, store, states, console.Options{
			MaxNotes: c.MaxNotes,
			Out:      os.Stdout,
		}, log)
	}

	p := tea.NewProgram(tui.New(tui.Config{
		Cancel:        cancel,
		ListenOnStart: !c.NoListenOnStart,
		Endpoint:      client.Endpoint(),
	}, store, states))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to start TUI: %w", err)
	}

	fmt.Println("\nfinished. bye!")

	return nil
}

// setupLogging keeps log lines off the terminal while the TUI owns it.
func (c *ListenCmd) setupLogging(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	if c.Headless {
		return logger.Setup(cfg, os.Stderr, logger.FormatText), nopCloser{}, nil
	}

	log, closer, err := logger.SetupFile(cfg, cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	return log, closer, nil
}

func buildRecognizer(cfg *config.Config, log *slog.Logger) (speech.Recognizer, error) {
	switch cfg.Recognizer {
	case config.RecognizerExec:
		rec, err := speech.NewExecRecognizer(cfg.RecognizerCommand)
		if err != nil {
			return nil, fmt.Errorf("failed to create exec recognizer: %w", err)
		}

		return rec, nil

	case config.RecognizerWhisper:
		apiKey := keyring.Resolve(keyring.OpenAI, cfg.OpenAIAPIKey)
		if apiKey == "" {
			return nil, errors.New(
				"missing OpenAI API key: set OPENAI_API_KEY or run 'memnote config set-key openai <key>'",
			)
		}

		recorder, err := buildAudioRecorder(cfg, log)
		if err != nil {
			return nil, err
		}

		return speech.NewWhisperRecognizer(recorder, cfg.ScratchDir, speech.NewOpenAITranscriber(apiKey)), nil

	default:
		return nil, fmt.Errorf("unknown recognizer %q", cfg.Recognizer)
	}
}

// buildAudioRecorder prefers a configured record command and otherwise records
// the default microphone in-process.
func buildAudioRecorder(cfg *config.Config, log *slog.Logger) (speech.AudioRecorder, error) {
	if cfg.RecordCommand != "" {
		rec, err := speech.NewCommandRecorder(cfg.RecordCommand, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create record command: %w", err)
		}

		return rec, nil
	}

	format, err := audio.ParseFormat(cfg.RecordFormat)
	if err != nil {
		return nil, err
	}

	rec, err := audio.NewMicRecorder(audio.RecorderConfig{
		Format:         format,
		MaxDuration:    cfg.RecordMaxDuration,
		SilenceTimeout: cfg.SilenceTimeout,
	}, audio.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create microphone recorder: %w", err)
	}

	return rec, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
