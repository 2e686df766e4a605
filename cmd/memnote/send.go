package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alkime/memnote/internal/config"
	"github.com/alkime/memnote/internal/logger"
	"github.com/alkime/memnote/internal/notes"
)

// SendCmd delivers a single note, for scripts and for checking the endpoint.
type SendCmd struct {
	Text string `arg:"" help:"Note text"`
	URL  string `flag:"" optional:"" help:"Notes service base URL, overrides MEMNOTE_NOTES_URL"`
}

// Run executes the send command.
func (c *SendCmd) Run() error {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return errors.New("note text cannot be empty")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if c.URL != "" {
		cfg.NotesURL = c.URL
	}

	log := logger.Setup(cfg, os.Stderr, logger.FormatText)

	client, err := notes.NewClient(cfg.NotesURL, notes.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create notes client: %w", err)
	}

	ctx := context.Background()
	if cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.SendTimeout)
		defer cancel()
	}

	if err := client.SendNote(ctx, notes.NewNoteRequest(text, time.Now())); err != nil {
		return fmt.Errorf("failed to send note to %s: %w", client.Endpoint(), err)
	}

	fmt.Printf("Sent: %s\n", text)

	return nil
}
