// Package console drives a voice note session without a terminal UI. It
// starts the first capture, prints each delivered note, and keeps the
// session going until it fails, enough notes are sent, or ctx ends.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alkime/memnote/internal/workflow"
)

// Options configures a headless session.
type Options struct {
	// MaxNotes stops the session after this many deliveries. Zero means no limit.
	MaxNotes int
	// Out receives one line per phase change. Defaults to os.Stdout.
	Out io.Writer
}

// Run emits StartListening on emitter and follows the published states until
// the session is done. It returns the state's error when a cycle ends in
// PhaseErrored, since nobody is around to start the next one.
func Run(
	ctx context.Context,
	emitter workflow.Emitter,
	states <-chan workflow.State,
	opts Options,
	logger *slog.Logger,
) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if logger == nil {
		logger = slog.Default()
	}

	emitter.Emit(workflow.StartListening{})

	delivered := 0
	last := workflow.PhaseIdle

	for {
		select {
		case <-ctx.Done():
			logger.Info("Session stopped", "delivered", delivered)
			return nil

		case s, ok := <-states:
			if !ok {
				return nil
			}

			if s.Phase != last {
				logger.Debug("State received", "phase", s.Phase.String())
				printState(out, s)
				last = s.Phase
			}

			switch s.Phase {
			case workflow.PhaseErrored:
				return fmt.Errorf("note cycle failed: %w", s.Err())

			case workflow.PhaseSent:
				if !s.AutoRestart {
					continue
				}

				delivered++
				if opts.MaxNotes > 0 && delivered >= opts.MaxNotes {
					logger.Info("Delivered requested notes", "count", delivered)
					return nil
				}

				emitter.Emit(workflow.ConsumeAutoRestart{})

			case workflow.PhaseIdle, workflow.PhaseListening, workflow.PhaseSending:
			}
		}
	}
}

func printState(w io.Writer, s workflow.State) {
	switch s.Phase {
	case workflow.PhaseListening:
		fmt.Fprintln(w, "Listening...")
	case workflow.PhaseSending:
		fmt.Fprintf(w, "Sending: %s\n", s.RecognizedText)
	case workflow.PhaseSent:
		fmt.Fprintf(w, "Sent: %s\n", s.LastSentText)
	case workflow.PhaseErrored:
		fmt.Fprintf(w, "Error: %s\n", s.ErrorMessage)
	case workflow.PhaseIdle:
	}
}
