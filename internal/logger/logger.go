package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alkime/memnote/internal/config"
)

// Format selects the slog handler.
type Format int

const (
	// FormatJSON is used by the server.
	FormatJSON Format = iota
	// FormatText is used by the CLI.
	FormatText
)

// Level determines the log level for cfg.
func Level(cfg *config.Config) slog.Level {
	logLevel := slog.LevelInfo
	if cfg.Env == "development" {
		logLevel = slog.LevelDebug
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	return logLevel
}

// Setup builds a logger writing to w and sets it as the default.
func Setup(cfg *config.Config, w io.Writer, format Format) *slog.Logger {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	opts := &slog.HandlerOptions{
		Level: Level(cfg),
	}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if format == FormatText {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// SetupLogger configures JSON logging to stdout.
func SetupLogger(cfg *config.Config) *slog.Logger {
	return Setup(cfg, os.Stdout, FormatJSON)
}

// SetupFile configures text logging appended to path, for when the terminal
// belongs to the TUI. The caller closes the returned file.
func SetupFile(cfg *config.Config, path string) (*slog.Logger, io.Closer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	//nolint:gosec // path comes from the user's configuration
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return Setup(cfg, file, FormatText), file, nil
}
