package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"

	// RecognizerExec runs a dictation command that prints candidates as JSON.
	RecognizerExec = "exec"
	// RecognizerWhisper records with a command and transcribes with Whisper.
	RecognizerWhisper = "whisper"
)

// Config holds all application configuration.
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Client settings
	NotesURL          string        `envconfig:"MEMNOTE_NOTES_URL" default:"https://api.example.com/"`
	Locale            string        `envconfig:"MEMNOTE_LOCALE"`
	Prompt            string        `envconfig:"MEMNOTE_PROMPT" default:"Speak..."`
	Recognizer        string        `envconfig:"MEMNOTE_RECOGNIZER" default:"exec"`
	RecognizerCommand string        `envconfig:"MEMNOTE_RECOGNIZER_COMMAND"`
	RecordCommand     string        `envconfig:"MEMNOTE_RECORD_COMMAND"`
	RecordFormat      string        `envconfig:"MEMNOTE_RECORD_FORMAT" default:"mp3"`
	RecordMaxDuration time.Duration `envconfig:"MEMNOTE_RECORD_MAX_DURATION" default:"60s"`
	SilenceTimeout    time.Duration `envconfig:"MEMNOTE_SILENCE_TIMEOUT" default:"1500ms"`
	ScratchDir        string        `envconfig:"MEMNOTE_SCRATCH_DIR"`
	CaptureTimeout    time.Duration `envconfig:"MEMNOTE_CAPTURE_TIMEOUT" default:"0s"`
	SendTimeout       time.Duration `envconfig:"MEMNOTE_SEND_TIMEOUT" default:"30s"`
	LogFile           string        `envconfig:"MEMNOTE_LOG_FILE" default:"memnote.log"`
	OpenAIAPIKey      string        `envconfig:"OPENAI_API_KEY"`

	// Notes sink server settings
	Port       string `envconfig:"PORT" default:"8080"`
	HSTSMaxAge int    `envconfig:"HSTS_MAX_AGE" default:"31536000"`
	CSPMode    string `envconfig:"CSP_MODE" default:"strict"`
}

// LoadConfig loads configuration from .env file and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; production sets real environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Error loading .env file", "error", err)
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	return &config, nil
}

// ValidateClient checks the settings the voice client needs.
func (c *Config) ValidateClient() error {
	var errs []error

	if c.NotesURL == "" {
		errs = append(errs, errors.New("MEMNOTE_NOTES_URL is required"))
	}

	switch c.Recognizer {
	case RecognizerExec:
		if c.RecognizerCommand == "" {
			errs = append(errs, errors.New("MEMNOTE_RECOGNIZER_COMMAND is required for the exec recognizer"))
		}
	case RecognizerWhisper:
		// without a record command the microphone is recorded in-process
		if c.RecordCommand == "" && c.RecordFormat != "mp3" && c.RecordFormat != "wav" {
			errs = append(errs, fmt.Errorf("MEMNOTE_RECORD_FORMAT must be mp3 or wav, got %q", c.RecordFormat))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown recognizer %q: must be %q or %q",
			c.Recognizer, RecognizerExec, RecognizerWhisper))
	}

	if c.CaptureTimeout < 0 || c.SendTimeout < 0 || c.RecordMaxDuration < 0 || c.SilenceTimeout < 0 {
		errs = append(errs, errors.New("timeouts cannot be negative"))
	}

	return errors.Join(errs...)
}

// BuildCSP constructs Content Security Policy based on mode.
// The sink only serves JSON, so nothing needs to load.
func BuildCSP(mode string) string {
	if mode == "strict" {
		return "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"
	}

	return "default-src 'self'"
}
