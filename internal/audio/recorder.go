package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alkime/memnote/internal/speech"
)

const (
	// DefaultSampleRate is 16kHz, Whisper's native rate.
	DefaultSampleRate = 16_000
	// DefaultMaxDuration bounds a single dictation.
	DefaultMaxDuration = time.Minute
	// DefaultSilenceTimeout is the trailing silence that ends a dictation.
	DefaultSilenceTimeout = 1500 * time.Millisecond
	// DefaultNoSpeechTimeout gives up when nothing is said.
	DefaultNoSpeechTimeout = 8 * time.Second
	// DefaultSpeechLevel is the RMS level treated as speech.
	DefaultSpeechLevel = 0.02
)

// RecorderConfig configures a MicRecorder. Zero fields take the defaults.
type RecorderConfig struct {
	SampleRate      int
	Format          Format
	MaxDuration     time.Duration
	SilenceTimeout  time.Duration
	NoSpeechTimeout time.Duration
	SpeechLevel     float64
}

// WithDefaults fills zero fields.
func (c RecorderConfig) WithDefaults() RecorderConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}

	if c.Format == "" {
		c.Format = FormatMP3
	}

	if c.MaxDuration == 0 {
		c.MaxDuration = DefaultMaxDuration
	}

	if c.SilenceTimeout == 0 {
		c.SilenceTimeout = DefaultSilenceTimeout
	}

	if c.NoSpeechTimeout == 0 {
		c.NoSpeechTimeout = DefaultNoSpeechTimeout
	}

	if c.SpeechLevel == 0 {
		c.SpeechLevel = DefaultSpeechLevel
	}

	return c
}

// MicRecorder records one dictation from the default input device and
// encodes it to a file. It implements speech.AudioRecorder.
type MicRecorder struct {
	conf      RecorderConfig
	newDevice func(DeviceConfig) Device
	logger    *slog.Logger
}

// RecorderOption configures a MicRecorder.
type RecorderOption func(*MicRecorder)

// WithDeviceFactory replaces the malgo device.
func WithDeviceFactory(newDevice func(DeviceConfig) Device) RecorderOption {
	return func(r *MicRecorder) {
		r.newDevice = newDevice
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *MicRecorder) {
		r.logger = logger
	}
}

// NewMicRecorder validates conf and creates a recorder.
func NewMicRecorder(conf RecorderConfig, opts ...RecorderOption) (*MicRecorder, error) {
	conf = conf.WithDefaults()

	if _, err := ParseFormat(string(conf.Format)); err != nil {
		return nil, err
	}

	if conf.SampleRate < 0 || conf.MaxDuration < 0 || conf.SilenceTimeout < 0 || conf.NoSpeechTimeout < 0 {
		return nil, fmt.Errorf("recorder settings cannot be negative: %+v", conf)
	}

	r := &MicRecorder{
		conf:      conf,
		newDevice: NewDevice,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// FileExt returns the extension of the configured format.
func (r *MicRecorder) FileExt() string {
	return r.conf.Format.Ext()
}

// Record captures until the speaker pauses, the maximum duration passes or ctx
// ends, and writes the audio to path. Hearing no speech at all is a cancelled
// capture.
//
//nolint:funlen // device, file and encoder lifecycles
func (r *MicRecorder) Record(ctx context.Context, path string) error {
	dev := r.newDevice(DeviceConfig{SampleRate: r.conf.SampleRate, Channels: 1})

	dataC, err := dev.Capture(ctx)
	if err != nil {
		return fmt.Errorf("failed to start audio capture: %w", err)
	}
	defer dev.Dealloc(ctx)

	if err := dev.Start(ctx); err != nil {
		return fmt.Errorf("failed to start audio device: %w", err)
	}
	defer r.hardStop(ctx, dev)

	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create recording %s: %w", path, err)
	}
	defer r.closeFile(file)

	enc, err := r.newEncoder(file)
	if err != nil {
		return err
	}

	ep := newEndpointer(r.conf)
	// wall-clock backstop for a device that stops delivering
	deadline := time.NewTimer(r.conf.MaxDuration + time.Second)
	defer deadline.Stop()

	start := time.Now()

loop:
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-deadline.C:
			r.logger.Info("Recording stopped", "reason", "deadline")
			break loop

		case packet := <-dataC:
			if err := enc.Write(packet); err != nil {
				return err
			}

			switch ep.observe(packet) {
			case keepRecording:
				continue
			case utteranceEnded:
				r.logger.Debug("Recording stopped", "reason", "silence", "audio", ep.elapsed)
			case maxDurationReached:
				r.logger.Info("Recording stopped", "reason", "max_duration", "audio", ep.elapsed)
			case noSpeechHeard:
				return fmt.Errorf("%w: no speech in %s", speech.ErrCaptureCancelled, ep.elapsed)
			}

			break loop
		}
	}

	if err := dev.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop audio device: %w", err)
	}

	if err := enc.Close(); err != nil {
		return err
	}

	r.logger.Debug("Recording written", "path", path, "took", time.Since(start))

	return nil
}

func (r *MicRecorder) newEncoder(file *os.File) (Encoder, error) {
	var (
		enc Encoder
		err error
	)

	switch r.conf.Format {
	case FormatWAV:
		enc, err = NewWAVEncoder(file, r.conf.SampleRate)
	default:
		enc, err = NewMP3Encoder(file, r.conf.SampleRate, DefaultBufferThreshold)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s encoder: %w", r.conf.Format, err)
	}

	return enc, nil
}

func (r *MicRecorder) hardStop(ctx context.Context, dev Device) {
	if err := dev.Stop(ctx); err != nil {
		r.logger.Warn("Failed to stop audio device", "error", err)
	}
}

func (r *MicRecorder) closeFile(file *os.File) {
	if err := file.Close(); err != nil {
		r.logger.Warn("Failed to close recording", "error", err)
	}
}
