package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Format is the container a recording is written in.
type Format string

const (
	// FormatMP3 compresses recordings before upload.
	FormatMP3 Format = "mp3"
	// FormatWAV writes uncompressed 16-bit PCM.
	FormatWAV Format = "wav"
)

// ParseFormat validates a configured format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatMP3, FormatWAV:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown recording format %q: must be %q or %q", s, FormatMP3, FormatWAV)
	}
}

// Ext returns the file extension for f.
func (f Format) Ext() string {
	return string(f)
}

// Encoder accepts S16LE mono PCM and writes it to an underlying file.
// Close flushes buffered audio; it does not close the file.
type Encoder interface {
	Write(pcm []byte) error
	Close() error
}

// DefaultBufferThreshold is 4KB, 2048 mono samples or 128ms at 16kHz.
const DefaultBufferThreshold = 4096

// mp3Encoder batches PCM up to a threshold before encoding with shine-mp3.
type mp3Encoder struct {
	out       io.Writer
	encoder   *mp3encoder.Encoder
	buffer    []byte
	threshold int
}

// NewMP3Encoder encodes mono PCM at sampleRate into MP3 frames written to out.
func NewMP3Encoder(out io.Writer, sampleRate, threshold int) (Encoder, error) {
	if out == nil {
		return nil, errors.New("output writer cannot be nil")
	}

	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}

	if threshold <= 0 {
		threshold = DefaultBufferThreshold
	}

	return &mp3Encoder{
		out: out,
		// shine-mp3 mis-steps through mono input, so samples are duplicated
		// into a stereo stream
		encoder:   mp3encoder.NewEncoder(sampleRate, 2),
		buffer:    make([]byte, 0, threshold),
		threshold: threshold,
	}, nil
}

func (e *mp3Encoder) Write(pcm []byte) error {
	e.buffer = append(e.buffer, pcm...)
	if len(e.buffer) < e.threshold {
		return nil
	}

	return e.encodeBatch()
}

func (e *mp3Encoder) Close() error {
	if err := e.encodeBatch(); err != nil {
		return fmt.Errorf("failed to flush MP3 encoder: %w", err)
	}

	return nil
}

func (e *mp3Encoder) encodeBatch() error {
	// keep an odd trailing byte for the next batch
	n := len(e.buffer) &^ 1
	if n == 0 {
		return nil
	}

	mono := make([]int16, n/2)
	if err := binary.Read(bytes.NewReader(e.buffer[:n]), binary.LittleEndian, mono); err != nil {
		return fmt.Errorf("failed to read PCM samples: %w", err)
	}

	stereo := make([]int16, len(mono)*2)
	for i, sample := range mono {
		stereo[i*2] = sample
		stereo[i*2+1] = sample
	}

	if err := e.encoder.Write(e.out, stereo); err != nil {
		return fmt.Errorf("failed to encode audio to MP3: %w", err)
	}

	e.buffer = append(e.buffer[:0], e.buffer[n:]...)

	return nil
}

// wavEncoder streams PCM into a WAV file. The header is finalised on Close.
type wavEncoder struct {
	enc        *wav.Encoder
	sampleRate int
	pending    []byte
}

// NewWAVEncoder writes 16-bit mono PCM at sampleRate to out.
func NewWAVEncoder(out io.WriteSeeker, sampleRate int) (Encoder, error) {
	if out == nil {
		return nil, errors.New("output writer cannot be nil")
	}

	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}

	return &wavEncoder{
		enc:        wav.NewEncoder(out, sampleRate, 16, 1, 1),
		sampleRate: sampleRate,
	}, nil
}

func (e *wavEncoder) Write(pcm []byte) error {
	e.pending = append(e.pending, pcm...)
	n := len(e.pending) &^ 1
	if n == 0 {
		return nil
	}

	samples := make([]int, n/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(e.pending[i*2:])))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: e.sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}

	e.pending = append(e.pending[:0], e.pending[n:]...)

	return nil
}

func (e *wavEncoder) Close() error {
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("failed to finalise WAV file: %w", err)
	}

	return nil
}
