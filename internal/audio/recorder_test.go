package audio_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alkime/memnote/internal/audio"
	"github.com/alkime/memnote/internal/speech"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRate       = 16_000
	samplesPer100m = testRate / 10
)

// pcm returns a 100ms packet with every sample set to value.
func pcm(value int16) audio.DataPacket {
	packet := make(audio.DataPacket, samplesPer100m*2)
	for i := range samplesPer100m {
		binary.LittleEndian.PutUint16(packet[i*2:], uint16(value))
	}

	return packet
}

func repeat(p audio.DataPacket, n int) []audio.DataPacket {
	out := make([]audio.DataPacket, n)
	for i := range out {
		out[i] = p
	}

	return out
}

// fakeDevice delivers a fixed sequence of packets and then goes quiet.
type fakeDevice struct {
	mu         sync.Mutex
	packets    []audio.DataPacket
	captureErr error
	conf       audio.DeviceConfig
	started    bool
	stopped    bool
	dealloced  bool
}

func (d *fakeDevice) Capture(_ context.Context) (<-chan audio.DataPacket, error) {
	if d.captureErr != nil {
		return nil, d.captureErr
	}

	ch := make(chan audio.DataPacket, len(d.packets))
	for _, p := range d.packets {
		ch <- p
	}

	return ch, nil
}

func (d *fakeDevice) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true

	return nil
}

func (d *fakeDevice) Stop(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true

	return nil
}

func (d *fakeDevice) Dealloc(_ context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dealloced = true
}

func newRecorder(t *testing.T, conf audio.RecorderConfig, dev *fakeDevice) *audio.MicRecorder {
	t.Helper()

	rec, err := audio.NewMicRecorder(conf,
		audio.WithDeviceFactory(func(c audio.DeviceConfig) audio.Device {
			dev.conf = c
			return dev
		}),
		audio.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)

	return rec
}

func TestMicRecorder_StopsAfterTrailingSilence(t *testing.T) {
	packets := append(repeat(pcm(10_000), 5), repeat(pcm(0), 30)...)
	dev := &fakeDevice{packets: packets}
	rec := newRecorder(t, audio.RecorderConfig{Format: audio.FormatWAV}, dev)
	path := filepath.Join(t.TempDir(), "note.wav")

	require.NoError(t, rec.Record(context.Background(), path))

	assert.Equal(t, "wav", rec.FileExt())
	assert.Equal(t, audio.DeviceConfig{SampleRate: testRate, Channels: 1}, dev.conf)
	assert.True(t, dev.started)
	assert.True(t, dev.stopped)
	assert.True(t, dev.dealloced)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	// five packets of speech plus the default 1.5s of silence
	assert.Len(t, buf.Data, 20*samplesPer100m)
	assert.Equal(t, 10_000, buf.Data[0])
}

func TestMicRecorder_EncodesMP3(t *testing.T) {
	packets := append(repeat(pcm(8_000), 10), repeat(pcm(0), 15)...)
	rec := newRecorder(t, audio.RecorderConfig{}, &fakeDevice{packets: packets})
	path := filepath.Join(t.TempDir(), "note.mp3")

	require.NoError(t, rec.Record(context.Background(), path))

	assert.Equal(t, "mp3", rec.FileExt())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestMicRecorder_MaxDuration(t *testing.T) {
	dev := &fakeDevice{packets: repeat(pcm(10_000), 50)}
	rec := newRecorder(t, audio.RecorderConfig{Format: audio.FormatWAV, MaxDuration: 300 * time.Millisecond}, dev)
	path := filepath.Join(t.TempDir(), "note.wav")

	require.NoError(t, rec.Record(context.Background(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	require.NoError(t, err)
	assert.Len(t, buf.Data, 3*samplesPer100m)
}

func TestMicRecorder_NoSpeechIsCancelled(t *testing.T) {
	dev := &fakeDevice{packets: repeat(pcm(10), 20)}
	rec := newRecorder(t, audio.RecorderConfig{NoSpeechTimeout: 500 * time.Millisecond}, dev)

	err := rec.Record(context.Background(), filepath.Join(t.TempDir(), "note.mp3"))

	require.ErrorIs(t, err, speech.ErrCaptureCancelled)
	assert.True(t, dev.dealloced)
}

func TestMicRecorder_ContextCancelled(t *testing.T) {
	dev := &fakeDevice{}
	rec := newRecorder(t, audio.RecorderConfig{}, dev)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := rec.Record(ctx, filepath.Join(t.TempDir(), "note.mp3"))

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, dev.stopped)
	assert.True(t, dev.dealloced)
}

func TestMicRecorder_CaptureFailure(t *testing.T) {
	dev := &fakeDevice{captureErr: errors.New("no input device")}
	rec := newRecorder(t, audio.RecorderConfig{}, dev)

	err := rec.Record(context.Background(), filepath.Join(t.TempDir(), "note.mp3"))

	require.ErrorContains(t, err, "no input device")
	assert.False(t, dev.started)
}

func TestNewMicRecorder_InvalidFormat(t *testing.T) {
	_, err := audio.NewMicRecorder(audio.RecorderConfig{Format: "ogg"})
	assert.ErrorContains(t, err, "unknown recording format")
}

func TestMicRecorder_FeedsWhisperRecognizer(t *testing.T) {
	packets := append(repeat(pcm(10_000), 3), repeat(pcm(0), 15)...)
	rec := newRecorder(t, audio.RecorderConfig{Format: audio.FormatWAV}, &fakeDevice{packets: packets})
	tr := &recordingTranscriber{text: "buy milk"}

	res, err := speech.NewWhisperRecognizer(rec, t.TempDir(), tr).
		Capture(context.Background(), speech.BuildCaptureRequest("en-GB", "Speak"))

	require.NoError(t, err)
	assert.Equal(t, []string{"buy milk"}, res.Candidates)
	assert.Equal(t, "en", tr.language)
	assert.Equal(t, "RIFF", string(tr.head))
}

type recordingTranscriber struct {
	text     string
	language string
	head     []byte
}

func (r *recordingTranscriber) TranscribeFile(_ context.Context, audio io.Reader, language string) (string, error) {
	r.language = language
	r.head = make([]byte, 4)
	if _, err := io.ReadFull(audio, r.head); err != nil {
		return "", err
	}

	return r.text, nil
}
