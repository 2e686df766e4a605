package audio_test

import (
	"bytes"
	"testing"

	"github.com/alkime/memnote/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	assert.Zero(t, audio.Level(nil))
	assert.Zero(t, audio.Level(pcm(0)))
	assert.InDelta(t, 0.5, audio.Level(pcm(16_384)), 0.001)
	assert.InDelta(t, 1.0, audio.Level(pcm(-32_768)), 0.001)
}

func TestParseFormat(t *testing.T) {
	f, err := audio.ParseFormat("wav")
	require.NoError(t, err)
	assert.Equal(t, audio.FormatWAV, f)
	assert.Equal(t, "wav", f.Ext())

	_, err = audio.ParseFormat("flac")
	assert.Error(t, err)
}

func TestMP3Encoder(t *testing.T) {
	var out bytes.Buffer
	enc, err := audio.NewMP3Encoder(&out, testRate, 0)
	require.NoError(t, err)

	// below the threshold nothing is encoded yet
	require.NoError(t, enc.Write(make([]byte, 100)))
	assert.Zero(t, out.Len())

	for range 5 {
		require.NoError(t, enc.Write(pcm(4_000)))
	}
	require.NoError(t, enc.Close())
	assert.Positive(t, out.Len())
}

func TestNewEncoder_Validation(t *testing.T) {
	_, err := audio.NewMP3Encoder(nil, testRate, 0)
	assert.Error(t, err)

	_, err = audio.NewMP3Encoder(&bytes.Buffer{}, 0, 0)
	assert.Error(t, err)

	_, err = audio.NewWAVEncoder(nil, testRate)
	assert.Error(t, err)
}
