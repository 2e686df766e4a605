package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Level returns the RMS level of S16LE samples, from 0 (silence) to 1.
func Level(packet DataPacket) float64 {
	n := len(packet) / 2
	if n == 0 {
		return 0
	}

	var sum float64
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(packet[i*2:])))
		sum += s * s
	}

	return math.Sqrt(sum/float64(n)) / math.MaxInt16
}

type endpointResult int

const (
	keepRecording endpointResult = iota
	utteranceEnded
	maxDurationReached
	noSpeechHeard
)

// endpointer decides when a dictation is over by counting audio time, not
// wall time: trailing silence after speech ends it, and so does running out
// of time or never hearing speech at all.
type endpointer struct {
	sampleRate  int
	speechLevel float64
	silence     time.Duration
	noSpeech    time.Duration
	maxDuration time.Duration

	heard   bool
	elapsed time.Duration
	quiet   time.Duration
}

func newEndpointer(conf RecorderConfig) *endpointer {
	return &endpointer{
		sampleRate:  conf.SampleRate,
		speechLevel: conf.SpeechLevel,
		silence:     conf.SilenceTimeout,
		noSpeech:    conf.NoSpeechTimeout,
		maxDuration: conf.MaxDuration,
	}
}

func (e *endpointer) observe(packet DataPacket) endpointResult {
	d := time.Duration(len(packet)/2) * time.Second / time.Duration(e.sampleRate)
	e.elapsed += d

	if Level(packet) >= e.speechLevel {
		e.heard = true
		e.quiet = 0
	} else if e.heard {
		e.quiet += d
	}

	switch {
	case e.heard && e.quiet >= e.silence:
		return utteranceEnded
	case e.elapsed >= e.maxDuration:
		return maxDurationReached
	case !e.heard && e.noSpeech > 0 && e.elapsed >= e.noSpeech:
		return noSpeechHeard
	default:
		return keepRecording
	}
}
