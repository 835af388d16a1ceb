// Package audio implements the PCM frame source/sink contract: the
// boundary types the core sender/receiver pipelines talk to, with concrete
// WAV-file and synthetic-signal implementations. No audio-device access is
// implemented — the in-memory RingBufferSink stands in for a device in
// tests, and standalone runs write to a WAV file through WavSink.
package audio

import (
	"io"
	"math"
)

// RawBlock is one source-native PCM block: samples at the source's own
// sample rate and channel count, before normalization.
type RawBlock struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Source produces a lazy, finite sequence of raw PCM blocks. ReadBlock
// returns io.EOF once exhausted.
type Source interface {
	ReadBlock() (RawBlock, error)
}

// SilenceSource produces a fixed number of zero-filled blocks at the given
// rate/channels, useful for priming and sequence-wraparound tests.
type SilenceSource struct {
	SampleRate   int
	Channels     int
	BlockSamples int
	remaining    int
}

// NewSilenceSource creates a source that yields count blocks of silence.
func NewSilenceSource(sampleRate, channels, blockSamples, count int) *SilenceSource {
	return &SilenceSource{
		SampleRate:   sampleRate,
		Channels:     channels,
		BlockSamples: blockSamples,
		remaining:    count,
	}
}

func (s *SilenceSource) ReadBlock() (RawBlock, error) {
	if s.remaining <= 0 {
		return RawBlock{}, io.EOF
	}
	s.remaining--
	return RawBlock{
		Samples:    make([]int16, s.BlockSamples*s.Channels),
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
	}, nil
}

// ToneSource generates a mono sine wave for end-to-end SNR-style testing.
// It is deterministic given its parameters.
type ToneSource struct {
	SampleRate    int
	FrequencyHz   float64
	AmplitudePeak int16
	BlockSamples  int

	totalSamples     int
	samplesEmitted   int
	phaseSampleIndex int
}

// NewToneSource creates a source emitting durationSamples total samples of
// a sine wave at frequencyHz, chunked into blockSamples-sized blocks.
func NewToneSource(sampleRate int, frequencyHz float64, amplitudePeak int16, blockSamples, durationSamples int) *ToneSource {
	return &ToneSource{
		SampleRate:    sampleRate,
		FrequencyHz:   frequencyHz,
		AmplitudePeak: amplitudePeak,
		BlockSamples:  blockSamples,
		totalSamples:  durationSamples,
	}
}

func (t *ToneSource) ReadBlock() (RawBlock, error) {
	if t.samplesEmitted >= t.totalSamples {
		return RawBlock{}, io.EOF
	}

	n := t.BlockSamples
	if remaining := t.totalSamples - t.samplesEmitted; remaining < n {
		n = remaining
	}

	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = sineSample(t.phaseSampleIndex+i, t.SampleRate, t.FrequencyHz, t.AmplitudePeak)
	}
	t.phaseSampleIndex += n
	t.samplesEmitted += n

	return RawBlock{Samples: samples, SampleRate: t.SampleRate, Channels: 1}, nil
}

func sineSample(sampleIndex, sampleRate int, frequencyHz float64, amplitudePeak int16) int16 {
	t := float64(sampleIndex) / float64(sampleRate)
	return int16(float64(amplitudePeak) * math.Sin(2*math.Pi*frequencyHz*t))
}
