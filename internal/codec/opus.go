// Package codec wraps the Opus encoder/decoder for the pipeline's native
// 16kHz/320-sample frames. Opus itself runs at 48kHz/960 samples, so one
// frame spans 960 ticks of the 48kHz RTP timestamp clock; this package resamples
// across that boundary so the rest of the pipeline never has to think
// about it.
package codec

import (
	"fmt"

	"github.com/thesyncim/gopus"

	"karl/internal/audioframe"
	"karl/internal/obs"
)

// OpusSampleRate is the rate the underlying Opus codec operates at.
const OpusSampleRate = 48000

// OpusFrameSamples is 20ms at OpusSampleRate, the encoder/decoder default.
const OpusFrameSamples = 960

// Encoder wraps a gopus.Encoder, resampling 16kHz/320 input up to
// 48kHz/960 before handing it to Opus.
type Encoder struct {
	enc *gopus.Encoder
}

// NewEncoder constructs an Opus encoder tuned for speech (ApplicationVoIP),
// per the "opaque codec" treatment — callers only see PCM in,
// bytes out.
func NewEncoder() (*Encoder, error) {
	enc, err := gopus.NewEncoder(OpusSampleRate, 1, gopus.ApplicationVoIP)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeCodec, "codec", "NewEncoder")
	}
	return &Encoder{enc: enc}, nil
}

// Encode accepts a 320-sample frame at 16kHz and returns an Opus packet.
func (e *Encoder) Encode(frame []int16) ([]byte, error) {
	if len(frame) != audioframe.FrameSamples {
		return nil, obs.NewError(
			fmt.Errorf("expected %d samples, got %d", audioframe.FrameSamples, len(frame)),
			obs.CodeCodec, "codec", "Encode")
	}

	upsampled := audioframe.Resample(frame, audioframe.SampleRate, OpusSampleRate)
	if len(upsampled) != OpusFrameSamples {
		upsampled = padOrTrim(upsampled, OpusFrameSamples)
	}

	packet, err := e.enc.EncodeInt16Slice(upsampled)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeCodec, "codec", "Encode")
	}
	return packet, nil
}

// Decoder wraps a gopus.Decoder, resampling its 48kHz/960 output down to
// 16kHz/320 and exposing PLC as a distinct call so the playout controller
// doesn't need to know Opus's nil-payload convention.
type Decoder struct {
	dec *gopus.Decoder
}

// NewDecoder constructs a matching decoder for Encoder's output.
func NewDecoder() (*Decoder, error) {
	dec, err := gopus.NewDecoder(OpusSampleRate, 1)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeCodec, "codec", "NewDecoder")
	}
	return &Decoder{dec: dec}, nil
}

// Decode turns an Opus packet into a 320-sample 16kHz frame.
func (d *Decoder) Decode(payload []byte) ([]int16, error) {
	samples, err := d.dec.DecodeInt16Slice(payload)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeCodec, "codec", "Decode")
	}
	return downsampleToFrame(samples), nil
}

// DecodePLC synthesizes a concealment frame using the decoder's Opus-level
// PLC (driven by the last successfully decoded frame's parameters).
func (d *Decoder) DecodePLC() ([]int16, error) {
	samples, err := d.dec.DecodeInt16Slice(nil)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeCodec, "codec", "DecodePLC")
	}
	return downsampleToFrame(samples), nil
}

func downsampleToFrame(samples []int16) []int16 {
	down := audioframe.Resample(samples, OpusSampleRate, audioframe.SampleRate)
	return padOrTrim(down, audioframe.FrameSamples)
}

func padOrTrim(samples []int16, n int) []int16 {
	if len(samples) == n {
		return samples
	}
	out := make([]int16, n)
	copy(out, samples)
	return out
}
