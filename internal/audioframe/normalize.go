// Package audioframe normalizes arbitrary PCM (any sample rate, mono or
// stereo, 16-bit signed) into the pipeline's native format: 16kHz mono,
// framed into exactly 320-sample (20ms) chunks.
package audioframe

// SampleRate is the pipeline's native sample rate.
const SampleRate = 16000

// FrameSamples is the fixed 20ms frame length at SampleRate.
const FrameSamples = 320

// ChannelFold collapses interleaved multi-channel PCM to mono by arithmetic
// mean per sample group, saturating to int16 range.
func ChannelFold(samples []int16, channels int) []int16 {
	if channels <= 1 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}

	frameCount := len(samples) / channels
	out := make([]int16, frameCount)
	for i := 0; i < frameCount; i++ {
		var sum int32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += int32(samples[base+c])
		}
		out[i] = saturateInt16(sum / int32(channels))
	}
	return out
}

func saturateInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Resample converts mono samples at fromRate to toRate using linear
// interpolation. Deterministic for a given input and rate pair; not
// bit-exact to any particular reference resampler, which the normalizer
// contract does not require.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	out := make([]int16, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)

		if srcIdx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}

		frac := srcPos - float64(srcIdx)
		s0 := float64(samples[srcIdx])
		s1 := float64(samples[srcIdx+1])
		out[i] = int16(s0 + (s1-s0)*frac)
	}
	return out
}

// Framer packs a normalized mono 16kHz sample stream into consecutive
// FrameSamples-length frames, zero-padding the final partial frame.
type Framer struct {
	pending []int16
}

// Push appends newly normalized samples and returns every complete frame
// that can now be extracted. Call Flush at end-of-stream to emit a final
// zero-padded partial frame, if any samples remain.
func (f *Framer) Push(samples []int16) [][]int16 {
	f.pending = append(f.pending, samples...)

	var frames [][]int16
	for len(f.pending) >= FrameSamples {
		frame := make([]int16, FrameSamples)
		copy(frame, f.pending[:FrameSamples])
		frames = append(frames, frame)
		f.pending = f.pending[FrameSamples:]
	}
	return frames
}

// Flush zero-pads and returns any remaining partial frame, or nil if the
// stream ended on an exact frame boundary.
func (f *Framer) Flush() []int16 {
	if len(f.pending) == 0 {
		return nil
	}
	frame := make([]int16, FrameSamples)
	copy(frame, f.pending)
	f.pending = nil
	return frame
}

// Normalize runs the full normalization pipeline on one chunk of raw PCM: channel
// fold, resample to 16kHz, framing via f. It does not call Flush — callers
// drive that once at end-of-stream.
func Normalize(f *Framer, raw []int16, channels, sourceRate int) [][]int16 {
	mono := ChannelFold(raw, channels)
	resampled := Resample(mono, sourceRate, SampleRate)
	return f.Push(resampled)
}
