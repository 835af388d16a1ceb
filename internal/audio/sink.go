package audio

import (
	"context"

	"karl/internal/jitter"
)

// RingBufferFrameSamples is the fixed frame length every playout write
// carries, matching the pipeline's native 16kHz/20ms frame.
const RingBufferFrameSamples = 320

// RingBufferSink is a bounded PCM frame sink backing the playout's "ring
// buffer" contract. It's a buffered channel under the hood: WriteFrame
// blocks on a full channel until ctx expires, letting the playout
// controller enforce the 5ms block-then-drop policy purely through ctx's
// deadline rather than a custom wait/notify path.
type RingBufferSink struct {
	frames chan []int16
}

// NewRingBufferSink creates a sink holding at most capacity frames.
func NewRingBufferSink(capacity int) *RingBufferSink {
	return &RingBufferSink{frames: make(chan []int16, capacity)}
}

// WriteFrame implements jitter.FrameSink.
func (s *RingBufferSink) WriteFrame(ctx context.Context, samples []int16) error {
	cp := make([]int16, len(samples))
	copy(cp, samples)

	select {
	case s.frames <- cp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadFrame pops the oldest buffered frame, for a downstream consumer (a
// device writer or a test harness). Returns false if empty.
func (s *RingBufferSink) ReadFrame() ([]int16, bool) {
	select {
	case f := <-s.frames:
		return f, true
	default:
		return nil, false
	}
}

// Drain returns every buffered frame currently queued, in order.
func (s *RingBufferSink) Drain() [][]int16 {
	var out [][]int16
	for {
		select {
		case f := <-s.frames:
			out = append(out, f)
		default:
			return out
		}
	}
}

// Close closes the underlying frame channel. It does not wait for writers:
// a WriteFrame that is blocked at the time of Close, or called after it,
// panics on the closed channel.
func (s *RingBufferSink) Close() {
	close(s.frames)
}

var _ jitter.FrameSink = (*RingBufferSink)(nil)
