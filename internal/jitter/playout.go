package jitter

import (
	"context"
	"time"

	"karl/internal/obs"
)

// FrameSamples is the fixed PCM frame size the playout controller emits per
// tick, at the pipeline's native 16kHz rate (320 samples = 20ms).
const FrameSamples = 320

// Decoder turns an Opus payload into PCM (Decode), or synthesizes a PLC
// frame for a missing packet (DecodePLC). Implemented by internal/codec.
type Decoder interface {
	Decode(payload []byte) ([]int16, error)
	DecodePLC() ([]int16, error)
}

// FrameSink receives decoded PCM frames, blocking briefly under backpressure.
// Implemented by internal/audio ring-buffer sinks.
type FrameSink interface {
	WriteFrame(ctx context.Context, samples []int16) error
}

// PlayoutController drives the 20ms self-clocked tick: pop from the
// jitter buffer, decode or conceal, write to the sink. It anchors to a
// monotonic start time the same way the sender's pacing loop does, so ticks
// don't drift under scheduling jitter.
type PlayoutController struct {
	buffer  *Buffer
	decoder Decoder
	sink    FrameSink
	obs     obs.Sink

	tickInterval time.Duration
	blockTimeout time.Duration
}

// NewPlayoutController wires a buffer, decoder, and sink together. sink may
// be nil in tests that only want to exercise buffer/decoder interaction.
func NewPlayoutController(buffer *Buffer, decoder Decoder, sink FrameSink, metrics obs.Sink) *PlayoutController {
	if metrics == nil {
		metrics = obs.NopSink{}
	}
	return &PlayoutController{
		buffer:       buffer,
		decoder:      decoder,
		sink:         sink,
		obs:          metrics,
		tickInterval: FrameMs * time.Millisecond,
		blockTimeout: 5 * time.Millisecond,
	}
}

// Run ticks until ctx is cancelled. The anchor is captured once at entry;
// each tick's deadline is computed as anchor + n*interval rather than
// accumulated from the previous tick, so a slow tick doesn't push every
// subsequent one later (same discipline as the sender's pacing loop).
func (c *PlayoutController) Run(ctx context.Context) {
	anchor := time.Now()
	var n int64

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			c.tick()
			n++
			next := anchor.Add(time.Duration(n) * c.tickInterval)
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			timer.Reset(d)
		}
	}
}

// tick implements one iteration: pop, decode-or-conceal, write.
func (c *PlayoutController) tick() {
	pkt, primed := c.buffer.Pop()
	if !primed {
		c.writeSilence()
		return
	}

	var samples []int16
	var err error
	if pkt != nil {
		samples, err = c.decoder.Decode(pkt.Payload)
		if err != nil {
			c.obs.CounterInc(obs.MetricDecodeErrors, 1)
			samples, err = c.decoder.DecodePLC()
			if err != nil {
				return
			}
			c.obs.CounterInc(obs.MetricPLCFramesEmitted, 1)
		}
	} else {
		samples, err = c.decoder.DecodePLC()
		if err != nil {
			return
		}
		c.obs.CounterInc(obs.MetricPLCFramesEmitted, 1)
	}

	c.write(samples)
}

func (c *PlayoutController) writeSilence() {
	c.write(make([]int16, FrameSamples))
}

// write delivers samples to the sink with a ≤5ms block-then-drop policy.
func (c *PlayoutController) write(samples []int16) {
	if c.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.blockTimeout)
	defer cancel()
	if err := c.sink.WriteFrame(ctx, samples); err != nil {
		c.obs.CounterInc(obs.MetricPlaybackUnderrun, 1)
	}
}
