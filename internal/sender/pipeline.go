// Package sender implements the sender-side pipeline: PCM source →
// frame normalizer → Opus encoder → RTP packetizer → UDP transmitter, paced
// at one 20ms frame per iteration.
package sender

import (
	"errors"
	"io"
	"math/rand"
	"time"

	"karl/internal/audio"
	"karl/internal/audioframe"
	"karl/internal/codec"
	"karl/internal/obs"
	"karl/internal/rtpcore"
	"karl/internal/transport"
)

// frameInterval is the fixed 20ms pacing cadence.
const frameInterval = 20 * time.Millisecond

// timestampStep is 960 per emitted packet at the 48kHz Opus RTP clock.
const timestampStep = 960

// Pipeline owns the sender-side state: sequence/timestamp counters, the
// encoder, and the transmitter. One Pipeline serves exactly one stream.
type Pipeline struct {
	source  audio.Source
	encoder *codec.Encoder
	sender  *transport.UDPSender
	obs     obs.Sink

	ssrc      uint32
	sequence  uint16
	timestamp uint32

	framer *audioframe.Framer

	// pending holds frames already produced by the normalizer but not yet
	// emitted. Normalize can return more than one frame per source block
	// (e.g. an 8kHz source block upsamples to two 16kHz frames), but only
	// one frame is paced out per Run iteration, so the rest queue here.
	pending [][]int16
}

// New wires a Pipeline together. ssrc should be randomized at startup
// unless the caller has a reason to pin it (tests).
func New(source audio.Source, encoder *codec.Encoder, sender *transport.UDPSender, ssrc uint32, sink obs.Sink) *Pipeline {
	if sink == nil {
		sink = obs.NopSink{}
	}
	return &Pipeline{
		source:  source,
		encoder: encoder,
		sender:  sender,
		obs:     sink,
		ssrc:    ssrc,
		framer:  &audioframe.Framer{},
	}
}

// RandomSSRC picks a random 32-bit SSRC for stream identity at startup.
func RandomSSRC() uint32 {
	return rand.Uint32()
}

// SetInitialSequence overrides the starting sequence number. Exercised by
// wraparound tests; production callers leave the default of 0.
func (p *Pipeline) SetInitialSequence(seq uint16) {
	p.sequence = seq
}

// Run drains the source, pacing one RTP packet per 20ms, until EOF or
// stopCh is closed. stopCh is polled once per iteration; a nil stopCh
// never stops the loop.
func (p *Pipeline) Run(stopCh <-chan struct{}) error {
	start := time.Now()
	var framesSent int64
	eof := false

	for !eof {
		select {
		case <-stopCh:
			return nil
		default:
		}

		frame, ok, err := p.nextFrame()
		if err != nil {
			return err
		}
		if !ok {
			eof = true
			frame = p.framer.Flush()
			if frame == nil {
				break
			}
		}

		if err := p.emit(frame); err != nil {
			obs.Errorf("sender: %v", err)
		}

		framesSent++
		target := start.Add(time.Duration(framesSent) * frameInterval)
		p.pace(target)
	}
	return nil
}

// nextFrame returns one frame per call, draining any frames already queued
// in pending before pulling more raw blocks from the source. Normalize can
// produce more than one frame from a single source block, so every frame it
// returns is queued and emitted one per pacing iteration rather than
// discarded. ok is false only at EOF with no frame produced this call.
func (p *Pipeline) nextFrame() ([]int16, bool, error) {
	for len(p.pending) == 0 {
		raw, err := p.source.ReadBlock()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, false, nil
			}
			return nil, false, obs.NewError(err, obs.CodeIO, "sender", "nextFrame")
		}

		p.pending = audioframe.Normalize(p.framer, raw.Samples, raw.Channels, raw.SampleRate)
	}

	frame := p.pending[0]
	p.pending = p.pending[1:]
	return frame, true, nil
}

// emit encodes one frame, packetizes it, and transmits it. An encoder
// error skips the frame entirely — sequence and timestamp don't advance,
// leaving a gap the receiver treats as loss.
func (p *Pipeline) emit(frame []int16) error {
	payload, err := p.encoder.Encode(frame)
	if err != nil {
		p.obs.CounterInc(obs.MetricEncodeErrors, 1)
		return err
	}

	pkt := rtpcore.Packet{
		Sequence:  p.sequence,
		Timestamp: p.timestamp,
		SSRC:      p.ssrc,
		Payload:   payload,
	}
	data, err := rtpcore.Serialize(pkt)
	if err != nil {
		return err
	}

	if err := p.sender.Send(data); err != nil {
		return err
	}

	p.sequence++
	p.timestamp += timestampStep
	p.obs.CounterInc(obs.MetricPacketsSent, 1)
	return nil
}

// pace blocks until target, unless it has already passed by more than one
// frame interval — in which case it emits immediately and records a skew
// observation instead of compressing the timeline.
func (p *Pipeline) pace(target time.Time) {
	d := time.Until(target)
	if d < -frameInterval {
		p.obs.HistogramObserve(obs.HistogramPacingSkewMs, float64(-d.Milliseconds()))
		return
	}
	if d > 0 {
		time.Sleep(d)
	}
}
