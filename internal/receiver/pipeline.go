// Package receiver implements the receiver-side pipeline: UDP
// ingress and playout run as two concurrent activities sharing a jitter
// buffer, coordinated by a context and a WaitGroup for clean shutdown.
package receiver

import (
	"context"
	"sync"

	"karl/internal/codec"
	"karl/internal/jitter"
	"karl/internal/obs"
	"karl/internal/rtpcore"
	"karl/internal/transport"
)

// Pipeline owns the ingress goroutine, the jitter buffer, and the playout
// controller for one receiver stream.
type Pipeline struct {
	recv   *transport.UDPReceiver
	buffer *jitter.Buffer
	sink   obs.Sink

	playout *jitter.PlayoutController

	haveSSRC bool
	ssrc     uint32

	srtp *transport.SRTPSession

	wg sync.WaitGroup
}

// SetSRTP attaches an optional SRTP session; when set, ingressLoop
// decrypts every datagram before it reaches the jitter buffer instead of
// parsing it as cleartext RTP. Passing nil disables decryption again.
func (p *Pipeline) SetSRTP(session *transport.SRTPSession) {
	p.srtp = session
}

// New wires a Pipeline: recv is the bound UDP socket, decoder and
// frameSink feed into the playout controller, metricsSink is shared by
// both activities.
func New(recv *transport.UDPReceiver, cfg jitter.Config, decoder *codec.Decoder, frameSink jitter.FrameSink, metricsSink obs.Sink) *Pipeline {
	if metricsSink == nil {
		metricsSink = obs.NopSink{}
	}
	buf := jitter.New(cfg, metricsSink)
	return &Pipeline{
		recv:    recv,
		buffer:  buf,
		sink:    metricsSink,
		playout: jitter.NewPlayoutController(buf, decoder, frameSink, metricsSink),
	}
}

// Run starts both activities and blocks until ctx is cancelled, then
// closes the socket and waits for both to exit. Playout stops at
// cancellation; packets still held in the jitter buffer are not decoded or
// written to the sink.
func (p *Pipeline) Run(ctx context.Context) {
	p.wg.Add(2)
	go p.ingressLoop(ctx)
	go func() {
		defer p.wg.Done()
		p.playout.Run(ctx)
	}()

	<-ctx.Done()
	p.recv.Close()
	p.wg.Wait()
}

// ingressLoop receives datagrams, parses them, validates SSRC and
// non-empty payload, and inserts into the jitter buffer.
func (p *Pipeline) ingressLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, err := p.recv.Receive(ctx)
		if err != nil {
			return // socket closed, or ctx cancelled
		}
		if data == nil {
			continue // read timeout, loop to recheck ctx
		}

		var pkt rtpcore.Packet
		if p.srtp != nil {
			pkt, err = p.srtp.Decrypt(data)
		} else {
			pkt, err = rtpcore.Parse(data)
		}
		if err != nil {
			p.sink.CounterInc(obs.MetricProtocolErrors, 1)
			obs.Debugf("receiver: dropping malformed packet: %v", err)
			continue
		}

		if len(pkt.Payload) == 0 {
			p.sink.CounterInc(obs.MetricEmptyPayload, 1)
			continue
		}

		if !p.haveSSRC {
			p.haveSSRC = true
			p.ssrc = pkt.SSRC
		} else if pkt.SSRC != p.ssrc {
			p.sink.CounterInc(obs.MetricSSRCMismatch, 1)
			continue
		}

		p.sink.CounterInc(obs.MetricPacketsReceived, 1)
		p.sink.CounterInc(obs.MetricBytesReceived, float64(len(data)))

		p.buffer.Insert(jitter.Packet{
			Sequence:  pkt.Sequence,
			Timestamp: pkt.Timestamp,
			Payload:   pkt.Payload,
		})
	}
}
