// Package pipeline wires sender and receiver together for end-to-end
// tests over real loopback UDP sockets — the round-trip and scenario
// checks don't fit naturally inside either internal/sender or
// internal/receiver alone.
package pipeline

import (
	"context"
	"testing"
	"time"

	"karl/internal/audio"
	"karl/internal/codec"
	"karl/internal/jitter"
	"karl/internal/obs"
	"karl/internal/receiver"
	"karl/internal/sender"
	"karl/internal/transport"
)

// newLoopback sets up a receiver socket on an ephemeral port and a sender
// socket targeting it, returning both ends ready to run.
func newLoopback(t *testing.T) (*transport.UDPReceiver, *transport.UDPSender) {
	t.Helper()

	recv, err := transport.NewUDPReceiver("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDPReceiver: %v", err)
	}
	t.Cleanup(func() { recv.Close() })

	send, err := transport.NewUDPSender(recv.LocalAddr().String(), nil)
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	t.Cleanup(func() { send.Close() })

	return recv, send
}

func TestLoopbackPerfectNetworkDecodesAllFrames(t *testing.T) {
	recv, send := newLoopback(t)

	enc, err := codec.NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	dec, err := codec.NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	const frameCount = 50 // 1 second at 20ms/frame
	src := audio.NewToneSource(16000, 440, 10000, 320, frameCount*320)

	sendPipeline := sender.New(src, enc, send, sender.RandomSSRC(), nil)

	sink := audio.NewRingBufferSink(256)
	metrics := obs.NewPromSink("test_loopback_perfect")
	recvPipeline := receiver.New(recv, jitter.DefaultConfig(), dec, sink, metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	recvDone := make(chan struct{})
	go func() {
		recvPipeline.Run(ctx)
		close(recvDone)
	}()

	senderDone := make(chan struct{})
	go func() {
		sendPipeline.Run(nil)
		close(senderDone)
	}()

	select {
	case <-senderDone:
	case <-time.After(2 * time.Second):
		t.Fatal("sender did not finish within timeout")
	}

	// Give the playout controller time to drain priming plus the real
	// frames at its own 20ms cadence.
	time.Sleep(time.Duration(frameCount+10) * 20 * time.Millisecond)
	cancel()

	select {
	case <-recvDone:
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not shut down within timeout")
	}

	frames := sink.Drain()
	if len(frames) < frameCount {
		t.Fatalf("got %d decoded frames, want at least %d", len(frames), frameCount)
	}
	for _, f := range frames {
		if len(f) != audio.RingBufferFrameSamples {
			t.Fatalf("frame length = %d, want %d", len(f), audio.RingBufferFrameSamples)
		}
	}

	// The frame count above includes priming silence and trailing PLC, so
	// check from the counters that every sent packet was received and
	// decoded rather than discarded.
	snap := metrics.Snapshot()
	if snap[obs.MetricPacketsReceived] != frameCount {
		t.Fatalf("packets_received = %v, want %d", snap[obs.MetricPacketsReceived], frameCount)
	}
	if snap[obs.MetricPacketsLate] != 0 || snap[obs.MetricDecodeErrors] != 0 {
		t.Fatalf("packets_late = %v, decode_errors = %v, want 0 on a perfect network",
			snap[obs.MetricPacketsLate], snap[obs.MetricDecodeErrors])
	}
}

func TestLoopbackSequenceWraparoundOrdering(t *testing.T) {
	recv, send := newLoopback(t)

	enc, err := codec.NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	dec, err := codec.NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	// Six silent frames, starting just below the sequence wraparound, per
	// a sequence-wraparound boundary case.
	src := audio.NewSilenceSource(16000, 1, 320, 6)
	sendPipeline := sender.New(src, enc, send, 0xC0FFEE, nil)
	sendPipeline.SetInitialSequence(65533)

	sink := audio.NewRingBufferSink(256)
	metrics := obs.NewPromSink("test_loopback_wraparound")
	recvPipeline := receiver.New(recv, jitter.Config{DepthMs: 60, MaxCapacity: 48}, dec, sink, metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	recvDone := make(chan struct{})
	go func() {
		recvPipeline.Run(ctx)
		close(recvDone)
	}()

	sendPipeline.Run(nil)

	time.Sleep(300 * time.Millisecond)
	cancel()
	<-recvDone

	frames := sink.Drain()
	if len(frames) < 6 {
		t.Fatalf("got %d frames, want at least 6 across the wraparound", len(frames))
	}

	// Playout releases strictly in buffer order, so all six packets being
	// received with none late and no resync means 65533..2 played in order
	// across the wrap.
	snap := metrics.Snapshot()
	if snap[obs.MetricPacketsReceived] != 6 {
		t.Fatalf("packets_received = %v, want 6", snap[obs.MetricPacketsReceived])
	}
	if snap[obs.MetricPacketsLate] != 0 || snap[obs.MetricResync] != 0 {
		t.Fatalf("packets_late = %v, resync = %v, want 0 across the wraparound",
			snap[obs.MetricPacketsLate], snap[obs.MetricResync])
	}
}
