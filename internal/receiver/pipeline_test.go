package receiver

import (
	"context"
	"net"
	"testing"
	"time"

	"karl/internal/audio"
	"karl/internal/codec"
	"karl/internal/jitter"
	"karl/internal/obs"
	"karl/internal/transport"
)

// TestIngressLoopCountsMalformedPackets sends a datagram too short to be a
// valid RTP header and checks the ingress loop counts it as a protocol
// error rather than silently dropping it.
func TestIngressLoopCountsMalformedPackets(t *testing.T) {
	recv, err := transport.NewUDPReceiver("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDPReceiver: %v", err)
	}
	defer recv.Close()

	dec, err := codec.NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	metrics := obs.NewPromSink("test_protocol_errors")
	sink := audio.NewRingBufferSink(16)
	pipeline := New(recv, jitter.DefaultConfig(), dec, sink, metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pipeline.Run(ctx)
		close(done)
	}()

	conn, err := net.Dial("udp", recv.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	<-done

	snap := metrics.Snapshot()
	if snap[obs.MetricProtocolErrors] < 1 {
		t.Fatalf("protocol_errors = %v, want at least 1 after a malformed packet", snap[obs.MetricProtocolErrors])
	}
}
