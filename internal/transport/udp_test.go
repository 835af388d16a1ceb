package transport

import (
	"context"
	"testing"
	"time"
)

func TestUDPSendReceiveLoopback(t *testing.T) {
	recv, err := NewUDPReceiver("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDPReceiver: %v", err)
	}
	defer recv.Close()

	send, err := NewUDPSender(recv.LocalAddr().String(), nil)
	if err != nil {
		t.Fatalf("NewUDPSender: %v", err)
	}
	defer send.Close()

	payload := []byte("hello rtp")
	if err := send.Send(payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []byte
	for {
		got, err = recv.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if got != nil {
			break
		}
	}

	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestUDPReceiveTimeoutReturnsNilNil(t *testing.T) {
	recv, err := NewUDPReceiver("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDPReceiver: %v", err)
	}
	defer recv.Close()

	ctx := context.Background()
	got, err := recv.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil on timeout with no traffic, got %v", got)
	}
}
