package jitter

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeDecoder struct {
	decodeErr error
	plcCalls  int
}

func (f *fakeDecoder) Decode(payload []byte) ([]int16, error) {
	if f.decodeErr != nil {
		return nil, f.decodeErr
	}
	return make([]int16, FrameSamples), nil
}

func (f *fakeDecoder) DecodePLC() ([]int16, error) {
	f.plcCalls++
	return make([]int16, FrameSamples), nil
}

type fakeSink struct {
	mu     sync.Mutex
	frames [][]int16
}

func (f *fakeSink) WriteFrame(ctx context.Context, samples []int16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]int16, len(samples))
	copy(cp, samples)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestTickBeforePrimingWritesSilence(t *testing.T) {
	b := newTestBuffer(60)
	dec := &fakeDecoder{}
	sink := &fakeSink{}
	c := NewPlayoutController(b, dec, sink, nil)

	c.tick()

	if sink.count() != 1 {
		t.Fatalf("expected 1 frame written, got %d", sink.count())
	}
	if dec.plcCalls != 0 {
		t.Fatalf("decoder should not be invoked before priming, plcCalls=%d", dec.plcCalls)
	}
}

func TestTickMissInvokesPLC(t *testing.T) {
	b := newTestBuffer(60)
	b.Insert(Packet{Sequence: 0})
	b.Insert(Packet{Sequence: 1})
	b.Insert(Packet{Sequence: 2})

	dec := &fakeDecoder{}
	sink := &fakeSink{}
	c := NewPlayoutController(b, dec, sink, nil)

	c.tick() // seq 0, hit
	c.tick() // seq 1, hit
	c.tick() // seq 2, hit
	c.tick() // seq 3 missing -> PLC

	if dec.plcCalls != 1 {
		t.Fatalf("expected 1 PLC call for missing packet, got %d", dec.plcCalls)
	}
	if sink.count() != 4 {
		t.Fatalf("expected 4 frames written, got %d", sink.count())
	}
}

func TestTickDecodeErrorFallsBackToPLC(t *testing.T) {
	b := newTestBuffer(60)
	b.Insert(Packet{Sequence: 0})
	b.Insert(Packet{Sequence: 1})
	b.Insert(Packet{Sequence: 2})

	dec := &fakeDecoder{decodeErr: errors.New("bad opus frame")}
	sink := &fakeSink{}
	c := NewPlayoutController(b, dec, sink, nil)

	c.tick()

	if dec.plcCalls != 1 {
		t.Fatalf("expected decode error to fall back to PLC, plcCalls=%d", dec.plcCalls)
	}
	if sink.count() != 1 {
		t.Fatalf("expected 1 frame written, got %d", sink.count())
	}
}
