package sender

import (
	"io"
	"testing"

	"karl/internal/audio"
	"karl/internal/audioframe"
)

// TestNextFrameQueuesAllFramesFromOneBlock exercises an 8kHz source: one
// 320-sample block upsamples to 640 samples at the pipeline's native
// 16kHz, which is exactly two 320-sample frames. Both must come back out
// of nextFrame, one per call, instead of the second being discarded.
func TestNextFrameQueuesAllFramesFromOneBlock(t *testing.T) {
	src := audio.NewSilenceSource(8000, 1, 320, 1)
	p := &Pipeline{source: src, framer: &audioframe.Framer{}}

	frame1, ok, err := p.nextFrame()
	if err != nil {
		t.Fatalf("nextFrame: %v", err)
	}
	if !ok {
		t.Fatal("nextFrame: ok = false on first call, want true")
	}
	if len(frame1) != audioframe.FrameSamples {
		t.Fatalf("frame1 length = %d, want %d", len(frame1), audioframe.FrameSamples)
	}

	frame2, ok, err := p.nextFrame()
	if err != nil {
		t.Fatalf("nextFrame: %v", err)
	}
	if !ok {
		t.Fatal("nextFrame: ok = false on second call, want true — second frame from the same block was dropped")
	}
	if len(frame2) != audioframe.FrameSamples {
		t.Fatalf("frame2 length = %d, want %d", len(frame2), audioframe.FrameSamples)
	}

	_, ok, err = p.nextFrame()
	if err != nil {
		t.Fatalf("nextFrame: %v", err)
	}
	if ok {
		t.Fatal("nextFrame: ok = true after source exhausted, want false")
	}
}

// TestNextFrameDrainsPendingBeforeReadingSource checks that once pending
// frames are queued, nextFrame hands them out before calling ReadBlock
// again, using a source that errors on any call past the first.
func TestNextFrameDrainsPendingBeforeReadingSource(t *testing.T) {
	src := &onceSource{blockSamples: 320, sampleRate: 8000}
	p := &Pipeline{source: src, framer: &audioframe.Framer{}}

	for i := 0; i < 2; i++ {
		if _, ok, err := p.nextFrame(); err != nil || !ok {
			t.Fatalf("nextFrame #%d: ok=%v err=%v", i, ok, err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("ReadBlock called %d times to produce 2 queued frames, want 1", src.calls)
	}

	if _, _, err := p.nextFrame(); err != nil {
		t.Fatalf("nextFrame after pending drained: %v", err)
	}
}

// onceSource yields exactly one block, then io.EOF on every subsequent
// call, counting every ReadBlock call in calls.
type onceSource struct {
	blockSamples int
	sampleRate   int
	calls        int
}

func (s *onceSource) ReadBlock() (audio.RawBlock, error) {
	s.calls++
	if s.calls > 1 {
		return audio.RawBlock{}, io.EOF
	}
	return audio.RawBlock{
		Samples:    make([]int16, s.blockSamples),
		SampleRate: s.sampleRate,
		Channels:   1,
	}, nil
}
