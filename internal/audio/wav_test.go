package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWavWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")

	sink, err := CreateWavSink(path, 16000, 1)
	if err != nil {
		t.Fatalf("CreateWavSink: %v", err)
	}

	frame := make([]int16, 320)
	for i := range frame {
		frame[i] = int16(i)
	}
	if err := sink.WriteFrame(context.Background(), frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	src, err := OpenWavSource(path, 320)
	if err != nil {
		t.Fatalf("OpenWavSource: %v", err)
	}
	defer src.Close()

	block, err := src.ReadBlock()
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if block.SampleRate != 16000 || block.Channels != 1 {
		t.Fatalf("got rate=%d channels=%d, want 16000/1", block.SampleRate, block.Channels)
	}
	if len(block.Samples) != 320 {
		t.Fatalf("got %d samples, want 320", len(block.Samples))
	}
	for i, s := range block.Samples {
		if s != int16(i) {
			t.Fatalf("sample[%d] = %d, want %d", i, s, i)
		}
	}

	_, err = src.ReadBlock()
	if err == nil {
		t.Fatal("expected EOF after one frame")
	}
}

func TestWavSourceRejectsNonWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(path, []byte("not a wav file at all"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := OpenWavSource(path, 320)
	if err == nil {
		t.Fatal("expected error opening a non-WAV file")
	}
}
