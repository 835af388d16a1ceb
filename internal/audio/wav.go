package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"karl/internal/jitter"
	"karl/internal/obs"
)

// WAV file I/O is hand-rolled against encoding/binary: no third-party WAV
// library appears anywhere in the dependency pack, and the format itself
// (a RIFF/WAVE container with a handful of fixed-width fields) doesn't
// warrant pulling one in just for this. Only the canonical 16-bit PCM
// variant is supported, matching the original prototype's "native path".

const (
	wavHeaderSize = 44
	bitsPerSample = 16
)

// WavSource reads 16-bit PCM samples from a RIFF/WAVE file in fixed-size
// blocks, implementing Source.
type WavSource struct {
	f            *os.File
	sampleRate   int
	channels     int
	blockSamples int // per channel
	dataRemain   int64
}

// OpenWavSource opens path and validates it is 16-bit PCM WAV.
func OpenWavSource(path string, blockSamplesPerChannel int) (*WavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeIO, "audio", "OpenWavSource")
	}

	sampleRate, channels, dataSize, err := readWavHeader(f)
	if err != nil {
		f.Close()
		return nil, obs.NewError(err, obs.CodeIO, "audio", "OpenWavSource")
	}

	return &WavSource{
		f:            f,
		sampleRate:   sampleRate,
		channels:     channels,
		blockSamples: blockSamplesPerChannel,
		dataRemain:   dataSize,
	}, nil
}

// ReadBlock implements Source.
func (w *WavSource) ReadBlock() (RawBlock, error) {
	if w.dataRemain <= 0 {
		return RawBlock{}, io.EOF
	}

	want := w.blockSamples * w.channels * 2
	if int64(want) > w.dataRemain {
		want = int(w.dataRemain)
	}

	buf := make([]byte, want)
	n, err := io.ReadFull(w.f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return RawBlock{}, obs.NewError(err, obs.CodeIO, "audio", "ReadBlock")
	}
	buf = buf[:n]
	w.dataRemain -= int64(n)

	samples := make([]int16, n/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}

	return RawBlock{Samples: samples, SampleRate: w.sampleRate, Channels: w.channels}, nil
}

// Close releases the underlying file handle.
func (w *WavSource) Close() error { return w.f.Close() }

// readWavHeader parses a canonical RIFF/WAVE header and positions f at the
// start of the data chunk. Returns sampleRate, channels, and data size.
func readWavHeader(f *os.File) (sampleRate, channels int, dataSize int64, err error) {
	hdr := make([]byte, wavHeaderSize)
	if _, err = io.ReadFull(f, hdr); err != nil {
		return 0, 0, 0, fmt.Errorf("read WAV header: %w", err)
	}

	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return 0, 0, 0, fmt.Errorf("not a RIFF/WAVE file")
	}
	if string(hdr[12:16]) != "fmt " {
		return 0, 0, 0, fmt.Errorf("unsupported WAV layout: missing fmt chunk")
	}

	audioFormat := binary.LittleEndian.Uint16(hdr[20:22])
	if audioFormat != 1 {
		return 0, 0, 0, fmt.Errorf("unsupported WAV audio format %d: only PCM (1) is supported", audioFormat)
	}

	channels = int(binary.LittleEndian.Uint16(hdr[22:24]))
	sampleRate = int(binary.LittleEndian.Uint32(hdr[24:28]))
	bits := binary.LittleEndian.Uint16(hdr[34:36])
	if bits != bitsPerSample {
		return 0, 0, 0, fmt.Errorf("unsupported WAV bit depth %d: only 16-bit PCM is supported", bits)
	}

	if string(hdr[36:40]) != "data" {
		return 0, 0, 0, fmt.Errorf("unsupported WAV layout: missing data chunk immediately after fmt")
	}
	dataSize = int64(binary.LittleEndian.Uint32(hdr[40:44]))

	return sampleRate, channels, dataSize, nil
}

// WavSink writes a stream of 16kHz mono 320-sample frames to a RIFF/WAVE
// file, patching the header's size fields on Close.
type WavSink struct {
	f          *os.File
	sampleRate int
	channels   int
	written    int64
}

// CreateWavSink opens path for writing and reserves space for the header.
func CreateWavSink(path string, sampleRate, channels int) (*WavSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeIO, "audio", "CreateWavSink")
	}
	if _, err := f.Write(make([]byte, wavHeaderSize)); err != nil {
		f.Close()
		return nil, obs.NewError(err, obs.CodeIO, "audio", "CreateWavSink")
	}
	return &WavSink{f: f, sampleRate: sampleRate, channels: channels}, nil
}

// WriteFrame implements jitter.FrameSink.
func (w *WavSink) WriteFrame(_ context.Context, samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	n, err := w.f.Write(buf)
	w.written += int64(n)
	if err != nil {
		return obs.NewError(err, obs.CodeIO, "audio", "WriteFrame")
	}
	return nil
}

// Close finalizes the RIFF header with the actual data size and closes the
// file.
func (w *WavSink) Close() error {
	defer w.f.Close()

	dataSize := uint32(w.written)
	riffSize := dataSize + wavHeaderSize - 8

	hdr := make([]byte, wavHeaderSize)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], riffSize)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(w.sampleRate))
	byteRate := uint32(w.sampleRate * w.channels * bitsPerSample / 8)
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	blockAlign := uint16(w.channels * bitsPerSample / 8)
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataSize)

	if _, err := w.f.WriteAt(hdr, 0); err != nil {
		return obs.NewError(err, obs.CodeIO, "audio", "Close")
	}
	return nil
}

var _ jitter.FrameSink = (*WavSink)(nil)
