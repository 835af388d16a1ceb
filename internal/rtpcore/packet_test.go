package rtpcore

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	cases := []Packet{
		{Sequence: 0, Timestamp: 0, SSRC: 0, Payload: nil},
		{Sequence: 100, Timestamp: 32000, SSRC: 0x12345678, Payload: []byte{1, 2, 3, 4}},
		{Sequence: 65535, Timestamp: 0xFFFFFFFF, SSRC: 0xAABBCCDD, Payload: []byte{5, 6, 7, 8}},
	}

	for _, p := range cases {
		data, err := Serialize(p)
		if err != nil {
			t.Fatalf("serialize failed: %v", err)
		}

		got, err := Parse(data)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}

		if got.Sequence != p.Sequence || got.Timestamp != p.Timestamp || got.SSRC != p.SSRC {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, p)
		}
		if !bytes.Equal(got.Payload, p.Payload) {
			t.Errorf("payload mismatch: got %v, want %v", got.Payload, p.Payload)
		}
	}
}

func TestSerializeParseRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		payload := make([]byte, rng.Intn(200))
		rng.Read(payload)
		p := Packet{
			Sequence:  uint16(rng.Uint32()),
			Timestamp: rng.Uint32(),
			SSRC:      rng.Uint32(),
			Payload:   payload,
		}

		data, err := Serialize(p)
		if err != nil {
			t.Fatalf("serialize failed: %v", err)
		}
		got, err := Parse(data)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if got.Sequence != p.Sequence || got.Timestamp != p.Timestamp || got.SSRC != p.SSRC || !bytes.Equal(got.Payload, p.Payload) {
			t.Fatalf("round trip mismatch at iteration %d: got %+v, want %+v", i, got, p)
		}
	}
}

func TestSerializeHeaderBytes(t *testing.T) {
	p := Packet{Sequence: 100, Timestamp: 32000, SSRC: 0x12345678, Payload: []byte{1, 2, 3, 4}}
	data, err := Serialize(p)
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	if data[0] != 0x80 {
		t.Errorf("byte 0 = 0x%02X, want 0x80", data[0])
	}
	if data[1] != PayloadTypeOpus {
		t.Errorf("byte 1 = %d, want %d", data[1], PayloadTypeOpus)
	}
}

func TestSerializePayloadTooLarge(t *testing.T) {
	p := Packet{Payload: make([]byte, MaxPayloadSize+1)}
	_, err := Serialize(p)
	if err == nil {
		t.Fatal("expected error for oversized payload")
	}
	var rtpErr *Error
	if !errorsAs(err, &rtpErr) || rtpErr.Kind != KindPayloadTooLarge {
		t.Errorf("expected KindPayloadTooLarge, got %v", err)
	}
}

func TestParseTooShort(t *testing.T) {
	_, err := Parse([]byte{0, 1, 2})
	assertKind(t, err, KindTooShort)
}

func TestParseUnsupportedVersion(t *testing.T) {
	data := make([]byte, 12)
	data[0] = 1 << 6 // version 1
	_, err := Parse(data)
	assertKind(t, err, KindUnsupportedVersion)
}

func TestParseUnsupportedHeaderPadding(t *testing.T) {
	data := make([]byte, 12)
	data[0] = 0x80 | 0x20 // version 2 + padding bit
	_, err := Parse(data)
	assertKind(t, err, KindUnsupportedHeader)
}

func TestParseUnsupportedHeaderExtension(t *testing.T) {
	data := make([]byte, 12)
	data[0] = 0x80 | 0x10
	_, err := Parse(data)
	assertKind(t, err, KindUnsupportedHeader)
}

func TestParseUnsupportedHeaderCSRC(t *testing.T) {
	data := make([]byte, 12)
	data[0] = 0x80 | 0x03
	_, err := Parse(data)
	assertKind(t, err, KindUnsupportedHeader)
}

func TestSeqDiffWraparound(t *testing.T) {
	if d := SeqDiff(0, 65535); d != 1 {
		t.Errorf("SeqDiff(0, 65535) = %d, want 1", d)
	}
	if d := SeqDiff(65535, 0); d != -1 {
		t.Errorf("SeqDiff(65535, 0) = %d, want -1", d)
	}
	if d := SeqDiff(100, 100); d != 0 {
		t.Errorf("SeqDiff(100, 100) = %d, want 0", d)
	}
	if d := SeqDiff(50, 40000); d <= 0 {
		t.Errorf("SeqDiff(50, 40000) = %d, want positive (resync range)", d)
	}
}

func assertKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	var rtpErr *Error
	if !errorsAs(err, &rtpErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if rtpErr.Kind != want {
		t.Errorf("got kind %v, want %v", rtpErr.Kind, want)
	}
}

func errorsAs(err error, target **Error) bool {
	if e, ok := err.(*Error); ok {
		*target = e
		return true
	}
	return false
}
