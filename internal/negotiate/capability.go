// Package negotiate describes the Opus-over-RTP media capability this
// system advertises, using pion/webrtc's MIME-type and codec-capability
// constants as the vocabulary rather than inventing a new one. Nothing in
// the core pipeline is WebRTC — NAT traversal and full ICE/DTLS are out of
// scope entirely — but the capability descriptor is useful for logging
// and for interop diagnostics against a peer that does speak SDP.
package negotiate

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

// Capability describes the one codec this system ever sends or expects:
// Opus, mono, 48kHz clock, dynamic payload type 111.
type Capability struct {
	MimeType    string
	ClockRate   uint32
	Channels    uint16
	PayloadType uint8
}

// OpusCapability returns the fixed capability this system negotiates.
// PayloadType matches rtpcore.PayloadTypeOpus; it's repeated here as a
// literal rather than imported to keep this package independent of the
// core wire codec.
func OpusCapability() Capability {
	return Capability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   48000,
		Channels:    1,
		PayloadType: 111,
	}
}

// RTPCodecCapability converts to pion/webrtc's capability struct, for
// code paths that build an SDP offer/answer against this stream.
func (c Capability) RTPCodecCapability() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{
		MimeType:  c.MimeType,
		ClockRate: c.ClockRate,
		Channels:  c.Channels,
	}
}

// String renders the capability the way an SDP "a=rtpmap" line would.
func (c Capability) String() string {
	return fmt.Sprintf("%d %s/%d/%d", c.PayloadType, trimMimePrefix(c.MimeType), c.ClockRate, c.Channels)
}

func trimMimePrefix(mimeType string) string {
	for i := len(mimeType) - 1; i >= 0; i-- {
		if mimeType[i] == '/' {
			return mimeType[i+1:]
		}
	}
	return mimeType
}
