package transport

import (
	"github.com/pion/rtp"
	"github.com/pion/srtp/v2"

	"karl/internal/obs"
	"karl/internal/rtpcore"
)

// SRTP encryption is explicitly out of scope for the core pipeline. This
// wrapper exists as an optional, off-by-default transport decorator for
// deployments that want it anyway — nothing in the core calls it unless a
// CLI flag enables it.

// SRTPSession encrypts/decrypts RTP packets using a fixed key/salt pair,
// returning newly allocated buffers.
type SRTPSession struct {
	ctx *srtp.Context
}

// NewSRTPSession creates an AES-CM-128/HMAC-SHA1-80 SRTP context.
func NewSRTPSession(masterKey, masterSalt []byte) (*SRTPSession, error) {
	ctx, err := srtp.CreateContext(masterKey, masterSalt, srtp.ProtectionProfileAes128CmHmacSha1_80)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeConfig, "transport", "NewSRTPSession")
	}
	return &SRTPSession{ctx: ctx}, nil
}

// Encrypt takes a parsed rtpcore.Packet and returns an SRTP-protected wire
// buffer ready for UDPSender.Send.
func (s *SRTPSession) Encrypt(p rtpcore.Packet) ([]byte, error) {
	header := &rtp.Header{
		Version:        2,
		PayloadType:    rtpcore.PayloadTypeOpus,
		SequenceNumber: p.Sequence,
		Timestamp:      p.Timestamp,
		SSRC:           p.SSRC,
	}
	out, err := s.ctx.EncryptRTP(nil, p.Payload, header)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeProtocol, "transport", "Encrypt")
	}
	return out, nil
}

// Decrypt reverses Encrypt: given a raw SRTP datagram, it returns the
// decrypted RTP payload and the cleartext header fields.
func (s *SRTPSession) Decrypt(data []byte) (rtpcore.Packet, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		return rtpcore.Packet{}, obs.NewError(err, obs.CodeProtocol, "transport", "Decrypt")
	}

	decrypted, err := s.ctx.DecryptRTP(nil, data, &pkt.Header)
	if err != nil {
		return rtpcore.Packet{}, obs.NewError(err, obs.CodeProtocol, "transport", "Decrypt")
	}

	var plainPkt rtp.Packet
	if err := plainPkt.Unmarshal(decrypted); err != nil {
		return rtpcore.Packet{}, obs.NewError(err, obs.CodeProtocol, "transport", "Decrypt")
	}

	return rtpcore.Packet{
		Sequence:  plainPkt.SequenceNumber,
		Timestamp: plainPkt.Timestamp,
		SSRC:      plainPkt.SSRC,
		Payload:   plainPkt.Payload,
	}, nil
}
