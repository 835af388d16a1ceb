// Package transport implements the UDP edges of the pipeline: a
// transmitter for the sender side and a receiver for the ingress side,
// each bound to a single dedicated stream per socket instead of a shared
// multi-destination relay.
package transport

import (
	"context"
	"net"
	"time"

	"karl/internal/diagnostics"
	"karl/internal/obs"
	"karl/internal/rtpcore"
)

// MaxDatagramSize bounds a single UDP read, matching MTU-sized RTP packets.
const MaxDatagramSize = 1500

// recvTimeout is how long Receive blocks before returning to let the
// caller observe cancellation.
const recvTimeout = 100 * time.Millisecond

// UDPSender transmits serialized RTP packets to a fixed remote address.
type UDPSender struct {
	conn       *net.UDPConn
	remoteAddr *net.UDPAddr
	obs        obs.Sink
	capture    *diagnostics.Capture
	srtp       *SRTPSession
}

// SetCapture attaches an optional pcap capture; every datagram this sender
// transmits is also mirrored to it. Passing nil disables capture again.
func (s *UDPSender) SetCapture(c *diagnostics.Capture) {
	s.capture = c
}

// SetSRTP attaches an optional SRTP session; when set, Send encrypts every
// packet before it reaches the wire. Passing nil disables encryption again.
func (s *UDPSender) SetSRTP(session *SRTPSession) {
	s.srtp = session
}

// NewUDPSender binds an ephemeral local port and targets remoteAddr.
func NewUDPSender(remoteAddr string, sink obs.Sink) (*UDPSender, error) {
	if sink == nil {
		sink = obs.NopSink{}
	}
	addr, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeConfig, "transport", "NewUDPSender")
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, obs.NewError(err, obs.CodeIO, "transport", "NewUDPSender")
	}
	return &UDPSender{conn: conn, remoteAddr: addr, obs: sink}, nil
}

// Send transmits data to the configured remote address. If an SRTP session
// is attached, data is encrypted first and the ciphertext goes on the wire.
// Transient would-block errors get a single bounded retry (≤1ms); other
// errors are counted as send_errors and returned.
func (s *UDPSender) Send(data []byte) error {
	if s.srtp != nil {
		pkt, err := rtpcore.Parse(data)
		if err != nil {
			s.obs.CounterInc(obs.MetricSendErrors, 1)
			return err
		}
		data, err = s.srtp.Encrypt(pkt)
		if err != nil {
			s.obs.CounterInc(obs.MetricSendErrors, 1)
			return err
		}
	}

	_, err := s.conn.WriteToUDP(data, s.remoteAddr)
	if err == nil {
		s.obs.CounterInc(obs.MetricBytesSent, float64(len(data)))
		s.capture.WritePacket(data)
		return nil
	}

	if isTemporary(err) {
		time.Sleep(time.Millisecond)
		_, err = s.conn.WriteToUDP(data, s.remoteAddr)
		if err == nil {
			s.obs.CounterInc(obs.MetricBytesSent, float64(len(data)))
			s.capture.WritePacket(data)
			return nil
		}
	}

	s.obs.CounterInc(obs.MetricSendErrors, 1)
	return obs.NewError(err, obs.CodeIO, "transport", "Send")
}

// LocalAddr returns the sender's bound local address, useful for tests that
// want to know which ephemeral port got chosen.
func (s *UDPSender) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close releases the socket.
func (s *UDPSender) Close() error { return s.conn.Close() }

func isTemporary(err error) bool {
	type temporary interface{ Temporary() bool }
	if t, ok := err.(temporary); ok {
		return t.Temporary()
	}
	return false
}

// UDPReceiver listens for datagrams on a fixed local port.
type UDPReceiver struct {
	conn    *net.UDPConn
	buf     []byte
	capture *diagnostics.Capture
}

// SetCapture attaches an optional pcap capture; every datagram this receiver
// reads is also mirrored to it. Passing nil disables capture again.
func (r *UDPReceiver) SetCapture(c *diagnostics.Capture) {
	r.capture = c
}

// NewUDPReceiver binds to the given local address (":<port>" form).
func NewUDPReceiver(localAddr string) (*UDPReceiver, error) {
	addr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeConfig, "transport", "NewUDPReceiver")
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeIO, "transport", "NewUDPReceiver")
	}
	return &UDPReceiver{conn: conn, buf: make([]byte, MaxDatagramSize)}, nil
}

// LocalAddr returns the bound local address (useful when port 0 was
// requested and the OS picked one).
func (r *UDPReceiver) LocalAddr() net.Addr { return r.conn.LocalAddr() }

// Receive blocks for up to recvTimeout waiting for one datagram. It returns
// (nil, nil) on a read timeout so Run can check ctx and loop again instead
// of blocking forever past a shutdown signal.
func (r *UDPReceiver) Receive(ctx context.Context) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := r.conn.SetReadDeadline(time.Now().Add(recvTimeout)); err != nil {
		return nil, obs.NewError(err, obs.CodeIO, "transport", "Receive")
	}

	n, err := r.conn.Read(r.buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, obs.NewError(err, obs.CodeIO, "transport", "Receive")
	}

	out := make([]byte, n)
	copy(out, r.buf[:n])
	r.capture.WritePacket(out)
	return out, nil
}

// Close releases the socket, unblocking any in-flight Receive call.
func (r *UDPReceiver) Close() error { return r.conn.Close() }
