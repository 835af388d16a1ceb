// Package diagnostics implements an optional, off-by-default raw packet
// capture of the RTP stream to a pcap file, for offline inspection with
// Wireshark. Disabled unless --pcap-out is passed; nothing in the core
// pipeline depends on it.
package diagnostics

import (
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"karl/internal/obs"
)

// Capture writes raw RTP datagrams to a pcap file as they're sent or
// received.
type Capture struct {
	file   *os.File
	writer *pcapgo.Writer
}

// NewCapture creates path and writes the pcap file header.
func NewCapture(path string) (*Capture, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeIO, "diagnostics", "NewCapture")
	}

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, obs.NewError(err, obs.CodeIO, "diagnostics", "NewCapture")
	}

	obs.Infof("📼 packet capture writing to %s", path)
	return &Capture{file: f, writer: w}, nil
}

// WritePacket appends one raw RTP datagram with the current timestamp.
func (c *Capture) WritePacket(data []byte) {
	if c == nil || c.writer == nil {
		return
	}
	err := c.writer.WritePacket(gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
	if err != nil {
		obs.Warnf("packet capture write failed: %v", err)
	}
}

// Close finalizes and closes the pcap file.
func (c *Capture) Close() error {
	if c == nil || c.file == nil {
		return nil
	}
	return c.file.Close()
}
