// Package jitter implements the receiver's reorder queue: a sequence-ordered
// buffer that absorbs network jitter before handing packets to the decoder
// in strict playout order.
package jitter

import (
	"sort"
	"sync"
	"time"

	"karl/internal/obs"
	"karl/internal/rtpcore"
)

// ReorderWindow is the wrapping_diff threshold past which an arriving packet
// is treated as a stream reset rather than an ordinary out-of-order arrival.
const ReorderWindow = 3000

// DefaultDepthMs is the default target buffer depth, 3 frames at 20ms.
const DefaultDepthMs = 60

// FrameMs is the fixed playout frame duration the buffer's depth is
// expressed in multiples of.
const FrameMs = 20

// OverflowFactor bounds MaxCapacity at OverflowFactor x depth-in-frames.
const OverflowFactor = 8

// Packet is a buffered RTP packet awaiting playout.
type Packet struct {
	Sequence  uint16
	Timestamp uint32
	Payload   []byte
}

// Config configures a Buffer.
type Config struct {
	DepthMs     uint32
	MaxCapacity int
}

// DefaultConfig returns the default depth: 60ms, with capacity at 8x that in packets.
func DefaultConfig() Config {
	depthFrames := DefaultDepthMs / FrameMs
	return Config{
		DepthMs:     DefaultDepthMs,
		MaxCapacity: OverflowFactor * int(depthFrames),
	}
}

// Buffer is a sequence-ordered reorder queue with a priming phase. It is
// safe for concurrent use: Insert is called from the ingress goroutine,
// Pop from the playout goroutine, both through a mutex. Hold time per call
// is bounded by binary-search insertion/removal on a small queue.
type Buffer struct {
	cfg Config
	obs obs.Sink

	mu sync.Mutex

	queue []Packet // sorted by sequence, wraparound-aware

	nextExpected uint16
	haveNext     bool
	primed       bool
	firstArrival time.Time
}

// New creates a Buffer. sink may be obs.NopSink{} in tests that don't care
// about counters.
func New(cfg Config, sink obs.Sink) *Buffer {
	if sink == nil {
		sink = obs.NopSink{}
	}
	return &Buffer{cfg: cfg, obs: sink}
}

// Insert applies late/duplicate discard, sequence-sorted insertion,
// resync-on-large-gap, and overflow eviction.
func (b *Buffer) Insert(p Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.haveNext {
		b.nextExpected = p.Sequence
		b.haveNext = true
		b.firstArrival = time.Now()
	}

	d := rtpcore.SeqDiff(p.Sequence, b.nextExpected)

	if d > ReorderWindow || d < -ReorderWindow {
		b.resync(p)
		return
	}

	// Before priming no slot has been played, so an arrival below the
	// cursor is early reordering rather than a late packet: move the
	// cursor back to it.
	if d < 0 && !b.primed {
		b.nextExpected = p.Sequence
		d = 0
	}

	if d < 0 {
		b.obs.CounterInc(obs.MetricPacketsLate, 1)
		return
	}

	for _, existing := range b.queue {
		if existing.Sequence == p.Sequence {
			b.obs.CounterInc(obs.MetricPacketsDuplicate, 1)
			return
		}
	}

	if d > 0 && len(b.queue) > 0 {
		tail := b.queue[len(b.queue)-1]
		if rtpcore.SeqDiff(p.Sequence, tail.Sequence) < 0 {
			b.obs.CounterInc(obs.MetricPacketsReordered, 1)
		}
	}

	pos := sort.Search(len(b.queue), func(i int) bool {
		return rtpcore.SeqDiff(b.queue[i].Sequence, p.Sequence) >= 0
	})
	b.queue = append(b.queue, Packet{})
	copy(b.queue[pos+1:], b.queue[pos:])
	b.queue[pos] = p

	if len(b.queue) > b.cfg.MaxCapacity {
		b.evictOverflow()
	}

	b.obs.GaugeSet(obs.GaugeJitterBufferFill, float64(len(b.queue)))
}

// resync flushes the buffer and restarts priming from p, for a packet more
// than ReorderWindow away from nextExpected in either direction.
func (b *Buffer) resync(p Packet) {
	b.queue = b.queue[:0]
	b.nextExpected = p.Sequence
	b.haveNext = true
	b.primed = false
	b.firstArrival = time.Now()
	b.queue = append(b.queue, p)
	b.obs.CounterInc(obs.MetricResync, 1)
	b.obs.GaugeSet(obs.GaugeJitterBufferFill, float64(len(b.queue)))
}

// evictOverflow drops the lowest-sequence packet in the queue (the head,
// since the queue is sorted), matching "drop the oldest" overflow policy.
func (b *Buffer) evictOverflow() {
	b.queue = b.queue[1:]
	b.obs.CounterInc(obs.MetricPacketsOverflow, 1)
}

// maybePrime transitions primed to true once the fill or elapsed-time
// condition is met. Caller holds the lock.
func (b *Buffer) maybePrime() {
	if b.primed || !b.haveNext {
		return
	}
	targetFrames := int(b.cfg.DepthMs / FrameMs)
	if len(b.queue) >= targetFrames {
		b.primed = true
		return
	}
	if !b.firstArrival.IsZero() && time.Since(b.firstArrival) >= time.Duration(b.cfg.DepthMs)*time.Millisecond {
		b.primed = true
	}
}

// Pop implements the playout-tick contract. Before priming it
// returns (nil, false) without touching nextExpected. Once primed it
// always advances nextExpected by exactly one slot, whether or not a
// packet was available, so a downstream caller always gets something to
// play (decoded audio or a concealment frame) on a fixed clock.
func (b *Buffer) Pop() (pkt *Packet, primed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybePrime()
	if !b.primed {
		return nil, false
	}

	if len(b.queue) > 0 && b.queue[0].Sequence == b.nextExpected {
		p := b.queue[0]
		b.queue = b.queue[1:]
		b.nextExpected++
		b.obs.GaugeSet(obs.GaugeJitterBufferFill, float64(len(b.queue)))
		return &p, true
	}

	b.nextExpected++
	b.obs.CounterInc(obs.MetricPacketsLost, 1)
	return nil, true
}

// Fill returns the current number of buffered packets, for diagnostics.
func (b *Buffer) Fill() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Primed reports whether the buffer has completed priming.
func (b *Buffer) Primed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.primed
}
