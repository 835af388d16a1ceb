package obs

// Sink is the abstract observability collaborator the core pipeline talks
// to. It declares no transport, formatting, or registry semantics — those
// belong to a concrete sink like the Prometheus one in metrics.go.
type Sink interface {
	CounterInc(name string, delta float64)
	GaugeSet(name string, value float64)
	HistogramObserve(name string, value float64)
}

// NopSink discards every observation. Useful for tests that don't care
// about metrics and don't want to stand up a Prometheus registry.
type NopSink struct{}

func (NopSink) CounterInc(name string, delta float64)       {}
func (NopSink) GaugeSet(name string, value float64)         {}
func (NopSink) HistogramObserve(name string, value float64) {}

// Names for the counters/gauges this system tracks. Concrete sinks use
// these as stable metric identifiers.
const (
	MetricPacketsSent        = "packets_sent"
	MetricPacketsReceived    = "packets_received"
	MetricPacketsLost        = "packets_lost"
	MetricPacketsLate        = "packets_late"
	MetricPacketsReordered   = "packets_reordered"
	MetricPacketsDuplicate   = "packets_duplicate"
	MetricPacketsOverflow    = "packets_overflow"
	MetricBytesSent          = "bytes_sent"
	MetricBytesReceived      = "bytes_received"
	MetricEncodeErrors       = "encode_errors"
	MetricDecodeErrors       = "decode_errors"
	MetricPLCFramesEmitted   = "plc_frames_emitted"
	MetricResync             = "resync"
	MetricSendErrors         = "send_errors"
	MetricPlaybackUnderrun   = "playback_underrun_or_overrun"
	MetricSSRCMismatch       = "ssrc_mismatch"
	MetricEmptyPayload       = "empty_payload"
	MetricProtocolErrors     = "protocol_errors"

	GaugeJitterBufferFill    = "jitter_buffer_fill"
	GaugeCurrentJitterMs     = "current_jitter_estimate_ms"

	HistogramPacingSkewMs = "pacing_skew_ms"
)
