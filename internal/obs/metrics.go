package obs

import (
	"sync"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// PromSink is the concrete Observability Sink: a Prometheus registry that
// declares the named counters, gauges, and histogram, and
// exposes them through promhttp via Server in server.go. It mirrors the
// teacher's internal/metrics.go registration style — one counter/gauge
// per concern, a single HistogramVec for latency-shaped observations.
type PromSink struct {
	registry *prometheus.Registry

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]prometheus.Gauge
	histograms map[string]*prometheus.HistogramVec

	mu sync.Mutex
}

// NewPromSink builds a fresh registry with every named metric already
// declared, so CounterInc/GaugeSet/HistogramObserve never need to
// register on the fly.
func NewPromSink(namespace string) *PromSink {
	s := &PromSink{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	counterNames := []string{
		MetricPacketsSent, MetricPacketsReceived, MetricPacketsLost,
		MetricPacketsLate, MetricPacketsReordered, MetricPacketsDuplicate,
		MetricPacketsOverflow, MetricBytesSent, MetricBytesReceived,
		MetricEncodeErrors, MetricDecodeErrors, MetricPLCFramesEmitted,
		MetricResync, MetricSendErrors, MetricPlaybackUnderrun,
		MetricSSRCMismatch, MetricEmptyPayload, MetricProtocolErrors,
	}
	for _, name := range counterNames {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      "karl " + name,
		}, nil)
		s.registry.MustRegister(c)
		s.counters[name] = c
	}

	gaugeNames := []string{GaugeJitterBufferFill, GaugeCurrentJitterMs}
	for _, name := range gaugeNames {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      "karl " + name,
		})
		s.registry.MustRegister(g)
		s.gauges[name] = g
	}

	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      HistogramPacingSkewMs,
		Help:      "karl pacing skew observations in milliseconds",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, nil)
	s.registry.MustRegister(hist)
	s.histograms[HistogramPacingSkewMs] = hist

	return s
}

// CounterInc implements Sink.
func (s *PromSink) CounterInc(name string, delta float64) {
	s.mu.Lock()
	c, ok := s.counters[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	c.WithLabelValues().Add(delta)
}

// GaugeSet implements Sink.
func (s *PromSink) GaugeSet(name string, value float64) {
	s.mu.Lock()
	g, ok := s.gauges[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	g.Set(value)
}

// HistogramObserve implements Sink.
func (s *PromSink) HistogramObserve(name string, value float64) {
	s.mu.Lock()
	h, ok := s.histograms[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	h.WithLabelValues().Observe(value)
}

// Registry exposes the underlying Prometheus registry for Server to serve.
func (s *PromSink) Registry() *prometheus.Registry { return s.registry }

// Snapshot reads back the current counter/gauge values for log summaries
// (the periodic "packets=.. loss=.." line emitted by the sender/receiver
// loops). It deliberately avoids parsing the Prometheus wire format.
func (s *PromSink) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(s.counters)+len(s.gauges))

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, c := range s.counters {
		m := &dto.Metric{}
		if err := c.WithLabelValues().Write(m); err == nil && m.Counter != nil {
			out[name] = m.Counter.GetValue()
		}
	}
	for name, g := range s.gauges {
		m := &dto.Metric{}
		if err := g.Write(m); err == nil && m.Gauge != nil {
			out[name] = m.Gauge.GetValue()
		}
	}
	return out
}
