package obs

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes /metrics and /health over HTTP for a PromSink, and runs a
// background goroutine that keeps goroutine-count and memory gauges fresh.
type Server struct {
	sink *PromSink
	http *http.Server

	goroutines prometheus.Gauge
	memBytes   prometheus.Gauge

	stopCollect chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
}

// NewServer wires address to the sink's registry plus a health endpoint.
func NewServer(sink *PromSink, address string) *Server {
	if address == "" {
		address = ":9091"
	}

	goroutines := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "karl_goroutines",
		Help: "current number of goroutines",
	})
	memBytes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "karl_memory_bytes",
		Help: "current heap memory usage in bytes",
	})
	sink.Registry().MustRegister(goroutines, memBytes)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(sink.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		sink: sink,
		http: &http.Server{
			Addr:         address,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		goroutines:  goroutines,
		memBytes:    memBytes,
		stopCollect: make(chan struct{}),
	}
}

// Start begins serving and begins the system-metrics collector goroutine.
// Listen errors other than a clean Shutdown are logged, not returned, since
// the caller has already moved on to the main pipeline loop.
func (s *Server) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		Infof("🔍 starting metrics server on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			Errorf("metrics server error: %v", err)
		}
	}()

	s.wg.Add(1)
	go s.collectSystemMetrics()
}

func (s *Server) collectSystemMetrics() {
	defer s.wg.Done()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	var memStats runtime.MemStats
	for {
		select {
		case <-s.stopCollect:
			return
		case <-ticker.C:
			s.goroutines.Set(float64(runtime.NumGoroutine()))
			runtime.ReadMemStats(&memStats)
			s.memBytes.Set(float64(memStats.Alloc))
		}
	}
}

// Stop shuts the HTTP server down within a 5s grace window and stops the
// system-metrics collector.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.stopCollect)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	Infof("🛑 shutting down metrics server")
	err := s.http.Shutdown(ctx)
	s.wg.Wait()
	return err
}
