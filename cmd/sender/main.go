// Command sender drives the sender-side pipeline: it reads a WAV
// file, normalizes it, encodes it to Opus, and streams it over UDP at a
// steady 20ms cadence, with signal handling that closes a stop channel the
// pipeline polls once per frame, and a bounded shutdown grace period for
// the optional collaborators, scoped to one stream
// instead of a whole media server.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"karl/internal/audio"
	"karl/internal/audioframe"
	"karl/internal/cdr"
	"karl/internal/codec"
	"karl/internal/config"
	"karl/internal/diagnostics"
	"karl/internal/obs"
	"karl/internal/registry"
	"karl/internal/sender"
	"karl/internal/transport"
)

func main() {
	cfg, err := config.ParseSenderFlags(os.Args[1:])
	if err != nil {
		obs.Errorf("config: %v", err)
		os.Exit(1)
	}
	if cfg.Verbosity > 0 {
		obs.LogLevel = obs.LogLevelDebug
	}

	obs.Infof("🚀 starting sender: %s -> %s", cfg.Input, cfg.Remote)

	if err := run(cfg); err != nil {
		obs.Errorf("sender: %v", err)
		os.Exit(1)
	}
	obs.Infof("✅ sender finished cleanly")
}

func run(cfg *config.SenderConfig) error {
	source, err := audio.OpenWavSource(cfg.Input, audioframe.FrameSamples)
	if err != nil {
		return err
	}
	defer source.Close()

	encoder, err := codec.NewEncoder()
	if err != nil {
		return err
	}

	var metricsSink obs.Sink = obs.NopSink{}
	var promSink *obs.PromSink
	var metricsServer *obs.Server
	if cfg.MetricsBind != "" {
		promSink = obs.NewPromSink("karl_sender")
		metricsSink = promSink
		metricsServer = obs.NewServer(promSink, cfg.MetricsBind)
		metricsServer.Start()
		defer metricsServer.Stop()
	}

	udpSender, err := transport.NewUDPSender(cfg.Remote, metricsSink)
	if err != nil {
		return err
	}
	defer udpSender.Close()

	if cfg.PcapOut != "" {
		capture, err := diagnostics.NewCapture(cfg.PcapOut)
		if err != nil {
			return err
		}
		defer capture.Close()
		udpSender.SetCapture(capture)
	}

	ssrc := sender.RandomSSRC()
	obs.Infof("🎙️ stream SSRC=%08x", ssrc)

	var sessionRegistry *registry.SessionRegistry
	sessionID := fmt.Sprintf("%08x", ssrc)
	if cfg.RedisAddr != "" {
		sessionRegistry, err = registry.NewSessionRegistry(cfg.RedisAddr, 30*time.Second)
		if err != nil {
			return err
		}
		defer sessionRegistry.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = sessionRegistry.RegisterStream(ctx, sessionID, ssrc, cfg.Remote)
		cancel()
		if err != nil {
			obs.Warnf("registry: %v", err)
		}
	}

	var cdrSink *cdr.Sink
	if cfg.MySQLDSN != "" {
		cdrSink, err = cdr.NewSink(cfg.MySQLDSN)
		if err != nil {
			return err
		}
		defer cdrSink.Close()
	}

	if cfg.SRTPKey != "" {
		srtpSession, err := newSRTPSession(cfg.SRTPKey, cfg.SRTPSalt)
		if err != nil {
			return err
		}
		udpSender.SetSRTP(srtpSession)
		obs.Infof("🔒 SRTP session initialized, stream encrypted")
	}

	pipeline := sender.New(source, encoder, udpSender, ssrc, metricsSink)

	stopCh := make(chan struct{})
	var stopOnce sync.Once
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		obs.Infof("🛑 shutdown signal received")
		stopOnce.Do(func() { close(stopCh) })
	}()

	startedAt := time.Now()
	statsDone := make(chan struct{})
	if promSink != nil {
		go runStatsLoop(promSink, stopCh, statsDone)
	} else {
		close(statsDone)
	}

	runErr := pipeline.Run(stopCh)
	stopOnce.Do(func() { close(stopCh) })
	<-statsDone

	if sessionRegistry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := sessionRegistry.Unregister(ctx, sessionID); err != nil {
			obs.Warnf("registry: %v", err)
		}
		cancel()
	}

	if cdrSink != nil && promSink != nil {
		snap := promSink.Snapshot()
		rec := cdr.Record{
			SessionID:   sessionID,
			SSRC:        ssrc,
			PacketsSent: uint64(snap[obs.MetricPacketsSent]),
			StartedAt:   startedAt,
			EndedAt:     time.Now(),
		}
		if err := cdrSink.Insert(rec); err != nil {
			obs.Warnf("cdr: %v", err)
		}
	}

	return runErr
}

// runStatsLoop logs a one-line stats summary every 5s: the counters that
// matter for a live stream, until stopCh closes.
func runStatsLoop(sink *obs.PromSink, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			snap := sink.Snapshot()
			obs.Infof("📊 sent=%.0f bytes=%.0f encode_errors=%.0f send_errors=%.0f",
				snap[obs.MetricPacketsSent], snap[obs.MetricBytesSent],
				snap[obs.MetricEncodeErrors], snap[obs.MetricSendErrors])
		}
	}
}

func newSRTPSession(key, salt string) (*transport.SRTPSession, error) {
	keyBytes, err := hex.DecodeString(key)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeConfig, "main", "newSRTPSession")
	}
	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return nil, obs.NewError(err, obs.CodeConfig, "main", "newSRTPSession")
	}
	return transport.NewSRTPSession(keyBytes, saltBytes)
}
