// Command receiver drives the receiver-side pipeline: it listens
// for an Opus-over-RTP stream on a fixed UDP port, absorbs jitter, decodes
// with PLC, and writes the recovered audio to a WAV file (or discards it if
// no --output is given), using the same startup/shutdown discipline as
// cmd/sender.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"karl/internal/audio"
	"karl/internal/audioframe"
	"karl/internal/cdr"
	"karl/internal/codec"
	"karl/internal/config"
	"karl/internal/diagnostics"
	"karl/internal/jitter"
	"karl/internal/obs"
	"karl/internal/receiver"
	"karl/internal/registry"
	"karl/internal/transport"
)

// discardSink throws every decoded frame away, for deployments that only
// care about metrics (no --output given).
type discardSink struct{}

func (discardSink) WriteFrame(_ context.Context, _ []int16) error { return nil }

func main() {
	cfg, err := config.ParseReceiverFlags(os.Args[1:])
	if err != nil {
		obs.Errorf("config: %v", err)
		os.Exit(1)
	}
	if cfg.Verbosity > 0 {
		obs.LogLevel = obs.LogLevelDebug
	}

	obs.Infof("🚀 starting receiver on port %d", cfg.Port)

	if err := run(cfg); err != nil {
		obs.Errorf("receiver: %v", err)
		os.Exit(1)
	}
	obs.Infof("✅ receiver finished cleanly")
}

func run(cfg *config.ReceiverConfig) error {
	recv, err := transport.NewUDPReceiver(fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return err
	}
	defer recv.Close()

	decoder, err := codec.NewDecoder()
	if err != nil {
		return err
	}

	var metricsSink obs.Sink = obs.NopSink{}
	var promSink *obs.PromSink
	var metricsServer *obs.Server
	if cfg.MetricsBind != "" {
		promSink = obs.NewPromSink("karl_receiver")
		metricsSink = promSink
		metricsServer = obs.NewServer(promSink, cfg.MetricsBind)
		metricsServer.Start()
		defer metricsServer.Stop()
	}

	if cfg.PcapOut != "" {
		capture, err := diagnostics.NewCapture(cfg.PcapOut)
		if err != nil {
			return err
		}
		defer capture.Close()
		recv.SetCapture(capture)
	}

	var frameSink jitter.FrameSink = discardSink{}
	var wavSink *audio.WavSink
	if cfg.Output != "" {
		wavSink, err = audio.CreateWavSink(cfg.Output, audioframe.SampleRate, 1)
		if err != nil {
			return err
		}
		frameSink = wavSink
	}

	depthFrames := uint32(cfg.BufferDepthMs) / jitter.FrameMs
	jitterCfg := jitter.Config{
		DepthMs:     uint32(cfg.BufferDepthMs),
		MaxCapacity: jitter.OverflowFactor * int(depthFrames),
	}

	var sessionRegistry *registry.SessionRegistry
	sessionID := fmt.Sprintf("receiver-%d", cfg.Port)
	if cfg.RedisAddr != "" {
		sessionRegistry, err = registry.NewSessionRegistry(cfg.RedisAddr, 30*time.Second)
		if err != nil {
			return err
		}
		defer sessionRegistry.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = sessionRegistry.RegisterStream(ctx, sessionID, 0, recv.LocalAddr().String())
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

	pipeline := receiver.New(recv, jitterCfg, decoder, frameSink, metricsSink)

	if cfg.SRTPKey != "" {
		srtpSession, err := newSRTPSession(cfg.SRTPKey, cfg.SRTPSalt)
		if err != nil {
			return err
		}
		pipeline.SetSRTP(srtpSession)
		obs.Infof("🔒 SRTP session initialized, stream decrypted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		obs.Infof("🛑 shutdown signal received")
		cancel()
	}()

	startedAt := time.Now()
	statsDone := make(chan struct{})
	if promSink != nil {
		go runStatsLoop(ctx, promSink, statsDone)
	} else {
		close(statsDone)
	}

	pipeline.Run(ctx)
	<-statsDone

	if wavSink != nil {
		if err := wavSink.Close(); err != nil {
			obs.Warnf("wav: %v", err)
		}
	}

	if sessionRegistry != nil {
		unregisterCtx, unregisterCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := sessionRegistry.Unregister(unregisterCtx, sessionID); err != nil {
			obs.Warnf("registry: %v", err)
		}
		unregisterCancel()
	}

	if cdrSink != nil && promSink != nil {
		snap := promSink.Snapshot()
		rec := cdr.Record{
			SessionID:   sessionID,
			PacketsLost: uint64(snap[obs.MetricPacketsLost]),
			PLCFrames:   uint64(snap[obs.MetricPLCFramesEmitted]),
			StartedAt:   startedAt,
			EndedAt:     time.Now(),
		}
		if err := cdrSink.Insert(rec); err != nil {
			obs.Warnf("cdr: %v", err)
		}
	}

	return nil
}

// runStatsLoop logs a one-line stats summary every 5s for the receiver
// side: loss, PLC, and buffer fill are the numbers that matter for a
// live stream.
func runStatsLoop(ctx context.Context, sink *obs.PromSink, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := sink.Snapshot()
			obs.Infof("📊 received=%.0f lost=%.0f plc=%.0f resync=%.0f jitter_fill=%.0f",
				snap[obs.MetricPacketsReceived], snap[obs.MetricPacketsLost],
				snap[obs.MetricPLCFramesEmitted], snap[obs.MetricResync],
				snap[obs.GaugeJitterBufferFill])
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
