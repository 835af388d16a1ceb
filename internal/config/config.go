// Package config defines the CLI-flag-driven settings for cmd/sender and
// cmd/receiver: a LoadConfig/ValidateConfig shape sourced from stdlib flag
// rather than a JSON file, matching how small CLI surfaces in this
// codebase have always been configured.
package config

import (
	"flag"
	"fmt"

	"karl/internal/obs"
)

// SenderConfig holds cmd/sender's settings.
type SenderConfig struct {
	Input       string
	Remote      string
	IntervalMs  int
	MetricsBind string

	SRTPKey  string
	SRTPSalt string

	RedisAddr string
	MySQLDSN  string
	PcapOut   string

	Verbosity int
}

// ReceiverConfig holds cmd/receiver's settings.
type ReceiverConfig struct {
	Port          int
	BufferDepthMs int
	MetricsBind   string
	Output        string

	SRTPKey  string
	SRTPSalt string

	RedisAddr string
	MySQLDSN  string
	PcapOut   string

	Verbosity int
}

// ParseSenderFlags defines and parses cmd/sender's flag set.
func ParseSenderFlags(args []string) (*SenderConfig, error) {
	fs := flag.NewFlagSet("sender", flag.ContinueOnError)
	cfg := &SenderConfig{}

	fs.StringVar(&cfg.Input, "input", "", "path to a 16-bit PCM WAV file to stream")
	fs.StringVar(&cfg.Remote, "remote", "127.0.0.1:5004", "receiver address (host:port)")
	fs.IntVar(&cfg.IntervalMs, "interval-ms", 20, "pacing interval in milliseconds (validated only; the sender always paces at 20ms)")
	fs.StringVar(&cfg.MetricsBind, "metrics-bind", "", "address to serve /metrics and /health on (disabled if empty)")
	fs.StringVar(&cfg.SRTPKey, "srtp-key", "", "hex-encoded SRTP master key (disabled if empty)")
	fs.StringVar(&cfg.SRTPSalt, "srtp-salt", "", "hex-encoded SRTP master salt")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address for the session registry (disabled if empty)")
	fs.StringVar(&cfg.MySQLDSN, "mysql-dsn", "", "MySQL DSN for the call-detail-record sink (disabled if empty)")
	fs.StringVar(&cfg.PcapOut, "pcap-out", "", "pcap file to capture outgoing RTP to (disabled if empty)")
	fs.IntVar(&cfg.Verbosity, "v", 0, "verbosity: 0=info, 1=debug")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := validateSender(cfg); err != nil {
		return nil, obs.NewError(err, obs.CodeConfig, "config", "ParseSenderFlags")
	}
	return cfg, nil
}

func validateSender(cfg *SenderConfig) error {
	if cfg.Input == "" {
		return fmt.Errorf("--input is required")
	}
	if cfg.Remote == "" {
		return fmt.Errorf("--remote is required")
	}
	if cfg.IntervalMs <= 0 {
		return fmt.Errorf("--interval-ms must be positive, got %d", cfg.IntervalMs)
	}
	if (cfg.SRTPKey == "") != (cfg.SRTPSalt == "") {
		return fmt.Errorf("--srtp-key and --srtp-salt must be set together")
	}
	return nil
}

// ParseReceiverFlags defines and parses cmd/receiver's flag set.
func ParseReceiverFlags(args []string) (*ReceiverConfig, error) {
	fs := flag.NewFlagSet("receiver", flag.ContinueOnError)
	cfg := &ReceiverConfig{}

	fs.IntVar(&cfg.Port, "port", 5004, "UDP port to listen on")
	fs.IntVar(&cfg.BufferDepthMs, "buffer-depth-ms", 60, "jitter buffer target depth in milliseconds")
	fs.StringVar(&cfg.MetricsBind, "metrics-bind", "", "address to serve /metrics and /health on (disabled if empty)")
	fs.StringVar(&cfg.Output, "output", "", "WAV file to write decoded audio to (disabled if empty)")
	fs.StringVar(&cfg.SRTPKey, "srtp-key", "", "hex-encoded SRTP master key (disabled if empty)")
	fs.StringVar(&cfg.SRTPSalt, "srtp-salt", "", "hex-encoded SRTP master salt")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address for the session registry (disabled if empty)")
	fs.StringVar(&cfg.MySQLDSN, "mysql-dsn", "", "MySQL DSN for the call-detail-record sink (disabled if empty)")
	fs.StringVar(&cfg.PcapOut, "pcap-out", "", "pcap file to capture incoming RTP to (disabled if empty)")
	fs.IntVar(&cfg.Verbosity, "v", 0, "verbosity: 0=info, 1=debug")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := validateReceiver(cfg); err != nil {
		return nil, obs.NewError(err, obs.CodeConfig, "config", "ParseReceiverFlags")
	}
	return cfg, nil
}

func validateReceiver(cfg *ReceiverConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.BufferDepthMs < 20 || cfg.BufferDepthMs > 2000 {
		return fmt.Errorf("invalid buffer depth: %d", cfg.BufferDepthMs)
	}
	if (cfg.SRTPKey == "") != (cfg.SRTPSalt == "") {
		return fmt.Errorf("--srtp-key and --srtp-salt must be set together")
	}
	return nil
}
