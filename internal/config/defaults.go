package config

import (
	"time"

	"github.com/maximewewer/timesync/internal/ntp"
)

const (
	DefaultServer    = "pool.ntp.org"
	DefaultSyslogTag = "ntp_client"
	DefaultNamespace = "timesync"
)

// ApplyDefaults sets default values for unspecified configuration fields
func ApplyDefaults(cfg *Config) {
	// Query defaults
	if cfg.Query.Server == "" {
		cfg.Query.Server = DefaultServer
	}
	if cfg.Query.TimeoutMS == 0 {
		cfg.Query.TimeoutMS = ntp.DefaultTimeoutMS
	}
	if cfg.Query.Retries == 0 {
		cfg.Query.Retries = ntp.DefaultRetries
	}

	// Network defaults
	if cfg.Network.Port == 0 {
		cfg.Network.Port = ntp.DefaultPort
	}
	if cfg.Network.RateLimit.Rate == 0 {
		cfg.Network.RateLimit.Rate = 10
	}
	if cfg.Network.RateLimit.Burst == 0 {
		cfg.Network.RateLimit.Burst = 1
	}
	if cfg.Network.DNSCache.TTL == 0 {
		cfg.Network.DNSCache.TTL = 1 * time.Minute
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
	if cfg.Logging.SyslogTag == "" {
		cfg.Logging.SyslogTag = DefaultSyslogTag
	}

	// Metrics defaults
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultNamespace
	}
}

// DefaultConfig returns a configuration with all defaults applied
func DefaultConfig() *Config {
	cfg := &Config{}
	// DNS answers are reused across retries unless disabled
	cfg.Network.DNSCache.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
