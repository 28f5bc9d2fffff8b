// Package config provides configuration loading with explicit naming
//
// Available functions:
//
//   LoadFromEnvVarsOnly()                     - Environment variables ONLY
//
//   LoadFromYamlFile(path)                    - YAML file ONLY (no env overrides)
//
//   LoadFromYamlWithEnvOverrides(path)        - YAML base + Environment overrides
//                                               Priority: Env Vars > YAML > Defaults
//
// Command line flags are applied by the caller on top of the loaded config,
// followed by Normalize and Validate.
//
// Environment variables supported:
//
//   QUERY:
//     - TIMESYNC_SERVER, TIMESYNC_TIMEOUT_MS, TIMESYNC_RETRIES
//     - TIMESYNC_TEST_ONLY
//
//   NETWORK:
//     - TIMESYNC_PORT
//     - RATE_LIMIT_ENABLED, RATE_LIMIT_RATE, RATE_LIMIT_BURST
//     - DNS_CACHE_ENABLED, DNS_CACHE_TTL
//
//   LOGGING:
//     - LOG_LEVEL (trace|debug|info|warn|error|fatal|panic)
//     - LOG_FORMAT (json|console), LOG_OUTPUT (stdout|stderr|file)
//     - LOG_FILE_PATH, TIMESYNC_SYSLOG
//
//   METRICS:
//     - METRICS_ENABLED, METRICS_NAMESPACE, METRICS_TEXTFILE
//
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/maximewewer/timesync/internal/ntp"
	"github.com/maximewewer/timesync/pkg/logger"
)

// Config represents the complete application configuration
type Config struct {
	Query   QueryConfig   `yaml:"query"`
	Network NetworkConfig `yaml:"network"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// QueryConfig contains the per-run query settings
type QueryConfig struct {
	Server    string `yaml:"server"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Retries   int    `yaml:"retries"`
	TestOnly  bool   `yaml:"test_only"`
}

// NTP converts to the query input of the ntp package
func (q QueryConfig) NTP() ntp.QueryConfig {
	return ntp.QueryConfig{
		Server:    q.Server,
		TimeoutMS: q.TimeoutMS,
		Retries:   q.Retries,
		TestOnly:  q.TestOnly,
	}
}

// NetworkConfig contains transport settings
type NetworkConfig struct {
	Port      int             `yaml:"port"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	DNSCache  DNSCacheConfig  `yaml:"dns_cache"`
}

// RateLimitConfig contains request pacing configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"`
	Burst   int     `yaml:"burst"`
}

// DNSCacheConfig contains DNS cache configuration
type DNSCacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	EnableFile bool   `yaml:"enable_file"`
	FilePath   string `yaml:"file_path"`
	Syslog     bool   `yaml:"syslog"`
	SyslogTag  string `yaml:"syslog_tag"`
	Verbose    bool   `yaml:"verbose"`
}

// Logger converts to the logger package configuration
func (l LoggingConfig) Logger() logger.Config {
	return logger.Config{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		FilePath:   l.FilePath,
		Component:  "timesync",
		EnableFile: l.EnableFile,
		Syslog:     l.Syslog,
		SyslogTag:  l.SyslogTag,
	}
}

// MetricsConfig contains Prometheus textfile configuration
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Namespace    string `yaml:"namespace"`
	Subsystem    string `yaml:"subsystem"`
	TextfilePath string `yaml:"textfile_path"`
}

// LogFields summarizes the effective settings for the startup event
func (c *Config) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"server":           c.Query.Server,
		"timeout_ms":       c.Query.TimeoutMS,
		"retries":          c.Query.Retries,
		"test_only":        c.Query.TestOnly,
		"port":             c.Network.Port,
		"log_level":        c.Logging.Level,
		"log_output":       c.Logging.Output,
		"log_file":         c.Logging.FilePath,
		"syslog":           c.Logging.Syslog,
		"metrics_enabled":  c.Metrics.Enabled,
		"metrics_textfile": c.Metrics.TextfilePath,
	}
}

// LoadFromYamlFile reads configuration from a YAML file only (no env var overrides)
func LoadFromYamlFile(path string) (*Config, error) {
	cfg, err := readYamlFile(path)
	if err != nil {
		return nil, err
	}

	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration", err)
		return nil, fmt.Errorf("configuration validation failed for %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromYamlWithEnvOverrides loads base config from YAML, then overrides with environment variables
// Priority: Environment Variables > YAML File > Defaults
// A missing file falls back to defaults; an unreadable or invalid one is an error.
func LoadFromYamlWithEnvOverrides(path string) (*Config, error) {
	cfg, err := readYamlFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logger.SafeWarn("config", "Config file not found, using defaults and env vars",
			map[string]interface{}{"path": path})
		cfg = DefaultConfig()
	}

	applyEnvOverrides(cfg)

	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration after env overrides", err)
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFromEnvVarsOnly loads configuration from environment variables only (no YAML file)
// Priority: Environment Variables > Defaults
func LoadFromEnvVarsOnly() (*Config, error) {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration from environment", err)
		return nil, fmt.Errorf("environment configuration validation failed: %w", err)
	}

	return cfg, nil
}

// readYamlFile decodes path over the defaults, so absent keys keep their
// default value, including booleans.
func readYamlFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.SafeError("config", "Failed to read config file", err,
			map[string]interface{}{"path": path})
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		logger.SafeError("config", "Failed to parse config file", err,
			map[string]interface{}{"path": path})
		return nil, fmt.Errorf("failed to parse YAML config file %s: %w", path, err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to an existing config.
// Unparsable values are ignored.
func applyEnvOverrides(cfg *Config) {
	// ---------------------------------------------------------------------------
	// QUERY
	// ---------------------------------------------------------------------------
	if server := os.Getenv("TIMESYNC_SERVER"); server != "" {
		cfg.Query.Server = server
	}
	if timeout := os.Getenv("TIMESYNC_TIMEOUT_MS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			cfg.Query.TimeoutMS = t
		}
	}
	if retries := os.Getenv("TIMESYNC_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			cfg.Query.Retries = r
		}
	}
	if testOnly := os.Getenv("TIMESYNC_TEST_ONLY"); testOnly != "" {
		if b, err := strconv.ParseBool(testOnly); err == nil {
			cfg.Query.TestOnly = b
		}
	}

	// ---------------------------------------------------------------------------
	// NETWORK
	// ---------------------------------------------------------------------------
	if port := os.Getenv("TIMESYNC_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Network.Port = p
		}
	}
	if rateLimitEnabled := os.Getenv("RATE_LIMIT_ENABLED"); rateLimitEnabled != "" {
		if b, err := strconv.ParseBool(rateLimitEnabled); err == nil {
			cfg.Network.RateLimit.Enabled = b
		}
	}
	if rate := os.Getenv("RATE_LIMIT_RATE"); rate != "" {
		if r, err := strconv.ParseFloat(rate, 64); err == nil {
			cfg.Network.RateLimit.Rate = r
		}
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if b, err := strconv.Atoi(burst); err == nil {
			cfg.Network.RateLimit.Burst = b
		}
	}
	if dnsCacheEnabled := os.Getenv("DNS_CACHE_ENABLED"); dnsCacheEnabled != "" {
		if b, err := strconv.ParseBool(dnsCacheEnabled); err == nil {
			cfg.Network.DNSCache.Enabled = b
		}
	}
	if ttl := os.Getenv("DNS_CACHE_TTL"); ttl != "" {
		if t, err := time.ParseDuration(ttl); err == nil {
			cfg.Network.DNSCache.TTL = t
		}
	}

	// ---------------------------------------------------------------------------
	// LOGGING
	// ---------------------------------------------------------------------------
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if output := os.Getenv("LOG_OUTPUT"); output != "" {
		cfg.Logging.Output = output
	}
	if filePath := os.Getenv("LOG_FILE_PATH"); filePath != "" {
		cfg.Logging.FilePath = filePath
	}
	if useSyslog := os.Getenv("TIMESYNC_SYSLOG"); useSyslog != "" {
		if b, err := strconv.ParseBool(useSyslog); err == nil {
			cfg.Logging.Syslog = b
		}
	}

	// ---------------------------------------------------------------------------
	// METRICS
	// ---------------------------------------------------------------------------
	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		if b, err := strconv.ParseBool(metricsEnabled); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if namespace := os.Getenv("METRICS_NAMESPACE"); namespace != "" {
		cfg.Metrics.Namespace = namespace
	}
	if textfile := os.Getenv("METRICS_TEXTFILE"); textfile != "" {
		cfg.Metrics.TextfilePath = textfile
	}
}
