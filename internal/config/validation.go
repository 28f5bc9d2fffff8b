package config

import (
	"errors"
	"strconv"
)

// Normalize clamps the query bounds and resolves settings that depend on
// each other. It runs after flags and env overrides, before Validate.
func Normalize(cfg *Config) {
	q := cfg.Query.NTP().Normalized()
	cfg.Query.TimeoutMS = q.TimeoutMS
	cfg.Query.Retries = q.Retries

	if cfg.Logging.Verbose {
		cfg.Logging.Level = "debug"
	}

	// never write to syslog in test mode
	if cfg.Query.TestOnly {
		cfg.Logging.Syslog = false
	}

	if cfg.Logging.Output == "file" {
		cfg.Logging.EnableFile = true
	}
}

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if err := validateQuery(&cfg.Query); err != nil {
		return err
	}

	if err := validateNetwork(&cfg.Network); err != nil {
		return err
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	if err := validateMetrics(&cfg.Metrics); err != nil {
		return err
	}

	return nil
}

func validateQuery(cfg *QueryConfig) error {
	if cfg.Server == "" {
		return errors.New("server is required")
	}

	return nil
}

func validateNetwork(cfg *NetworkConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.New("port must be between 1 and 65535, got " + strconv.Itoa(cfg.Port))
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Rate <= 0 {
			return errors.New("rate_limit.rate must be positive")
		}
		if cfg.RateLimit.Burst < 1 {
			return errors.New("rate_limit.burst must be at least 1")
		}
	}

	if cfg.DNSCache.Enabled && cfg.DNSCache.TTL < 0 {
		return errors.New("dns_cache.ttl must not be negative")
	}

	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLevels[cfg.Level] {
		return errors.New("invalid log level (must be trace, debug, info, warn, error, fatal, or panic)")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[cfg.Format] {
		return errors.New("invalid log format (must be json or console)")
	}

	validOutputs := map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
	}

	if !validOutputs[cfg.Output] {
		return errors.New("invalid log output (must be stdout, stderr, or file)")
	}

	if cfg.EnableFile && cfg.FilePath == "" {
		return errors.New("file_path is required when enable_file is true")
	}

	return nil
}

func validateMetrics(cfg *MetricsConfig) error {
	if cfg.Namespace == "" {
		return errors.New("namespace is required")
	}

	if cfg.Enabled && cfg.TextfilePath == "" {
		return errors.New("textfile_path is required when metrics are enabled")
	}

	return nil
}
