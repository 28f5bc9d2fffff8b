package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maximewewer/timesync/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envKeys lists every variable read by applyEnvOverrides
var envKeys = []string{
	"TIMESYNC_SERVER", "TIMESYNC_TIMEOUT_MS", "TIMESYNC_RETRIES", "TIMESYNC_TEST_ONLY",
	"TIMESYNC_PORT", "TIMESYNC_SYSLOG",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_RATE", "RATE_LIMIT_BURST",
	"DNS_CACHE_ENABLED", "DNS_CACHE_TTL",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT", "LOG_FILE_PATH",
	"METRICS_ENABLED", "METRICS_NAMESPACE", "METRICS_TEXTFILE",
}

// clearEnv blanks every known variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromYamlFile_Success(t *testing.T) {
	path := writeConfig(t, `
query:
  server: "time.cloudflare.com"
  timeout_ms: 1500
  retries: 5
  test_only: true

network:
  port: 1123
  rate_limit:
    enabled: true
    rate: 2.5
    burst: 2
  dns_cache:
    enabled: false
    ttl: 30s

logging:
  level: "warn"
  format: "json"
  syslog: true

metrics:
  enabled: true
  namespace: "clock"
  textfile_path: "/var/lib/node_exporter/timesync.prom"
`)

	cfg, err := LoadFromYamlFile(path)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "time.cloudflare.com", cfg.Query.Server)
	assert.Equal(t, 1500, cfg.Query.TimeoutMS)
	assert.Equal(t, 5, cfg.Query.Retries)
	assert.True(t, cfg.Query.TestOnly)
	assert.Equal(t, 1123, cfg.Network.Port)
	assert.True(t, cfg.Network.RateLimit.Enabled)
	assert.Equal(t, 2.5, cfg.Network.RateLimit.Rate)
	assert.Equal(t, 2, cfg.Network.RateLimit.Burst)
	assert.False(t, cfg.Network.DNSCache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Network.DNSCache.TTL)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	// test mode turns syslog off
	assert.False(t, cfg.Logging.Syslog)
	assert.Equal(t, "clock", cfg.Metrics.Namespace)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromYamlFile_PartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
query:
  server: "time.google.com"
`)

	cfg, err := LoadFromYamlFile(path)

	require.NoError(t, err)
	assert.Equal(t, "time.google.com", cfg.Query.Server)
	assert.Equal(t, 2000, cfg.Query.TimeoutMS)
	assert.Equal(t, 3, cfg.Query.Retries)
	assert.Equal(t, 123, cfg.Network.Port)
	assert.True(t, cfg.Network.DNSCache.Enabled)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadFromYamlFile_ClampsQuery(t *testing.T) {
	path := writeConfig(t, `
query:
  timeout_ms: 90000
  retries: 42
`)

	cfg, err := LoadFromYamlFile(path)

	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Query.TimeoutMS)
	assert.Equal(t, 10, cfg.Query.Retries)
}

func TestLoadFromYamlFile_FileNotFound(t *testing.T) {
	cfg, err := LoadFromYamlFile("/nonexistent/timesync.yaml")

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFromYamlFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "query:\n  retries: [\n    invalid")

	cfg, err := LoadFromYamlFile(path)

	assert.Error(t, err)
	assert.Nil(t, cfg)
	if err != nil {
		assert.Contains(t, err.Error(), "failed to parse")
	}
}

func TestLoadFromYamlFile_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
network:
  port: 99999
`)

	cfg, err := LoadFromYamlFile(path)

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestLoadFromYamlWithEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
query:
  server: "time.google.com"
  retries: 2
`)
	t.Setenv("TIMESYNC_SERVER", "time.cloudflare.com")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFromYamlWithEnvOverrides(path)

	require.NoError(t, err)
	assert.Equal(t, "time.cloudflare.com", cfg.Query.Server)
	assert.Equal(t, 2, cfg.Query.Retries)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromYamlWithEnvOverrides_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMESYNC_RETRIES", "7")

	cfg, err := LoadFromYamlWithEnvOverrides(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, DefaultServer, cfg.Query.Server)
	assert.Equal(t, 7, cfg.Query.Retries)
}

func TestLoadFromYamlWithEnvOverrides_BrokenFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "query: [")

	cfg, err := LoadFromYamlWithEnvOverrides(path)

	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadFromEnvVarsOnly_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnvVarsOnly()

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultServer, cfg.Query.Server)
	assert.Equal(t, 2000, cfg.Query.TimeoutMS)
	assert.Equal(t, 3, cfg.Query.Retries)
	assert.False(t, cfg.Query.TestOnly)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Syslog)
}

func TestLoadFromEnvVarsOnly_WithOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMESYNC_SERVER", "192.0.2.1:1123")
	t.Setenv("TIMESYNC_TIMEOUT_MS", "0")
	t.Setenv("TIMESYNC_RETRIES", "4")
	t.Setenv("TIMESYNC_PORT", "4123")
	t.Setenv("TIMESYNC_SYSLOG", "true")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_RATE", "5")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("DNS_CACHE_ENABLED", "false")
	t.Setenv("DNS_CACHE_TTL", "10s")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_OUTPUT", "stdout")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("METRICS_NAMESPACE", "clock")
	t.Setenv("METRICS_TEXTFILE", "/tmp/timesync.prom")

	cfg, err := LoadFromEnvVarsOnly()

	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1:1123", cfg.Query.Server)
	// an explicit zero is clamped, not defaulted
	assert.Equal(t, 1, cfg.Query.TimeoutMS)
	assert.Equal(t, 4, cfg.Query.Retries)
	assert.Equal(t, 4123, cfg.Network.Port)
	assert.True(t, cfg.Logging.Syslog)
	assert.True(t, cfg.Network.RateLimit.Enabled)
	assert.Equal(t, 5.0, cfg.Network.RateLimit.Rate)
	assert.Equal(t, 3, cfg.Network.RateLimit.Burst)
	assert.False(t, cfg.Network.DNSCache.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Network.DNSCache.TTL)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "clock", cfg.Metrics.Namespace)
	assert.Equal(t, "/tmp/timesync.prom", cfg.Metrics.TextfilePath)
}

func TestLoadFromEnvVarsOnly_IgnoresUnparsable(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMESYNC_RETRIES", "many")
	t.Setenv("TIMESYNC_TEST_ONLY", "maybe")

	cfg, err := LoadFromEnvVarsOnly()

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Query.Retries)
	assert.False(t, cfg.Query.TestOnly)
}

func TestLoadFromEnvVarsOnly_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMESYNC_PORT", "99999")

	cfg, err := LoadFromEnvVarsOnly()

	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestQueryConfig_NTP(t *testing.T) {
	q := QueryConfig{Server: "s", TimeoutMS: 100, Retries: 2, TestOnly: true}.NTP()

	assert.Equal(t, "s", q.Server)
	assert.Equal(t, 100, q.TimeoutMS)
	assert.Equal(t, 2, q.Retries)
	assert.True(t, q.TestOnly)
}

func TestLoggingConfig_Logger(t *testing.T) {
	l := LoggingConfig{Level: "debug", Format: "json", Output: "file", FilePath: "/tmp/x.log", EnableFile: true, Syslog: true, SyslogTag: "tag"}.Logger()

	assert.Equal(t, "debug", l.Level)
	assert.Equal(t, "json", l.Format)
	assert.Equal(t, "file", l.Output)
	assert.Equal(t, "/tmp/x.log", l.FilePath)
	assert.True(t, l.EnableFile)
	assert.True(t, l.Syslog)
	assert.Equal(t, "tag", l.SyslogTag)
	assert.Equal(t, "timesync", l.Component)
}

func TestConfig_LogFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Query.Server = "ntp.example.com"
	cfg.Metrics.TextfilePath = "/var/lib/node_exporter/timesync.prom"

	fields := cfg.LogFields()

	assert.Equal(t, "ntp.example.com", fields["server"])
	assert.Equal(t, 2000, fields["timeout_ms"])
	assert.Equal(t, false, fields["test_only"])
	assert.Equal(t, "/var/lib/node_exporter/timesync.prom", fields["metrics_textfile"])
	assert.Contains(t, fields, "log_file")
}

func TestLoadFromYamlWithEnvOverrides_MissingFileLogsPath(t *testing.T) {
	clearEnv(t)
	var buf bytes.Buffer
	previous := logger.Logger
	logger.Logger = zerolog.New(&buf)
	t.Cleanup(func() { logger.Logger = previous })

	path := filepath.Join(t.TempDir(), "absent.yaml")
	_, err := LoadFromYamlWithEnvOverrides(path)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Config file not found")
	assert.Contains(t, buf.String(), `"path":"`+path+`"`)
}
