package logger

import (
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Global logger instance
	Logger zerolog.Logger

	// Resources opened by InitLogger and released by Close
	closersMu sync.Mutex
	closers   []io.Closer

	// Pre-compiled regex patterns for sensitive data detection
	passwordPattern   = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|api[_-]?key|auth)`)
	credentialPattern = regexp.MustCompile(`(?i)://([^:]+):([^@]+)@`)
)

// Config holds logger configuration
type Config struct {
	Level      string // trace, debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, file
	FilePath   string // path to log file if output=file
	Component  string // component name for structured logging
	EnableFile bool   // enable file output
	Syslog     bool   // tee events to the system logger
	SyslogTag  string // syslog identity, defaults to component
}

// InitLogger initializes the global logger with the provided configuration.
// A syslog sink that cannot be opened is reported and skipped.
func InitLogger(cfg Config) error {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	writer, err := openOutput(cfg)
	if err != nil {
		return err
	}

	var out io.Writer = writer
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.RFC3339,
			NoColor:    writer != os.Stdout && writer != os.Stderr,
		}
	}

	var syslogErr error
	if cfg.Syslog {
		tag := cfg.SyslogTag
		if tag == "" {
			tag = cfg.Component
		}
		sink, closer, err := openSyslog(tag)
		if err != nil {
			syslogErr = err
		} else {
			addCloser(closer)
			out = zerolog.MultiLevelWriter(out, sink)
		}
	}

	Logger = zerolog.New(out).With().Timestamp().Str("component", cfg.Component).Logger()

	// Set global logger
	log.Logger = Logger

	if syslogErr != nil {
		Error("logger", "Failed to open syslog, ignored", syslogErr)
	}

	return nil
}

// openOutput resolves the configured destination writer
func openOutput(cfg Config) (io.Writer, error) {
	switch cfg.Output {
	case "stdout":
		return os.Stdout, nil
	case "file":
		if cfg.EnableFile && cfg.FilePath != "" {
			file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				return nil, err
			}
			addCloser(file)
			return file, nil
		}
		return os.Stderr, nil
	default:
		return os.Stderr, nil
	}
}

func addCloser(c io.Closer) {
	closersMu.Lock()
	defer closersMu.Unlock()
	closers = append(closers, c)
}

// Close releases the syslog connection and log file opened by InitLogger.
// The global logger keeps working afterwards but writes to stderr.
func Close() error {
	closersMu.Lock()
	defer closersMu.Unlock()

	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	closers = nil
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	log.Logger = Logger

	return first
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// sanitizeFields removes or redacts sensitive information from fields
func sanitizeFields(fields map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for key, value := range fields {
		if passwordPattern.MatchString(key) {
			result[key] = "***REDACTED***"
			continue
		}

		if strValue, ok := value.(string); ok {
			result[key] = sanitizeString(strValue)
		} else {
			result[key] = value
		}
	}

	return result
}

// sanitizeString removes sensitive information from strings
func sanitizeString(s string) string {
	return credentialPattern.ReplaceAllString(s, "://$1:***@")
}

// For returns a child of the global logger tagged with the package name.
// Components take the result as an explicit dependency.
func For(pkg string) zerolog.Logger {
	return Logger.With().Str("package", pkg).Logger()
}

// Error logs an error message
func Error(pkg, message string, err error) {
	Logger.Error().
		Str("package", pkg).
		Err(err).
		Msg(message)
}

// SafeDebug logs a debug message with sanitized fields
func SafeDebug(pkg, message string, fields map[string]interface{}) {
	sanitized := sanitizeFields(fields)
	event := Logger.Debug().Str("package", pkg)
	for k, v := range sanitized {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

// SafeWarn logs a warning message with sanitized fields
func SafeWarn(pkg, message string, fields map[string]interface{}) {
	sanitized := sanitizeFields(fields)
	event := Logger.Warn().Str("package", pkg)
	for k, v := range sanitized {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

// SafeError logs an error message with sanitized fields
func SafeError(pkg, message string, err error, fields map[string]interface{}) {
	sanitized := sanitizeFields(fields)
	event := Logger.Error().Str("package", pkg).Err(err)
	for k, v := range sanitized {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

// Startup logs application startup information. String fields pass
// through the same redaction as the Safe helpers.
func Startup(version string, fields map[string]interface{}) {
	withVersion := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		withVersion[k] = v
	}
	withVersion["version"] = version
	SafeDebug("main", "timesync starting", withVersion)
}
