// Package timesync runs one query, evaluate and steer cycle and maps its
// outcome to a process exit code.
package timesync

import (
	"context"
	"time"

	"github.com/maximewewer/timesync/internal/ntp"
	"github.com/rs/zerolog"
)

// ExitCode is the process exit status of one run
type ExitCode int

const (
	ExitOK         ExitCode = 0
	ExitValidation ExitCode = 1
	ExitExhausted  ExitCode = 2
	ExitClockSet   ExitCode = 10
)

// Querier runs the retried query
type Querier interface {
	Query(ctx context.Context) (*ntp.QueryResult, error)
	Config() ntp.QueryConfig
}

// Recorder receives run measurements, see metrics.SyncMetrics
type Recorder interface {
	ObserveQuery(server string, attempts int, duration time.Duration, success bool)
	ObserveOffset(server string, offsetMs, roundtripMs int64, verdict string)
	ObserveAdjustment(result string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveQuery(string, int, time.Duration, bool) {}
func (nopRecorder) ObserveOffset(string, int64, int64, string)    {}
func (nopRecorder) ObserveAdjustment(string)                      {}

// Status names the terminal outcome of a run
type Status string

const (
	StatusExhaustedRetries  Status = "exhausted_retries"
	StatusInvalidRoundtrip  Status = "invalid_roundtrip"
	StatusInvalidYear       Status = "invalid_year"
	StatusInvalidOffset     Status = "invalid_offset"
	StatusNegligible        Status = "negligible"
	StatusTestMode          Status = "test_mode"
	StatusPrivilegeRequired Status = "privilege_required"
	StatusAdjusted          Status = "adjusted"
	StatusClockSetFailed    Status = "clock_set_failed"
)

// Outcome is the result of Run
type Outcome struct {
	Code     ExitCode
	Status   Status
	Attempts int
	Offset   *ntp.OffsetResult
	Steer    ntp.SteerResult
	Err      error
}

// Runner wires the query, the offset gate and the steering decision
type Runner struct {
	querier  Querier
	calc     *ntp.OffsetCalculator
	steerer  *ntp.Steerer
	recorder Recorder
	log      zerolog.Logger
}

// Option customizes a Runner
type Option func(*Runner)

// WithRecorder sends measurements to rec
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewRunner creates a runner
func NewRunner(querier Querier, calc *ntp.OffsetCalculator, steerer *ntp.Steerer, log zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		querier:  querier,
		calc:     calc,
		steerer:  steerer,
		recorder: nopRecorder{},
		log:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one cycle. Exactly one terminal event is logged, tagged
// with a "status" field.
func (r *Runner) Run(ctx context.Context) Outcome {
	cfg := r.querier.Config()

	r.log.Debug().
		Str("server", cfg.Server).
		Int("timeout_ms", cfg.TimeoutMS).
		Int("retries", cfg.Retries).
		Bool("test_only", cfg.TestOnly).
		Msg("Starting time synchronization")

	start := time.Now()
	qr, err := r.querier.Query(ctx)
	if err != nil {
		r.recorder.ObserveQuery(cfg.Server, cfg.Retries, time.Since(start), false)
		r.log.Error().
			Str("status", string(StatusExhaustedRetries)).
			Str("server", cfg.Server).
			Int("attempts", cfg.Retries).
			Err(err).
			Msg("Failed to contact NTP server")
		return Outcome{Code: ExitExhausted, Status: StatusExhaustedRetries, Attempts: cfg.Retries, Err: err}
	}
	r.recorder.ObserveQuery(cfg.Server, qr.Attempts, time.Since(start), true)

	res := r.calc.Evaluate(qr.Measurement)
	r.recorder.ObserveOffset(cfg.Server, res.OffsetMs, res.RoundtripMs, res.Verdict.String())

	out := Outcome{Attempts: qr.Attempts, Offset: &res}
	event := func(e *zerolog.Event, status Status) *zerolog.Event {
		out.Status = status
		return e.
			Str("status", string(status)).
			Str("server", cfg.Server).
			Str("address", qr.Measurement.Address).
			Int64("offset_ms", res.OffsetMs).
			Int64("roundtrip_ms", res.RoundtripMs)
	}

	switch res.Verdict {
	case ntp.VerdictInvalidRoundtrip:
		out.Code, out.Err = ExitValidation, res.Err()
		event(r.log.Error(), StatusInvalidRoundtrip).Err(out.Err).Msg("Invalid roundtrip time")
		return out
	case ntp.VerdictNegligible:
		out.Code = ExitOK
		event(r.log.Info(), StatusNegligible).Msg("Delta < 500ms, not setting system time")
		return out
	case ntp.VerdictInvalidYear:
		out.Code, out.Err = ExitValidation, res.Err()
		event(r.log.Error(), StatusInvalidYear).Int("remote_year", res.RemoteYear).Err(out.Err).Msg("Remote year is out of valid range")
		return out
	case ntp.VerdictSignificant:
	default:
		out.Code, out.Err = ExitValidation, res.Err()
		event(r.log.Error(), StatusInvalidOffset).Err(out.Err).Msg("Offset could not be evaluated")
		return out
	}

	out.Steer = r.steerer.Steer(res, cfg.TestOnly)
	r.recorder.ObserveAdjustment(out.Steer.Action.String())

	switch out.Steer.Action {
	case ntp.SteerTestMode:
		out.Code = ExitOK
		event(r.log.Info(), StatusTestMode).
			Str("target_time", ntp.FormatMillis(out.Steer.TargetMs)).
			Msg("Test mode, not setting system time")
	case ntp.SteerPrivilegeRequired:
		out.Code, out.Err = ExitOK, ntp.ErrPrivilegeRequired
		event(r.log.Warn(), StatusPrivilegeRequired).Msg("Not privileged, not setting system time")
	case ntp.SteerAdjusted:
		out.Code = ExitOK
		event(r.log.Info(), StatusAdjusted).
			Int64("target_ms", out.Steer.TargetMs).
			Str("target_time", ntp.FormatMillis(out.Steer.TargetMs)).
			Msg("System time set")
	case ntp.SteerFailed:
		out.Code, out.Err = ExitClockSet, out.Steer.Err
		event(r.log.Error(), StatusClockSetFailed).Err(out.Err).Msg("Failed to adjust system time")
	default:
		out.Code, out.Err = ExitValidation, ntp.ErrUnusableOffset
		event(r.log.Error(), StatusInvalidOffset).Err(out.Err).Msg("Offset could not be evaluated")
	}

	return out
}
