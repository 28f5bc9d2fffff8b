package ntp

import (
	"context"
	"fmt"
	"time"

	"github.com/maximewewer/timesync/pkg/mathutil"
	"github.com/rs/zerolog"
)

// QueryConfig is the per-run query input
type QueryConfig struct {
	Server    string
	TimeoutMS int
	Retries   int
	TestOnly  bool
}

// Normalized returns a copy with timeout and retries clamped to their bounds
func (c QueryConfig) Normalized() QueryConfig {
	c.TimeoutMS = mathutil.ClampInt(c.TimeoutMS, MinTimeoutMS, MaxTimeoutMS)
	c.Retries = mathutil.ClampInt(c.Retries, MinRetries, MaxRetries)
	return c
}

// Timeout returns the per-attempt timeout as a duration
func (c QueryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Exchange is one attempt against a server, see Exchanger
type Exchange interface {
	Exchange(ctx context.Context, server string, timeout time.Duration) (*Measurement, error)
}

// QueryResult is a successful query and the number of attempts it took
type QueryResult struct {
	Measurement Measurement
	Attempts    int
}

// Querier retries an Exchange with a flat backoff between attempts
type Querier struct {
	exchange Exchange
	cfg      QueryConfig
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	log      zerolog.Logger
}

// NewQuerier creates a querier; cfg is clamped before use
func NewQuerier(exchange Exchange, cfg QueryConfig, log zerolog.Logger) *Querier {
	return &Querier{
		exchange: exchange,
		cfg:      cfg.Normalized(),
		backoff:  RetryBackoff,
		sleep:    sleepContext,
		log:      log,
	}
}

// Config returns the clamped configuration in use
func (q *Querier) Config() QueryConfig {
	return q.cfg
}

// Query runs up to Retries attempts. The first success short-circuits;
// exhausting every attempt yields ErrExhaustedRetries wrapping the last
// attempt's error.
func (q *Querier) Query(ctx context.Context) (*QueryResult, error) {
	var lastErr error

	for attempt := 1; attempt <= q.cfg.Retries; attempt++ {
		q.log.Debug().
			Str("server", q.cfg.Server).
			Int("attempt", attempt).
			Int("retries", q.cfg.Retries).
			Int("timeout_ms", q.cfg.TimeoutMS).
			Msg("NTP query attempt")

		m, err := q.exchange.Exchange(ctx, q.cfg.Server, q.cfg.Timeout())
		if err == nil {
			return &QueryResult{Measurement: *m, Attempts: attempt}, nil
		}
		lastErr = err

		q.log.Debug().
			Str("server", q.cfg.Server).
			Int("attempt", attempt).
			Err(err).
			Msg("NTP query attempt failed")

		if attempt < q.cfg.Retries {
			if err := q.sleep(ctx, q.backoff); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrExhaustedRetries, q.cfg.Server, err)
			}
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrExhaustedRetries, q.cfg.Server, q.cfg.Retries, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
