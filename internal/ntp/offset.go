package ntp

import (
	"fmt"
	"time"

	"github.com/maximewewer/timesync/pkg/mathutil"
	"github.com/rs/zerolog"
)

// Verdict classifies a computed offset
type Verdict int

const (
	// VerdictInvalid is the zero value: not evaluated or otherwise unusable
	VerdictInvalid Verdict = iota
	VerdictSignificant
	VerdictNegligible
	VerdictInvalidRoundtrip
	VerdictInvalidYear
)

func (v Verdict) String() string {
	switch v {
	case VerdictSignificant:
		return "significant"
	case VerdictNegligible:
		return "negligible"
	case VerdictInvalidRoundtrip:
		return "invalid_roundtrip"
	case VerdictInvalidYear:
		return "invalid_year"
	default:
		return "invalid"
	}
}

// IsValid reports whether the verdict passed the sanity checks
func (v Verdict) IsValid() bool {
	return v == VerdictSignificant || v == VerdictNegligible
}

// OffsetResult is the offset and round trip derived from a Measurement
type OffsetResult struct {
	OffsetMs    int64
	RoundtripMs int64
	RemoteMs    int64
	RemoteYear  int
	Verdict     Verdict
}

// Err describes a rejected result, nil for significant and negligible offsets
func (r OffsetResult) Err() error {
	switch r.Verdict {
	case VerdictSignificant, VerdictNegligible:
		return nil
	case VerdictInvalidRoundtrip:
		return fmt.Errorf("%w: %d ms", ErrInvalidRoundtrip, r.RoundtripMs)
	case VerdictInvalidYear:
		return fmt.Errorf("%w (%d-%d): %d", ErrInvalidYear, MinValidYear, MaxValidYear, r.RemoteYear)
	default:
		return ErrUnusableOffset
	}
}

// ComputeOffset derives offset and round trip and runs the validation gate.
// Rules apply in order, first match wins:
//  1. round trip negative or above MaxRoundtripMS
//  2. 0 < |offset| < MinSignificantOffsetMS
//  3. remote year outside [MinValidYear, MaxValidYear]
//
// An offset of exactly zero is not negligible and can come out significant.
func ComputeOffset(m Measurement) OffsetResult {
	res := OffsetResult{
		RoundtripMs: m.LocalAfterMs - m.LocalBeforeMs,
		OffsetMs:    m.RemoteMs - mathutil.FloorDiv2(m.LocalBeforeMs+m.LocalAfterMs),
		RemoteMs:    m.RemoteMs,
		RemoteYear:  time.UnixMilli(m.RemoteMs).UTC().Year(),
	}

	abs := mathutil.AbsInt64(res.OffsetMs)
	switch {
	case res.RoundtripMs < 0 || res.RoundtripMs > MaxRoundtripMS:
		res.Verdict = VerdictInvalidRoundtrip
	case abs > 0 && abs < MinSignificantOffsetMS:
		res.Verdict = VerdictNegligible
	case res.RemoteYear < MinValidYear || res.RemoteYear > MaxValidYear:
		res.Verdict = VerdictInvalidYear
	default:
		res.Verdict = VerdictSignificant
	}

	return res
}

// OffsetCalculator wraps ComputeOffset with a debug trace
type OffsetCalculator struct {
	log zerolog.Logger
}

// NewOffsetCalculator creates a calculator logging to log
func NewOffsetCalculator(log zerolog.Logger) *OffsetCalculator {
	return &OffsetCalculator{log: log}
}

// Evaluate computes and classifies the offset of m
func (c *OffsetCalculator) Evaluate(m Measurement) OffsetResult {
	res := ComputeOffset(m)

	c.log.Debug().
		Str("address", m.Address).
		Int64("local_before_ms", m.LocalBeforeMs).
		Int64("local_after_ms", m.LocalAfterMs).
		Int64("remote_ms", m.RemoteMs).
		Str("local_time", FormatMillis(m.LocalAfterMs)).
		Str("remote_time", FormatMillis(m.RemoteMs)).
		Int64("roundtrip_ms", res.RoundtripMs).
		Int64("offset_ms", res.OffsetMs).
		Str("verdict", res.Verdict.String()).
		Msg("Offset computed")

	return res
}

// FormatMillis renders Unix milliseconds as 2006-01-02T15:04:05+0000.000 in UTC
func FormatMillis(ms int64) string {
	t := time.UnixMilli(ms).UTC()
	return fmt.Sprintf("%s+0000.%03d", t.Format("2006-01-02T15:04:05"), t.Nanosecond()/int(time.Millisecond))
}
