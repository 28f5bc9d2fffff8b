package ntp

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// base is 2025-06-15T16:26:40Z
const base int64 = 1_750_004_800_000

func TestComputeOffset(t *testing.T) {
	tests := []struct {
		name          string
		m             Measurement
		wantOffset    int64
		wantRoundtrip int64
		wantVerdict   Verdict
	}{
		{
			name:          "significant_positive",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: base + 620, LocalAfterMs: base + 40},
			wantOffset:    600,
			wantRoundtrip: 40,
			wantVerdict:   VerdictSignificant,
		},
		{
			name:          "significant_negative",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: base - 1000, LocalAfterMs: base + 10},
			wantOffset:    -1005,
			wantRoundtrip: 10,
			wantVerdict:   VerdictSignificant,
		},
		{
			name:          "negligible",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: base + 120, LocalAfterMs: base + 40},
			wantOffset:    100,
			wantRoundtrip: 40,
			wantVerdict:   VerdictNegligible,
		},
		{
			name:          "negligible_negative",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: base - 499, LocalAfterMs: base},
			wantOffset:    -499,
			wantRoundtrip: 0,
			wantVerdict:   VerdictNegligible,
		},
		{
			name:          "exactly_threshold_is_significant",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: base + 500, LocalAfterMs: base},
			wantOffset:    500,
			wantRoundtrip: 0,
			wantVerdict:   VerdictSignificant,
		},
		{
			// zero is excluded from the negligible band
			name:          "zero_offset_falls_through",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: base + 20, LocalAfterMs: base + 40},
			wantOffset:    0,
			wantRoundtrip: 40,
			wantVerdict:   VerdictSignificant,
		},
		{
			name:          "after_before_before",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: base + 5000, LocalAfterMs: base - 1},
			wantOffset:    5001,
			wantRoundtrip: -1,
			wantVerdict:   VerdictInvalidRoundtrip,
		},
		{
			name:          "roundtrip_too_long",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: base + 100, LocalAfterMs: base + 10001},
			wantOffset:    -4900,
			wantRoundtrip: 10001,
			wantVerdict:   VerdictInvalidRoundtrip,
		},
		{
			name:          "roundtrip_at_limit",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: base + 10000, LocalAfterMs: base + 10000},
			wantOffset:    5000,
			wantRoundtrip: 10000,
			wantVerdict:   VerdictSignificant,
		},
		{
			// roundtrip is checked before negligible
			name:          "negligible_with_bad_roundtrip",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: base + 5010, LocalAfterMs: base + 10020},
			wantOffset:    0,
			wantRoundtrip: 10020,
			wantVerdict:   VerdictInvalidRoundtrip,
		},
		{
			name:          "remote_year_too_early",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: 1_000_000_000_000, LocalAfterMs: base + 10},
			wantOffset:    1_000_000_000_000 - (base + 5),
			wantRoundtrip: 10,
			wantVerdict:   VerdictInvalidYear,
		},
		{
			// 2201-01-01T00:00:00Z
			name:          "remote_year_too_late",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: 7_289_654_400_000, LocalAfterMs: base},
			wantOffset:    7_289_654_400_000 - base,
			wantRoundtrip: 0,
			wantVerdict:   VerdictInvalidYear,
		},
		{
			// negligible is checked before the year
			name:          "negligible_with_bad_year",
			m:             Measurement{LocalBeforeMs: 1_000_000_000_000, RemoteMs: 1_000_000_000_100, LocalAfterMs: 1_000_000_000_000},
			wantOffset:    100,
			wantRoundtrip: 0,
			wantVerdict:   VerdictNegligible,
		},
		{
			name:          "odd_sum_floors",
			m:             Measurement{LocalBeforeMs: base, RemoteMs: base + 1000, LocalAfterMs: base + 1},
			wantOffset:    1000,
			wantRoundtrip: 1,
			wantVerdict:   VerdictSignificant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputeOffset(tt.m)

			assert.Equal(t, tt.wantOffset, res.OffsetMs)
			assert.Equal(t, tt.wantRoundtrip, res.RoundtripMs)
			assert.Equal(t, tt.wantVerdict, res.Verdict)
			assert.Equal(t, tt.m.RemoteMs, res.RemoteMs)
		})
	}
}

func TestComputeOffset_RemoteYear(t *testing.T) {
	res := ComputeOffset(Measurement{LocalBeforeMs: base, RemoteMs: base, LocalAfterMs: base})
	assert.Equal(t, 2025, res.RemoteYear)
}

func TestVerdict_String(t *testing.T) {
	tests := []struct {
		v    Verdict
		want string
	}{
		{VerdictInvalid, "invalid"},
		{VerdictSignificant, "significant"},
		{VerdictNegligible, "negligible"},
		{VerdictInvalidRoundtrip, "invalid_roundtrip"},
		{VerdictInvalidYear, "invalid_year"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestVerdict_IsValid(t *testing.T) {
	assert.True(t, VerdictSignificant.IsValid())
	assert.True(t, VerdictNegligible.IsValid())
	assert.False(t, VerdictInvalid.IsValid())
	assert.False(t, VerdictInvalidRoundtrip.IsValid())
	assert.False(t, VerdictInvalidYear.IsValid())
}

func TestOffsetCalculator_Evaluate(t *testing.T) {
	var buf bytes.Buffer
	calc := NewOffsetCalculator(zerolog.New(&buf).Level(zerolog.DebugLevel))

	res := calc.Evaluate(Measurement{LocalBeforeMs: base, RemoteMs: base + 620, LocalAfterMs: base + 40, Address: "192.0.2.1"})

	assert.Equal(t, VerdictSignificant, res.Verdict)
	assert.Contains(t, buf.String(), `"offset_ms":600`)
	assert.Contains(t, buf.String(), `"verdict":"significant"`)
	assert.Contains(t, buf.String(), `"address":"192.0.2.1"`)
}

func TestFormatMillis(t *testing.T) {
	ms := time.Date(2025, 6, 15, 16, 26, 40, 7*int(time.Millisecond), time.UTC).UnixMilli()
	assert.Equal(t, "2025-06-15T16:26:40+0000.007", FormatMillis(ms))
	assert.Equal(t, "1970-01-01T00:00:00+0000.000", FormatMillis(0))
}

func TestOffsetResult_Err(t *testing.T) {
	assert.NoError(t, OffsetResult{Verdict: VerdictSignificant}.Err())
	assert.NoError(t, OffsetResult{Verdict: VerdictNegligible}.Err())
	assert.ErrorIs(t, OffsetResult{Verdict: VerdictInvalidRoundtrip, RoundtripMs: -3}.Err(), ErrInvalidRoundtrip)
	assert.ErrorIs(t, OffsetResult{Verdict: VerdictInvalidYear, RemoteYear: 2001}.Err(), ErrInvalidYear)
	assert.ErrorIs(t, OffsetResult{}.Err(), ErrUnusableOffset)

	assert.Contains(t, OffsetResult{Verdict: VerdictInvalidYear, RemoteYear: 2001}.Err().Error(), "2025-2200")
}
