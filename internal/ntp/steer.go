package ntp

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ClockSetter steps the system clock to a Unix millisecond time
type ClockSetter interface {
	SetTime(targetMs int64) error
}

// PrivilegeChecker reports whether the process may set the clock
type PrivilegeChecker interface {
	IsPrivileged() bool
}

// SteerAction is what the steering decision did
type SteerAction int

const (
	SteerNotApplicable SteerAction = iota
	SteerTestMode
	SteerPrivilegeRequired
	SteerAdjusted
	SteerFailed
)

func (a SteerAction) String() string {
	switch a {
	case SteerTestMode:
		return "test_mode"
	case SteerPrivilegeRequired:
		return "privilege_required"
	case SteerAdjusted:
		return "adjusted"
	case SteerFailed:
		return "failed"
	default:
		return "not_applicable"
	}
}

// SteerResult reports the decision and, when attempted, the target time
type SteerResult struct {
	Action   SteerAction
	TargetMs int64
	Err      error
}

// Steerer decides whether to step the clock for a significant offset
type Steerer struct {
	clock     ClockSetter
	privilege PrivilegeChecker
	log       zerolog.Logger
}

// NewSteerer creates a steerer using clock and privilege
func NewSteerer(clock ClockSetter, privilege PrivilegeChecker, log zerolog.Logger) *Steerer {
	return &Steerer{
		clock:     clock,
		privilege: privilege,
		log:       log,
	}
}

// TargetTime is the remote transmit time advanced by half the round trip
func TargetTime(res OffsetResult) int64 {
	return res.RemoteMs + res.RoundtripMs/2
}

// Steer acts on res. Only a significant verdict can reach the clock; test
// mode wins over the privilege check. A failed set is not retried.
func (s *Steerer) Steer(res OffsetResult, testOnly bool) SteerResult {
	if res.Verdict != VerdictSignificant {
		return SteerResult{Action: SteerNotApplicable}
	}

	target := TargetTime(res)
	if testOnly {
		return SteerResult{Action: SteerTestMode, TargetMs: target}
	}
	if !s.privilege.IsPrivileged() {
		return SteerResult{Action: SteerPrivilegeRequired, TargetMs: target}
	}

	s.log.Debug().
		Int64("target_ms", target).
		Str("target_time", FormatMillis(target)).
		Int64("offset_ms", res.OffsetMs).
		Msg("Setting system clock")

	if err := s.clock.SetTime(target); err != nil {
		return SteerResult{
			Action:   SteerFailed,
			TargetMs: target,
			Err:      fmt.Errorf("%w: %w", ErrClockSet, err),
		}
	}

	return SteerResult{Action: SteerAdjusted, TargetMs: target}
}
