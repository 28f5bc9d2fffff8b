package ntp

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse is the parent of every codec and timestamp rejection
	ErrMalformedResponse = errors.New("malformed ntp response")

	ErrTooShort     = fmt.Errorf("%w: packet too short", ErrMalformedResponse)
	ErrBadMode      = fmt.Errorf("%w: unexpected mode", ErrMalformedResponse)
	ErrBadStratum   = fmt.Errorf("%w: invalid stratum", ErrMalformedResponse)
	ErrBadVersion   = fmt.Errorf("%w: unsupported version", ErrMalformedResponse)
	ErrBadTimestamp = fmt.Errorf("%w: invalid transmit timestamp", ErrMalformedResponse)

	ErrResolution       = errors.New("could not resolve ntp server")
	ErrExchangeTimeout  = errors.New("ntp exchange timed out")
	ErrShortSend        = errors.New("short send of ntp request")
	ErrNoResponse       = errors.New("no valid response from any server address")
	ErrExhaustedRetries = errors.New("ntp query failed after retries")

	ErrInvalidRoundtrip  = errors.New("invalid roundtrip time")
	ErrInvalidYear       = errors.New("remote year is out of valid range")
	ErrUnusableOffset    = errors.New("offset was not evaluated")
	ErrPrivilegeRequired = errors.New("not privileged, not setting system time")

	ErrClockSet    = errors.New("failed to set system clock")
	ErrUnsupported = errors.New("setting the system clock is not supported on this platform")
)
