//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package ntp

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// SystemClock sets the wall clock
type SystemClock struct{}

// SetTime implements ClockSetter using settimeofday(2)
func (SystemClock) SetTime(targetMs int64) error {
	tv := unix.NsecToTimeval(targetMs * int64(time.Millisecond))
	if err := unix.Settimeofday(&tv); err != nil {
		return fmt.Errorf("settimeofday: %w", err)
	}
	return nil
}
