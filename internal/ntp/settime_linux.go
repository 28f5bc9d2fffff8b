//go:build linux

package ntp

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// SystemClock sets CLOCK_REALTIME
type SystemClock struct{}

// SetTime implements ClockSetter using clock_settime(2)
func (SystemClock) SetTime(targetMs int64) error {
	ts := unix.NsecToTimespec(targetMs * int64(time.Millisecond))
	if err := unix.ClockSettime(unix.CLOCK_REALTIME, &ts); err != nil {
		return fmt.Errorf("clock_settime: %w", err)
	}
	return nil
}
