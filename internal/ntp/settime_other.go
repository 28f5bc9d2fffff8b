//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package ntp

// SystemClock is unavailable on this platform
type SystemClock struct{}

// SetTime always fails with ErrUnsupported
func (SystemClock) SetTime(targetMs int64) error {
	return ErrUnsupported
}
