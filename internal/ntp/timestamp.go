package ntp

import "encoding/binary"

// ToUnixMillis converts a 64-bit NTP timestamp (32.32 fixed point, seconds
// since 1900) to Unix milliseconds. The fraction is truncated to whole
// microseconds and then to whole milliseconds, never rounded.
// It reports false for short input or for seconds before the Unix epoch.
func ToUnixMillis(raw []byte) (int64, bool) {
	if len(raw) < 8 {
		return 0, false
	}

	sec := binary.BigEndian.Uint32(raw[0:4])
	frac := binary.BigEndian.Uint32(raw[4:8])
	if sec < NTPEpochOffset {
		return 0, false
	}

	usec := (uint64(frac) * 1_000_000) >> 32
	unixSec := int64(sec) - NTPEpochOffset

	return unixSec*1000 + int64(usec/1000), true
}
