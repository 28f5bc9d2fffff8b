package mathutil

// AbsInt64 returns the absolute value of an int64
func AbsInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ClampInt clamps a value between min and max
func ClampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// FloorDiv2 halves v, rounding toward negative infinity
func FloorDiv2(v int64) int64 {
	return v >> 1
}

// MillisToSeconds converts a millisecond count to float seconds
func MillisToSeconds(ms int64) float64 {
	return float64(ms) / 1000.0
}
