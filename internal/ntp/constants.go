package ntp

import "time"

// Wire format constants
const (
	// PacketSize is the fixed size of an SNTP header without extensions
	PacketSize = 48

	// NTPEpochOffset is the number of seconds between 1900-01-01 and 1970-01-01
	NTPEpochOffset = 2208988800

	// DefaultPort is the well-known NTP service port
	DefaultPort = 123

	// transmitOffset is the byte offset of the transmit timestamp
	transmitOffset = 40

	// readBufferSize leaves room for an authenticator trailer
	readBufferSize = 68
)

// Header field values
const (
	LeapNoWarning = 0
	ModeClient    = 3
	ModeServer    = 4
	VersionNTPv4  = 4
	MinVersion    = 1
	MaxVersion    = 4
)

// Query behavior constants
const (
	// RetryBackoff is the flat delay between two query attempts
	RetryBackoff = 200 * time.Millisecond

	// DefaultTimeoutMS is the default per-attempt receive timeout
	DefaultTimeoutMS = 2000

	// DefaultRetries is the default number of query attempts
	DefaultRetries = 3

	MinTimeoutMS = 1
	MaxTimeoutMS = 6000
	MinRetries   = 1
	MaxRetries   = 10
)

// Validation thresholds
const (
	// MaxRoundtripMS is the largest round trip still trusted for an estimate
	MaxRoundtripMS = 10000

	// MinSignificantOffsetMS is the smallest offset worth stepping the clock for
	MinSignificantOffsetMS = 500

	MinValidYear = 2025
	MaxValidYear = 2200
)
