package ntp

import "fmt"

// Header holds the response fields this client inspects.
// The remaining header words are carried on the wire but not decoded.
type Header struct {
	Leap     uint8
	Version  uint8
	Mode     uint8
	Stratum  uint8
	Transmit [8]byte
}

// EncodeRequest builds a client-mode request: LI=0, VN=4, Mode=3 and
// every other byte zero.
func EncodeRequest() []byte {
	buf := make([]byte, PacketSize)
	buf[0] = LeapNoWarning<<6 | VersionNTPv4<<3 | ModeClient
	return buf
}

// DecodeResponse validates a server reply and extracts its header fields.
// Checks run in order: length, mode, stratum, version.
func DecodeResponse(buf []byte) (*Header, error) {
	if len(buf) < PacketSize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrTooShort, len(buf), PacketSize)
	}

	h := &Header{
		Leap:    buf[0] >> 6,
		Version: (buf[0] >> 3) & 0x07,
		Mode:    buf[0] & 0x07,
		Stratum: buf[1],
	}

	if h.Mode != ModeServer {
		return nil, fmt.Errorf("%w: %d", ErrBadMode, h.Mode)
	}
	if h.Stratum == 0 {
		return nil, ErrBadStratum
	}
	if h.Version < MinVersion || h.Version > MaxVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}

	copy(h.Transmit[:], buf[transmitOffset:transmitOffset+8])
	return h, nil
}
