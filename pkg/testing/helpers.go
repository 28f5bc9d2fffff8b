package testutil

import (
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	ntpEpochOffset = 2208988800
	packetSize     = 48
)

// ResponsePacket describes a crafted server reply
type ResponsePacket struct {
	Leap       uint8
	Version    uint8
	Mode       uint8
	Stratum    uint8
	TransmitMs int64
	// RawTransmit overrides TransmitMs when non-nil
	RawTransmit []byte
	// Size truncates or pads the packet, 0 means 48 bytes
	Size int
}

// ValidResponse returns a well-formed stratum 2 NTPv4 server reply
func ValidResponse(transmitMs int64) ResponsePacket {
	return ResponsePacket{
		Version:    4,
		Mode:       4,
		Stratum:    2,
		TransmitMs: transmitMs,
	}
}

// Bytes encodes the packet
func (p ResponsePacket) Bytes() []byte {
	buf := make([]byte, packetSize)
	buf[0] = p.Leap<<6 | (p.Version&0x07)<<3 | p.Mode&0x07
	buf[1] = p.Stratum

	if p.RawTransmit != nil {
		copy(buf[40:48], p.RawTransmit)
	} else {
		ts := NTPTimestamp(p.TransmitMs)
		copy(buf[40:48], ts[:])
	}

	if p.Size > 0 {
		if p.Size <= len(buf) {
			return buf[:p.Size]
		}
		return append(buf, make([]byte, p.Size-len(buf))...)
	}
	return buf
}

// NTPTimestamp encodes Unix milliseconds as an NTP 32.32 timestamp. The
// fraction is rounded up so that truncating decoders recover ms exactly.
func NTPTimestamp(ms int64) [8]byte {
	sec := ms/1000 + ntpEpochOffset
	rem := uint64(ms % 1000)
	frac := (rem<<32 + 999) / 1000

	var out [8]byte
	binary.BigEndian.PutUint32(out[0:4], uint32(sec))
	binary.BigEndian.PutUint32(out[4:8], uint32(frac))
	return out
}

// RawTimestamp builds a timestamp from explicit seconds and fraction
func RawTimestamp(sec, frac uint32) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint32(out[0:4], sec)
	binary.BigEndian.PutUint32(out[4:8], frac)
	return out
}

// UDPServer is a loopback NTP responder for tests
type UDPServer struct {
	conn     *net.UDPConn
	handler  func(req []byte) []byte
	requests atomic.Int64
	wg       sync.WaitGroup
}

// NewUDPServer starts a responder on 127.0.0.1. handler returns the reply
// for a request, or nil to stay silent. The server stops at test cleanup.
func NewUDPServer(t *testing.T, handler func(req []byte) []byte) *UDPServer {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	s := &UDPServer{conn: conn, handler: handler}
	s.wg.Add(1)
	go s.serve()

	t.Cleanup(func() {
		_ = s.conn.Close()
		s.wg.Wait()
	})

	return s
}

// NewStaticServer answers every request with the same packet
func NewStaticServer(t *testing.T, reply ResponsePacket) *UDPServer {
	t.Helper()
	b := reply.Bytes()
	return NewUDPServer(t, func([]byte) []byte { return b })
}

// NewSilentServer reads requests and never answers
func NewSilentServer(t *testing.T) *UDPServer {
	t.Helper()
	return NewUDPServer(t, func([]byte) []byte { return nil })
}

func (s *UDPServer) serve() {
	defer s.wg.Done()

	buf := make([]byte, 512)
	for {
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		s.requests.Add(1)

		req := append([]byte(nil), buf[:n]...)
		if reply := s.handler(req); reply != nil {
			_, _ = s.conn.WriteToUDPAddrPort(reply, from)
		}
	}
}

// Addr returns the address the server listens on
func (s *UDPServer) Addr() netip.AddrPort {
	return s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Requests returns the number of datagrams received
func (s *UDPServer) Requests() int {
	return int(s.requests.Load())
}

// AssertMetricValue validates a Prometheus metric value
func AssertMetricValue(t *testing.T, registry prometheus.Gatherer, metricName string, labels map[string]string, expected float64) {
	t.Helper()

	metrics, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() != metricName {
			continue
		}

		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), labels) {
				var value float64
				switch mf.GetType() {
				case dto.MetricType_GAUGE:
					value = m.GetGauge().GetValue()
				case dto.MetricType_COUNTER:
					value = m.GetCounter().GetValue()
				case dto.MetricType_HISTOGRAM:
					value = float64(m.GetHistogram().GetSampleCount())
				default:
					t.Fatalf("Unsupported metric type: %v", mf.GetType())
				}

				if value != expected {
					t.Errorf("Metric %s with labels %v: expected %f, got %f", metricName, labels, expected, value)
				}
				return
			}
		}
	}

	t.Errorf("Metric %s with labels %v not found", metricName, labels)
}

// AssertMetricExists checks if a metric exists with given labels
func AssertMetricExists(t *testing.T, registry prometheus.Gatherer, metricName string, labels map[string]string) {
	t.Helper()

	metrics, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() != metricName {
			continue
		}

		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), labels) {
				return
			}
		}
	}

	t.Errorf("Metric %s with labels %v not found", metricName, labels)
}

// labelsMatch checks if metric labels match expected labels
func labelsMatch(metricLabels []*dto.LabelPair, expected map[string]string) bool {
	if len(metricLabels) != len(expected) {
		return false
	}

	for _, label := range metricLabels {
		expectedValue, exists := expected[label.GetName()]
		if !exists || expectedValue != label.GetValue() {
			return false
		}
	}

	return true
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for condition: %s", message)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
