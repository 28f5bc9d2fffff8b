package ntp

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockExchanger replays a scripted sequence of exchange results
type MockExchanger struct {
	mu        sync.Mutex
	results   []mockResult
	fallback  error
	callCount int
	servers   []string
	timeouts  []time.Duration
}

type mockResult struct {
	measurement *Measurement
	err         error
}

// NewMockExchanger creates a mock whose unscripted calls time out
func NewMockExchanger() *MockExchanger {
	return &MockExchanger{
		fallback: ErrNoResponse,
	}
}

// Exchange implements Exchange by returning the next scripted result
func (m *MockExchanger) Exchange(ctx context.Context, server string, timeout time.Duration) (*Measurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.servers = append(m.servers, server)
	m.timeouts = append(m.timeouts, timeout)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(m.results) == 0 {
		return nil, m.fallback
	}

	next := m.results[0]
	m.results = m.results[1:]
	if next.err != nil {
		return nil, next.err
	}
	cp := *next.measurement
	return &cp, nil
}

// AddSuccess scripts a successful attempt
func (m *MockExchanger) AddSuccess(measurement Measurement) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append(m.results, mockResult{measurement: &measurement})
}

// AddFailure scripts a failed attempt
func (m *MockExchanger) AddFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append(m.results, mockResult{err: err})
}

// SetFallback sets the error returned once the script is exhausted
func (m *MockExchanger) SetFallback(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fallback = err
}

// GetCallCount returns the number of attempts made
func (m *MockExchanger) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.callCount
}

// Timeouts returns the timeout passed to each attempt
func (m *MockExchanger) Timeouts() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]time.Duration(nil), m.timeouts...)
}

// MockClock records clock-set calls
type MockClock struct {
	mu      sync.Mutex
	targets []int64
	err     error
}

// NewMockClock creates a clock that accepts every set
func NewMockClock() *MockClock {
	return &MockClock{}
}

// SetTime implements ClockSetter
func (c *MockClock) SetTime(targetMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.targets = append(c.targets, targetMs)
	return c.err
}

// FailWith makes every following SetTime return err
func (c *MockClock) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		err = errors.New("operation not permitted")
	}
	c.err = err
}

// Targets returns every requested target time
func (c *MockClock) Targets() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]int64(nil), c.targets...)
}

// StaticPrivilege is a PrivilegeChecker with a fixed answer
type StaticPrivilege bool

// IsPrivileged implements PrivilegeChecker
func (p StaticPrivilege) IsPrivileged() bool {
	return bool(p)
}
