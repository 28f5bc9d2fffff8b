package ntp

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter paces outgoing request datagrams, both overall and per
// candidate address.
type RateLimiter struct {
	global     *rate.Limiter
	perAddress map[string]*rate.Limiter
	mu         sync.RWMutex
	perRate    rate.Limit
	burstSize  int
}

// NewRateLimiter creates a limiter allowing requestsPerSecond datagrams in
// total and per address, with the given burst.
func NewRateLimiter(requestsPerSecond float64, burstSize int) *RateLimiter {
	if burstSize < 1 {
		burstSize = 1
	}
	return &RateLimiter{
		global:     rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize),
		perAddress: make(map[string]*rate.Limiter),
		perRate:    rate.Limit(requestsPerSecond),
		burstSize:  burstSize,
	}
}

// Wait blocks until a request to addr may be sent
func (rl *RateLimiter) Wait(ctx context.Context, addr string) error {
	if err := rl.global.Wait(ctx); err != nil {
		return fmt.Errorf("global rate limit: %w", err)
	}

	limiter := rl.getLimiter(addr)
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit for %s: %w", addr, err)
	}

	return nil
}

// getLimiter gets or creates the limiter for one address
func (rl *RateLimiter) getLimiter(addr string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.perAddress[addr]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.perAddress[addr]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.perRate, rl.burstSize)
	rl.perAddress[addr] = limiter
	return limiter
}

