package ntp

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Resolver turns a server name into the ordered candidate addresses of
// one exchange attempt.
type Resolver interface {
	Resolve(ctx context.Context, server string) ([]netip.AddrPort, error)
}

// Invalidator is implemented by resolvers that cache answers
type Invalidator interface {
	Invalidate(server string)
}

// LookupFunc resolves a hostname to addresses of both families
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// DNSCacheEntry represents a cached DNS resolution
type DNSCacheEntry struct {
	Addrs      []netip.Addr
	ExpiresAt  time.Time
	ErrorCount int
}

// DNSCache resolves server names and keeps the answer for the rest of the
// run, so retries do not repeat the lookup.
type DNSCache struct {
	mu          sync.RWMutex
	cache       map[string]*DNSCacheEntry
	enabled     bool
	ttl         time.Duration
	defaultPort uint16
	lookup      LookupFunc
	log         zerolog.Logger
}

// DNSCacheConfig configures the DNS cache behavior
type DNSCacheConfig struct {
	Enabled     bool
	TTL         time.Duration // default: 1min
	DefaultPort uint16        // default: 123
	Lookup      LookupFunc    // default: net.DefaultResolver.LookupNetIP
}

// NewDNSCache creates a resolver with an optional in-memory cache
func NewDNSCache(config DNSCacheConfig, log zerolog.Logger) *DNSCache {
	if config.TTL == 0 {
		config.TTL = time.Minute
	}
	if config.DefaultPort == 0 {
		config.DefaultPort = DefaultPort
	}
	if config.Lookup == nil {
		config.Lookup = net.DefaultResolver.LookupNetIP
	}

	return &DNSCache{
		cache:       make(map[string]*DNSCacheEntry),
		enabled:     config.Enabled,
		ttl:         config.TTL,
		defaultPort: config.DefaultPort,
		lookup:      config.Lookup,
		log:         log,
	}
}

// Resolve returns every address for server, in resolver order. The server
// may carry an explicit port ("host:port", "[v6]:port").
func (c *DNSCache) Resolve(ctx context.Context, server string) ([]netip.AddrPort, error) {
	host, port, err := splitServer(server, c.defaultPort)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResolution, server, err)
	}

	// IP literals need no lookup
	if addr, err := netip.ParseAddr(host); err == nil {
		return withPort([]netip.Addr{addr}, port), nil
	}

	addrs, err := c.lookupCached(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResolution, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s: no addresses", ErrResolution, host)
	}

	return withPort(addrs, port), nil
}

func (c *DNSCache) lookupCached(ctx context.Context, host string) ([]netip.Addr, error) {
	if !c.enabled {
		return c.lookup(ctx, "ip", host)
	}

	c.mu.RLock()
	entry, exists := c.cache[host]
	c.mu.RUnlock()

	if exists && time.Now().Before(entry.ExpiresAt) {
		c.log.Debug().
			Str("hostname", host).
			Int("addrs", len(entry.Addrs)).
			Msg("DNS cache hit")
		return entry.Addrs, nil
	}

	addrs, err := c.lookup(ctx, "ip", host)
	if err != nil || len(addrs) == 0 {
		// Fall back to the stale answer if one exists
		if exists {
			c.mu.Lock()
			entry.ErrorCount++
			c.mu.Unlock()

			c.log.Warn().
				Str("hostname", host).
				AnErr("lookup_error", err).
				Int("error_count", entry.ErrorCount).
				Msg("DNS resolution failed, using stale cache")
			return entry.Addrs, nil
		}
		return addrs, err
	}

	c.mu.Lock()
	c.cache[host] = &DNSCacheEntry{
		Addrs:     addrs,
		ExpiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()

	c.log.Debug().
		Str("hostname", host).
		Int("addrs", len(addrs)).
		Dur("ttl", c.ttl).
		Msg("DNS cache updated")

	return addrs, nil
}

// Invalidate expires the cached answer for server so the next Resolve
// looks it up again. The old addresses remain as the stale fallback.
func (c *DNSCache) Invalidate(server string) {
	host, _, err := splitServer(server, c.defaultPort)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.cache[host]; ok {
		entry.ExpiresAt = time.Time{}
	}
}

// splitServer separates an optional port from the server name
func splitServer(server string, defaultPort uint16) (string, uint16, error) {
	if server == "" {
		return "", 0, fmt.Errorf("empty server name")
	}

	host, portStr, err := net.SplitHostPort(server)
	if err != nil {
		// No port given. Bare IPv6 literals land here too.
		return strings.TrimSuffix(strings.TrimPrefix(server, "["), "]"), defaultPort, nil
	}

	p, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || p == 0 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}

	return host, uint16(p), nil
}

func withPort(addrs []netip.Addr, port uint16) []netip.AddrPort {
	out := make([]netip.AddrPort, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, netip.AddrPortFrom(a.Unmap(), port))
	}
	return out
}
