package ntp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/rs/zerolog"
)

// Measurement is the timestamp triple of one successful exchange, in Unix
// milliseconds. LocalAfterMs >= LocalBeforeMs is expected but not enforced.
type Measurement struct {
	LocalBeforeMs int64
	RemoteMs      int64
	LocalAfterMs  int64
	Address       string
}

// PacketConn is the datagram socket used for a single candidate
type PacketConn interface {
	SetReadDeadline(t time.Time) error
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
	ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error)
	Close() error
}

// ListenFunc opens an unconnected datagram socket for network "udp4" or "udp6"
type ListenFunc func(network string) (PacketConn, error)

func listenUDP(network string) (PacketConn, error) {
	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// candidateOutcome tags how the exchange with one address ended
type candidateOutcome int

const (
	outcomeSuccess candidateOutcome = iota
	outcomeTimeout
	outcomeShortSend
	outcomeShortRead
	outcomeMalformed
	outcomeSocketError
)

func (o candidateOutcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeTimeout:
		return "timeout"
	case outcomeShortSend:
		return "short_send"
	case outcomeShortRead:
		return "short_read"
	case outcomeMalformed:
		return "malformed"
	case outcomeSocketError:
		return "socket_error"
	default:
		return "unknown"
	}
}

// Exchanger performs one request/response attempt against every resolved
// address of a server, stopping at the first valid reply.
type Exchanger struct {
	resolver  Resolver
	listen    ListenFunc
	limiter   *RateLimiter
	now       func() time.Time
	onOutcome func(outcome string)
	log       zerolog.Logger
}

// ExchangerOption customizes an Exchanger
type ExchangerOption func(*Exchanger)

// WithListener replaces the socket factory
func WithListener(listen ListenFunc) ExchangerOption {
	return func(e *Exchanger) { e.listen = listen }
}

// WithRateLimiter paces request datagrams
func WithRateLimiter(limiter *RateLimiter) ExchangerOption {
	return func(e *Exchanger) { e.limiter = limiter }
}

// WithClock replaces the local clock used for the measurement timestamps.
// Socket deadlines always follow the wall clock.
func WithClock(now func() time.Time) ExchangerOption {
	return func(e *Exchanger) { e.now = now }
}

// WithOutcomeHook is called once per candidate with the outcome name
func WithOutcomeHook(hook func(outcome string)) ExchangerOption {
	return func(e *Exchanger) { e.onOutcome = hook }
}

// NewExchanger creates an exchanger resolving through resolver
func NewExchanger(resolver Resolver, log zerolog.Logger, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		resolver: resolver,
		listen:   listenUDP,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exchange resolves server and tries each candidate address in order.
// Per-candidate failures are absorbed; ErrNoResponse is returned once every
// candidate has been abandoned.
func (e *Exchanger) Exchange(ctx context.Context, server string, timeout time.Duration) (*Measurement, error) {
	candidates, err := e.resolver.Resolve(ctx, server)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s: no addresses", ErrResolution, server)
	}

	var lastErr error
	for i, addr := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx, addr.String()); err != nil {
				return nil, err
			}
		}

		m, outcome, err := e.tryCandidate(ctx, addr, timeout)
		if e.onOutcome != nil {
			e.onOutcome(outcome.String())
		}
		if outcome == outcomeSuccess {
			return m, nil
		}

		lastErr = err
		event := e.log.Debug()
		if outcome == outcomeMalformed {
			event = e.log.Warn()
		}
		event.
			Str("server", server).
			Str("address", addr.String()).
			Int("candidate", i+1).
			Int("candidates", len(candidates)).
			Str("outcome", outcome.String()).
			Err(err).
			Msg("Candidate abandoned")
	}

	// Every address failed, so the next attempt resolves afresh
	if inv, ok := e.resolver.(Invalidator); ok {
		inv.Invalidate(server)
	}

	return nil, fmt.Errorf("%w: %s (%d addresses): %w", ErrNoResponse, server, len(candidates), lastErr)
}

// tryCandidate runs one exchange on a socket scoped to addr. The socket is
// closed on every return path.
func (e *Exchanger) tryCandidate(ctx context.Context, addr netip.AddrPort, timeout time.Duration) (*Measurement, candidateOutcome, error) {
	network := "udp6"
	if addr.Addr().Is4() {
		network = "udp4"
	}

	conn, err := e.listen(network)
	if err != nil {
		return nil, outcomeSocketError, fmt.Errorf("open socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, outcomeSocketError, fmt.Errorf("set read deadline: %w", err)
	}

	req := EncodeRequest()
	before := e.now().UnixMilli()
	n, err := conn.WriteToUDPAddrPort(req, addr)
	if err != nil {
		return nil, outcomeSocketError, fmt.Errorf("send: %w", err)
	}
	if n != PacketSize {
		return nil, outcomeShortSend, fmt.Errorf("%w: %d of %d bytes", ErrShortSend, n, PacketSize)
	}

	buf := make([]byte, readBufferSize)
	n, from, err := conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, ErrExchangeTimeout) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, outcomeTimeout, fmt.Errorf("%w after %s", ErrExchangeTimeout, timeout)
		}
		return nil, outcomeSocketError, fmt.Errorf("receive: %w", err)
	}
	after := e.now().UnixMilli()

	if n < PacketSize {
		return nil, outcomeShortRead, fmt.Errorf("%w: got %d bytes", ErrTooShort, n)
	}

	hdr, err := DecodeResponse(buf[:n])
	if err != nil {
		return nil, outcomeMalformed, err
	}

	remote, ok := ToUnixMillis(hdr.Transmit[:])
	if !ok {
		return nil, outcomeMalformed, ErrBadTimestamp
	}

	source := from.Addr().Unmap().String()
	if !from.IsValid() {
		source = addr.Addr().String()
	}

	return &Measurement{
		LocalBeforeMs: before,
		RemoteMs:      remote,
		LocalAfterMs:  after,
		Address:       source,
	}, outcomeSuccess, nil
}
