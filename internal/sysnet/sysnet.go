// Package sysnet is the host-side network boundary: it implements
// syscall.Dialer against the real operating system's sockets, applying a
// connection-rate limit and a concurrent-accept cap before ever touching
// net.Dial/net.Listen. internal/syscall consults internal/netrule and only
// then calls through here — this package never makes an admission decision
// of its own.
//
// Grounded conceptually on original_source/lib/virtual-net/src/client.rs's
// RemoteNetworking (the layer that turns an admitted request into a real
// socket call); the message-passing transport client.rs builds around is
// not reproduced since this runtime calls directly into net rather than
// proxying through a remote network namespace.
package sysnet

import (
	"context"
	"net"

	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"
)

// Dialer executes admitted outbound connections and inbound listeners
// against the real network, pacing new connections with a token-bucket
// limiter and bounding each listener's concurrent accepted connections.
type Dialer struct {
	dialer       net.Dialer
	limiter      *rate.Limiter
	maxAcceptedConns int
}

// Config parametrizes New; zero values select reasonable defaults (10
// connection attempts/sec burst 20, 256 concurrently accepted connections
// per listener).
type Config struct {
	DialsPerSecond   float64
	DialBurst        int
	MaxAcceptedConns int
}

// New builds a Dialer applying cfg's limits.
func New(cfg Config) *Dialer {
	if cfg.DialsPerSecond <= 0 {
		cfg.DialsPerSecond = 10
	}
	if cfg.DialBurst <= 0 {
		cfg.DialBurst = 20
	}
	if cfg.MaxAcceptedConns <= 0 {
		cfg.MaxAcceptedConns = 256
	}
	return &Dialer{
		limiter:          rate.NewLimiter(rate.Limit(cfg.DialsPerSecond), cfg.DialBurst),
		maxAcceptedConns: cfg.MaxAcceptedConns,
	}
}

// Dial waits for a rate-limiter token, then opens a real connection. The
// caller (internal/syscall) has already admitted network/address against a
// netrule.RuleSet; this method performs no policy check of its own.
func (d *Dialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return d.dialer.DialContext(ctx, network, address)
}

// Listen opens a real listener wrapped in golang.org/x/net/netutil's
// LimitListener, so a single guest-opened listener cannot exhaust host file
// descriptors by accepting unboundedly many connections.
func (d *Dialer) Listen(ctx context.Context, network, address string) (net.Listener, error) {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return netutil.LimitListener(ln, d.maxAcceptedConns), nil
}
