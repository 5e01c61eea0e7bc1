package syscall

import (
	"context"
	"errors"
	"net"

	"github.com/wazergo/runtime/internal/journal"
	"github.com/wazergo/runtime/internal/syscall/wasip1"
)

// Dialer is the host-side network boundary the dispatcher calls through
// after a RuleSet has already admitted the address: internal/sysnet is the
// production implementation, wrapping the real net package; tests supply an
// in-memory fake so admission logic can be exercised without touching a
// socket.
type Dialer interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)
	Listen(ctx context.Context, network, address string) (net.Listener, error)
}

// socketState is the descriptor payload for an open or listening socket.
type socketState struct {
	conn     net.Conn
	listener net.Listener
	// peeked holds bytes consumed by a poll_oneoff readiness probe (see
	// pollReadReady in poll.go) that have not yet been delivered to the
	// guest; the next sock_recv/fd_read drains this before calling Read.
	peeked []byte
}

// admit consults the dispatcher's RuleSet for a host:port pair, resolving
// domains before checking, matching the admission order client.rs expects:
// "resolve, then gate the resolved address" rather than gating the literal
// hostname (a rule written against an IP would otherwise never match).
func (d *Dispatcher) admit(ctx context.Context, network, address string) (string, wasip1.Errno) {
	if d.Rules == nil {
		return "", wasip1.ErrnoNotcapable
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", wasip1.ErrnoInval
	}
	portNum, perr := parsePort(port)
	if perr != nil {
		return "", wasip1.ErrnoInval
	}

	if ip := net.ParseIP(host); ip != nil {
		if !d.Rules.MatchesSocketAddr(ip, portNum) {
			return "", wasip1.ErrnoAcces
		}
		return address, wasip1.ErrnoSuccess
	}

	if !d.Rules.MatchesDomainAndPort(host, portNum) {
		return "", wasip1.ErrnoAcces
	}
	ips, lerr := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if lerr != nil || len(ips) == 0 {
		return "", wasip1.ErrnoNetunreach
	}
	if !d.Rules.MatchesIP(ips[0]) {
		return "", wasip1.ErrnoAcces
	}
	return net.JoinHostPort(ips[0].String(), port), wasip1.ErrnoSuccess
}

func parsePort(s string) (uint16, error) {
	var n uint16
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errInvalidPort
		}
		n = n*10 + uint16(c-'0')
	}
	return n, nil
}

var errInvalidPort = errors.New("syscall: invalid port")

// SockConnect implements sock_connect: admit the address against the
// RuleSet, then dial it through the Dialer and install a fresh socket
// descriptor for the resulting connection.
func (d *Dispatcher) SockConnect(ctx context.Context, network, address string) (Fd, wasip1.Errno) {
	resolved, e := d.admit(ctx, network, address)
	if e != wasip1.ErrnoSuccess {
		return 0, e
	}
	conn, err := d.Net.Dial(ctx, network, resolved)
	if err != nil {
		return 0, wasip1.ErrnoConnrefused
	}
	fd := d.FDs.Insert(&descriptor{
		kind:   descSocket,
		conn:   &socketState{conn: conn},
		rights: RightFdRead | RightFdWrite | RightSockShutdown,
	})
	d.record(journal.RecordSockConnect, sockConnectBody{Network: network, Address: resolved})
	return fd, wasip1.ErrnoSuccess
}

// sockConnectBody is the journaled payload for RecordSockConnect: the
// resolved address actually dialed, not the literal one the guest passed,
// so replay reconnects to the same host even if DNS has since changed.
type sockConnectBody struct {
	Network string
	Address string
}

// SockListen implements sock_listen: admit the bind address, then open a
// listener and install a socket descriptor accepting RightSockAccept.
func (d *Dispatcher) SockListen(ctx context.Context, network, address string) (Fd, wasip1.Errno) {
	resolved, e := d.admit(ctx, network, address)
	if e != wasip1.ErrnoSuccess {
		return 0, e
	}
	ln, err := d.Net.Listen(ctx, network, resolved)
	if err != nil {
		return 0, wasip1.ErrnoAddrinuse
	}
	fd := d.FDs.Insert(&descriptor{
		kind:   descSocket,
		conn:   &socketState{listener: ln},
		rights: RightSockAccept | RightSockShutdown,
	})
	return fd, wasip1.ErrnoSuccess
}

// SockAccept implements sock_accept: block for the next inbound connection
// on a listening socket and install it as a new socket descriptor.
func (d *Dispatcher) SockAccept(fd Fd) (Fd, wasip1.Errno) {
	desc, ok := d.FDs.Get(fd)
	if !ok || desc.kind != descSocket || desc.conn == nil || desc.conn.listener == nil {
		return 0, badf()
	}
	if desc.rights&RightSockAccept == 0 {
		return 0, wasip1.ErrnoNotcapable
	}
	conn, err := desc.conn.listener.Accept()
	if err != nil {
		return 0, wasip1.ErrnoIo
	}
	newFd := d.FDs.Insert(&descriptor{
		kind:   descSocket,
		conn:   &socketState{conn: conn},
		rights: RightFdRead | RightFdWrite | RightSockShutdown,
	})
	return newFd, wasip1.ErrnoSuccess
}

// SockSend implements sock_send.
func (d *Dispatcher) SockSend(fd Fd, buf []byte) (uint32, wasip1.Errno) {
	desc, ok := d.FDs.Get(fd)
	if !ok || desc.kind != descSocket || desc.conn == nil || desc.conn.conn == nil {
		return 0, badf()
	}
	if desc.rights&RightFdWrite == 0 {
		return 0, wasip1.ErrnoNotcapable
	}
	n, err := desc.conn.conn.Write(buf)
	if err != nil {
		return uint32(n), wasip1.ErrnoIo
	}
	if n > 0 {
		d.record(journal.RecordSockSend, sockDataBody{Fd: fd, Bytes: uint32(n)})
	}
	return uint32(n), wasip1.ErrnoSuccess
}

// SockRecv implements sock_recv.
func (d *Dispatcher) SockRecv(fd Fd, buf []byte) (uint32, wasip1.Errno) {
	desc, ok := d.FDs.Get(fd)
	if !ok || desc.kind != descSocket || desc.conn == nil || desc.conn.conn == nil {
		return 0, badf()
	}
	if desc.rights&RightFdRead == 0 {
		return 0, wasip1.ErrnoNotcapable
	}

	var n int
	var err error
	if len(desc.conn.peeked) > 0 {
		n = copy(buf, desc.conn.peeked)
		desc.conn.peeked = desc.conn.peeked[n:]
	} else {
		n, err = desc.conn.conn.Read(buf)
	}
	if err != nil {
		return uint32(n), wasip1.ErrnoIo
	}
	if n > 0 {
		d.record(journal.RecordSockRecv, sockDataBody{Fd: fd, Bytes: uint32(n)})
	}
	return uint32(n), wasip1.ErrnoSuccess
}

// sockDataBody is the journaled payload shared by RecordSockSend and
// RecordSockRecv: only the byte count is needed to replay the transfer's
// effect on a deterministic consumer, not the payload itself, which may
// contain data the journal should not retain.
type sockDataBody struct {
	Fd    Fd
	Bytes uint32
}

// SockShutdown implements sock_shutdown, closing the descriptor outright
// since this runtime does not model half-closed sockets separately.
func (d *Dispatcher) SockShutdown(fd Fd) wasip1.Errno {
	desc, ok := d.FDs.Remove(fd)
	if !ok || desc.kind != descSocket {
		return badf()
	}
	if desc.conn != nil {
		if desc.conn.conn != nil {
			desc.conn.conn.Close()
		}
		if desc.conn.listener != nil {
			desc.conn.listener.Close()
		}
	}
	return wasip1.ErrnoSuccess
}
