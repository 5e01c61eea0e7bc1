package syscall

import (
	"errors"
	"net"
	"time"

	"github.com/wazergo/runtime/internal/syscall/wasip1"
)

// SubscriptionKind distinguishes what poll_oneoff is waiting on.
type SubscriptionKind int

const (
	SubscriptionClock SubscriptionKind = iota
	SubscriptionFdRead
	SubscriptionFdWrite
)

// Subscription is one entry of a poll_oneoff call: either "wake after this
// much time" or "wake when this fd becomes ready."
type Subscription struct {
	UserData uint64
	Kind     SubscriptionKind
	Fd       Fd
	Timeout  time.Duration // only meaningful for SubscriptionClock
}

// Event is one poll_oneoff result, correlated back to its Subscription via
// UserData.
type Event struct {
	UserData uint64
	Errno    wasip1.Errno
	Kind     SubscriptionKind
}

// PollOneoff blocks until at least one subscription is ready, then reports
// every ready one. Clock subscriptions are satisfied by a timer. Fd
// subscriptions are satisfied eagerly for files, directories, and stdio,
// which this runtime always treats as ready (no epoll-style readiness
// notification is plumbed through internal/vfs for them); a bad fd also
// reports immediately, as an error event. Socket fd-read subscriptions get
// a real non-blocking readiness probe (see pollReadReady): a connected
// socket with nothing to read yet is not reported ready, so a poll_oneoff
// call mixing a not-yet-ready read subscription with a clock subscription
// only fires the clock subscription once its deadline elapses.
func (d *Dispatcher) PollOneoff(subs []Subscription) []Event {
	events := make([]Event, 0, len(subs))
	var minTimeout time.Duration
	haveTimeout := false

	for _, s := range subs {
		switch s.Kind {
		case SubscriptionClock:
			if !haveTimeout || s.Timeout < minTimeout {
				minTimeout = s.Timeout
				haveTimeout = true
			}
		case SubscriptionFdRead, SubscriptionFdWrite:
			desc, ok := d.FDs.Get(s.Fd)
			if !ok {
				events = append(events, Event{UserData: s.UserData, Errno: badf(), Kind: s.Kind})
				continue
			}
			if d.pollReady(desc, s.Kind) {
				events = append(events, Event{UserData: s.UserData, Errno: wasip1.ErrnoSuccess, Kind: s.Kind})
			}
		}
	}

	if len(events) == 0 && haveTimeout {
		time.Sleep(minTimeout)
		for _, s := range subs {
			if s.Kind == SubscriptionClock {
				events = append(events, Event{UserData: s.UserData, Errno: wasip1.ErrnoSuccess, Kind: s.Kind})
			}
		}
	}
	return events
}

// pollReady reports whether desc is currently ready for kind
// (SubscriptionFdRead or SubscriptionFdWrite) without blocking.
func (d *Dispatcher) pollReady(desc *descriptor, kind SubscriptionKind) bool {
	if desc.kind != descSocket {
		// Files, directories, and stdio streams never block the way a
		// socket can: a read or write against them always completes
		// (possibly with a short count or an error), so they are always
		// reported ready.
		return true
	}
	if kind == SubscriptionFdWrite {
		// Write readiness on a connected socket is not modeled: this
		// runtime has no send-buffer-full condition to probe for, so a
		// writable descriptor is always reported ready.
		return true
	}
	return desc.conn.pollReadReady()
}

// pollReadReady performs a non-blocking readiness probe for a socket's
// read side: an immediate deadline turns a blocking Read into one that
// either returns data/EOF/error right away or times out. Any byte read in
// the course of probing is stashed in peeked so the guest's next
// sock_recv/fd_read still observes it.
func (s *socketState) pollReadReady() bool {
	if len(s.peeked) > 0 {
		return true
	}
	if s.listener != nil {
		// Accept-readiness isn't modeled separately: a listening socket is
		// always reported ready, matching the pre-existing SockAccept
		// behavior of blocking inline until a connection arrives.
		return true
	}
	if s.conn == nil {
		return true
	}

	// A deadline of exactly "now" races the data actually landing on the
	// wire; a tiny positive window keeps the probe effectively
	// non-blocking while giving an already-in-flight write a chance to
	// rendezvous.
	if err := s.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		// The underlying conn doesn't support deadlines: there is no way
		// to probe without blocking, so report ready rather than wedge
		// poll_oneoff forever.
		return true
	}
	defer s.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 1)
	n, err := s.conn.Read(buf)
	if n > 0 {
		s.peeked = append(s.peeked, buf[:n]...)
		return true
	}
	if err == nil {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	// EOF or any other error: report ready so the guest's own Read
	// observes the same condition instead of polling on it forever.
	return true
}

// RunState is where a suspended instance sits in the cooperative
// deep-sleep/rewind state machine.
type RunState int

const (
	Running RunState = iota
	Parked
	Completed
)

// RewindState captures everything needed to resume a parked instance:
// the guest-visible snapshot of the call it was in the middle of, recorded
// by the host function that decided to park rather than return.
type RewindState struct {
	// FuncIndex and Args identify the call to re-issue on resume; this
	// runtime re-enters the exported function from the top rather than
	// restoring an in-flight native call stack, so the parked host
	// function itself is responsible for recording enough guest-side
	// state (e.g. a saved continuation pointer in linear memory) for the
	// rewound call to pick up where it left off.
	FuncIndex uint32
	Args      []uint64
	Reason    string
}

// Suspension is the per-instance cooperative-suspension state machine.
type Suspension struct {
	state RunState
	saved *RewindState
}

// Park transitions a running instance into Parked, recording rs so a later
// Resume can re-issue the call. Park is a no-op (returns false) if the
// instance isn't Running, since parking only ever happens from inside an
// active call.
func (s *Suspension) Park(rs RewindState) bool {
	if s.state != Running {
		return false
	}
	s.state = Parked
	s.saved = &rs
	return true
}

// Resume transitions a Parked instance back to Running and returns the
// RewindState it was parked with, or (nil, false) if it wasn't parked.
func (s *Suspension) Resume() (*RewindState, bool) {
	if s.state != Parked {
		return nil, false
	}
	s.state = Running
	saved := s.saved
	s.saved = nil
	return saved, true
}

// Complete marks the instance's execution finished; no further Park/Resume
// calls are meaningful afterward.
func (s *Suspension) Complete() { s.state = Completed }

// State reports the current run state.
func (s *Suspension) State() RunState { return s.state }
