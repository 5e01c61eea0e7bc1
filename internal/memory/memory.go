// Package memory implements Wasm page-granular (64KiB) linear memories
// with a Static or Dynamic allocation style, guard bytes, monotonic grow,
// and bit-exact memory.{copy,fill,init}.
//
// Grounded on original_source/lib/vm/src/memory.rs for the Static-reserve-
// with-guard vs Dynamic-reallocate-on-grow split and the shared-memory
// RWLock discipline, and on internal/engine/compiler/engine.go's
// moduleContext fields, which document that generated code reads a
// memory's base pointer and current length directly —
// internal/engine.LocalMemorySlot mirrors that.
package memory

import (
	"sync"

	"github.com/pkg/errors"
)

// PageSize is the Wasm linear memory page granularity.
const PageSize = 65536

// hardPageLimit is the Wasm 1.0 hard limit: pages must fit in a u16-ish
// count domain.
const hardPageLimit = 1 << 16

// Style selects the allocation strategy.
type Style int

const (
	// StyleDynamic reserves exactly the minimum plus guard bytes and may
	// relocate (reallocate + copy) on grow.
	StyleDynamic Style = iota
	// StyleStatic reserves bound pages plus guard bytes up front; the
	// base pointer never moves for the memory's lifetime.
	StyleStatic
)

// Sharing selects whether a memory may be observed by multiple holders
// concurrently.
type Sharing int

const (
	Owned Sharing = iota
	Shared
)

var (
	// ErrMaxPagesExceeded is returned by Grow when the request would
	// exceed the memory's declared or platform maximum.
	ErrMaxPagesExceeded = errors.New("memory: grow would exceed maximum pages")
	// ErrReservationExceeded is returned by Grow when growth would exceed
	// the reserved virtual range (only possible for Static memories,
	// since Dynamic memories simply reallocate a larger reservation).
	ErrReservationExceeded = errors.New("memory: grow would exceed reservation")
	// ErrHardLimit is returned when pages would reach the Wasm 2^16 page
	// hard limit.
	ErrHardLimit = errors.New("memory: pages would exceed the 2^16 hard limit")
)

// config is immutable for a memory's lifetime.
type config struct {
	style       Style
	sharing     Sharing
	minPages    uint32
	maxPages    uint32 // module-declared or platform cap, whichever is lower; 0 means "no explicit max, only the hard limit applies"
	guardBytes  uint32
	boundPages  uint32 // only meaningful for StyleStatic
}

// Memory is a Wasm linear memory. The exported methods are safe for
// concurrent use when Sharing == Shared; Owned memories are the single-
// owner variant and callers must not share them across goroutines without
// their own synchronization — Shared linear memories are the only
// cross-thread shared mutable state this component exposes.
type Memory struct {
	cfg config

	// mu guards grow; the fast path (read/write from generated code)
	// never takes mu — reads/writes by compiled code use the base pointer
	// directly, with no lock.
	mu     sync.RWMutex
	buf    []byte // len(buf) == reservedBytes; only [0:pages*PageSize) is "accessible"
	pages  uint32
}

// New allocates a LinearMemory. guardBytes is the platform's chosen
// guard-zone size (0 is legal and
// simply disables the optimization of skipping some bounds checks — this
// engine always bounds-checks explicitly regardless, see Copy/Fill/Init
// below, so guardBytes only affects reservation bookkeeping here).
func New(style Style, sharing Sharing, minPages, maxPages, boundPages, guardBytes uint32) (*Memory, error) {
	if maxPages == 0 || maxPages > hardPageLimit {
		maxPages = hardPageLimit
	}
	if minPages > maxPages {
		return nil, errors.Errorf("memory: minimum pages %d exceeds maximum %d", minPages, maxPages)
	}
	if sharing == Shared && style == StyleDynamic {
		return nil, errors.New("memory: shared memories must use the Static style")
	}

	var reservePages uint32
	switch style {
	case StyleStatic:
		reservePages = boundPages
		if reservePages < minPages {
			reservePages = minPages
		}
	default:
		reservePages = minPages
	}

	reserveBytes := uint64(reservePages)*PageSize + uint64(guardBytes)
	buf := make([]byte, reserveBytes)

	return &Memory{
		cfg: config{
			style:      style,
			sharing:    sharing,
			minPages:   minPages,
			maxPages:   maxPages,
			guardBytes: guardBytes,
			boundPages: boundPages,
		},
		buf:   buf,
		pages: minPages,
	}, nil
}

// Pages returns the current accessible size in pages. This never locks,
// even for Shared memories: m.pages is only ever written by Grow under
// m.mu, and a racing reader observing a stale page count is the same
// memory model Wasm shared memory itself exposes to compiled code (only
// atomic operations on the data itself are ordered; the page count is
// read the same way compiled code reads VMContext.current_length).
func (m *Memory) Pages() uint32 {
	return m.pages
}

// Len returns the current accessible size in bytes (VMContext's
// current_length field).
func (m *Memory) Len() uint32 { return m.Pages() * PageSize }

// Base returns the base pointer of the accessible region. For StyleStatic
// this address is stable for the instance's lifetime: any two
// observations return a bit-identical base. For StyleDynamic it may
// change after a Grow that reallocates. Never locks: see Pages.
func (m *Memory) Base() []byte {
	return m.buf[:m.pages*PageSize]
}

// Grow attempts to add delta pages, returning the prior page count and
// true on success. On failure the memory is left entirely unchanged;
// grow is monotonic and never shrinks a memory.
func (m *Memory) Grow(delta uint32) (oldPages uint32, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newPages := m.pages + delta
	if delta > 0 && newPages < m.pages { // overflow
		return m.pages, false
	}
	if newPages > m.cfg.maxPages || newPages > hardPageLimit {
		return m.pages, false
	}

	newBytes := uint64(newPages) * PageSize
	reserveBytes := uint64(len(m.buf))

	switch m.cfg.style {
	case StyleStatic:
		if newBytes+uint64(m.cfg.guardBytes) > reserveBytes {
			return m.pages, false // would exceed the fixed reservation; base never moves.
		}
		// Already reserved: nothing to copy, just expose more of it.
	default: // StyleDynamic: may reallocate.
		if newBytes+uint64(m.cfg.guardBytes) > reserveBytes {
			newBuf := make([]byte, newBytes+uint64(m.cfg.guardBytes))
			copy(newBuf, m.buf[:m.pages*PageSize])
			m.buf = newBuf
		}
	}

	old := m.pages
	m.pages = newPages
	return old, true
}

// boundsCheck returns an error unless [offset, offset+length) lies fully
// within the currently-accessible region, checking for u32 overflow first:
// copy/fill/init trap before any byte is written if the range would
// overflow u32 or exceed current_length.
func (m *Memory) boundsCheck(offset, length uint32) error {
	end := uint64(offset) + uint64(length)
	if end > uint64(m.Len()) {
		return ErrOutOfBounds
	}
	return nil
}

// ErrOutOfBounds is the trap condition for copy/fill/init range checks;
// internal/engine maps this to TrapCodeOutOfBounds at the call site that
// invoked the memory operation.
var ErrOutOfBounds = errors.New("heap-out-of-bounds")

// Copy implements memory.copy: validates the full range before writing a
// single byte, then behaves as if through an intermediate buffer so
// overlapping src/dst ranges are handled correctly. Never locks: see
// Pages. A racing Grow is safe because Grow only ever extends the
// accessible range or reallocates to a strictly larger buffer, so a
// bounds check against a page count read before or after a concurrent
// Grow is always checking against a valid (if possibly stale) buffer.
func (m *Memory) Copy(dst, src, length uint32) error {
	if err := m.boundsCheck(src, length); err != nil {
		return err
	}
	if err := m.boundsCheck(dst, length); err != nil {
		return err
	}
	buf := m.buf[:m.pages*PageSize]
	// Go's copy() is already memmove-equivalent: correct for overlap.
	copy(buf[dst:dst+length], buf[src:src+length])
	return nil
}

// Fill implements memory.fill. Never locks: see Pages.
func (m *Memory) Fill(dst uint32, value byte, length uint32) error {
	if err := m.boundsCheck(dst, length); err != nil {
		return err
	}
	buf := m.buf[:m.pages*PageSize]
	region := buf[dst : dst+length]
	for i := range region {
		region[i] = value
	}
	return nil
}

// Init implements memory.init from a (possibly already-dropped) data
// segment: a dropped segment's length is treated as zero. Never locks:
// see Pages.
func (m *Memory) Init(dst uint32, segment []byte, segDropped bool, src, length uint32) error {
	effectiveLen := uint32(len(segment))
	if segDropped {
		effectiveLen = 0
	}
	if uint64(src)+uint64(length) > uint64(effectiveLen) {
		return ErrOutOfBounds
	}
	if err := m.boundsCheck(dst, length); err != nil {
		return err
	}
	buf := m.buf[:m.pages*PageSize]
	copy(buf[dst:dst+length], segment[src:src+length])
	return nil
}

// ReadAt and WriteAt are the single-byte-granular accessors generated code
// would inline directly against Base(); provided here for tests and for
// the syscall dispatcher's bounds-checked guest-pointer translation.
// Never locks: see Pages.
func (m *Memory) ReadAt(offset, length uint32) ([]byte, error) {
	if err := m.boundsCheck(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.buf[offset:uint64(offset)+uint64(length)])
	return out, nil
}

// WriteAt writes data at offset, bounds-checked against current_length.
// Never locks: see Pages.
func (m *Memory) WriteAt(offset uint32, data []byte) error {
	if err := m.boundsCheck(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.buf[offset:uint64(offset)+uint64(len(data))], data)
	return nil
}

// Style and Sharing accessors, used by internal/engine when filling a
// VMContext's LocalMemorySlot and by tests asserting invariants.
func (m *Memory) Style() Style     { return m.cfg.style }
func (m *Memory) Sharing() Sharing { return m.cfg.sharing }
func (m *Memory) MaxPages() uint32 { return m.cfg.maxPages }
