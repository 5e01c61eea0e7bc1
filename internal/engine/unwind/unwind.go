// Package unwind implements in-process exception-table (LSDA) parsing so
// that guest-thrown exceptions carrying a 64-bit tag land in the matching
// typed catch clause of the innermost enclosing try region.
//
// Grounded on original_source/lib/vm/src/libcalls/eh/dwarf/eh.rs's LSDA
// structure (call-site table of {pc range, landing pad, action}, an action
// table threading through one or more typed catch clauses per call site).
// The byte-level DWARF encoding details (DW_EH_PE_* base encodings) are the
// external code generator's concern; this package only needs the decoded
// shape to route a raised tag to a landing pad, so it models the table
// directly rather than re-deriving a DWARF varint reader.
package unwind

import "sync"

// CallSite is one row of a function's call-site table: the pc range that,
// if an exception is raised while executing within it, should run the
// landing pad at LandingPad, trying each of Actions in order.
type CallSite struct {
	PCLo, PCHi uintptr
	LandingPad uintptr
	Actions    []Action
}

// Action is one typed catch clause: Tag identifies the exception type it
// catches (0 means catch-all / cleanup).
type Action struct {
	Tag        uint64
	LandingPad uintptr
}

// Table is one function's decoded exception table.
type Table struct {
	CallSites []CallSite
}

// FindCallSite returns the CallSite covering pc, or ok=false if pc falls
// outside every declared region (no cleanup/catch applies there).
func (t *Table) FindCallSite(pc uintptr) (CallSite, bool) {
	for _, cs := range t.CallSites {
		if pc >= cs.PCLo && pc < cs.PCHi {
			return cs, true
		}
	}
	return CallSite{}, false
}

// FindAction returns the landing pad within cs matching tag, or catch-all
// action if one is present and no typed match is found.
func (cs CallSite) FindAction(tag uint64) (uintptr, bool) {
	var catchAll *Action
	for i := range cs.Actions {
		a := &cs.Actions[i]
		if a.Tag == tag {
			return a.LandingPad, true
		}
		if a.Tag == 0 {
			catchAll = a
		}
	}
	if catchAll != nil {
		return catchAll.LandingPad, true
	}
	return 0, false
}

// Cache decodes and caches Tables keyed by the code pointer range they
// describe: the platform-dependent encodings are parsed lazily per frame,
// and the decoded tables are cached keyed by that range.
type Cache struct {
	mu      sync.RWMutex
	decoded map[rangeKey]*Table
}

type rangeKey struct{ lo, hi uintptr }

// NewCache constructs an empty, process-wide-shareable decode cache.
func NewCache() *Cache {
	return &Cache{decoded: make(map[rangeKey]*Table)}
}

// Lookup returns the decoded Table for the function occupying [lo, hi),
// calling decode (supplied by the artifact loader, which knows where the
// raw LSDA bytes for that function live) only on first access.
func (c *Cache) Lookup(lo, hi uintptr, decode func() *Table) *Table {
	key := rangeKey{lo, hi}

	c.mu.RLock()
	t, ok := c.decoded[key]
	c.mu.RUnlock()
	if ok {
		return t
	}

	t = decode()
	c.mu.Lock()
	c.decoded[key] = t
	c.mu.Unlock()
	return t
}

// Invalidate drops a cached decode, e.g. when an Instance holding that code
// range is dropped and the address space may be reused.
func (c *Cache) Invalidate(lo, hi uintptr) {
	c.mu.Lock()
	delete(c.decoded, rangeKey{lo, hi})
	c.mu.Unlock()
}
