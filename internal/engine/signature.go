package engine

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/wazergo/runtime/internal/modinfo"
)

// SignatureID is a dense, engine-scoped interned index for a FunctionType.
// Two signatures with identical parameter and result lists share an ID, so
// an indirect-call type check reduces to a single integer compare.
type SignatureID uint32

// SignatureRegistry interns FunctionTypes into dense indices. It is global
// to one Engine and is safe for concurrent use: interning is linearizable.
type SignatureRegistry struct {
	mu    sync.RWMutex
	byID  []modinfo.FunctionType
	index map[string]SignatureID

	// group collapses concurrent first-sight registrations of the same
	// signature down to one writer, so a burst of instantiations sharing
	// a never-before-seen signature doesn't serialize on the write lock
	// one-by-one.
	group singleflight.Group
}

// NewSignatureRegistry constructs an empty registry.
func NewSignatureRegistry() *SignatureRegistry {
	return &SignatureRegistry{index: make(map[string]SignatureID)}
}

// Intern returns the dense ID for ft, registering it if this is the first
// time an structurally-equal signature has been seen.
func (r *SignatureRegistry) Intern(ft modinfo.FunctionType) SignatureID {
	key := ft.String()

	r.mu.RLock()
	if id, ok := r.index[key]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	v, _, _ := r.group.Do(key, func() (interface{}, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if id, ok := r.index[key]; ok {
			return id, nil
		}
		id := SignatureID(len(r.byID))
		r.byID = append(r.byID, ft)
		r.index[key] = id
		return id, nil
	})
	return v.(SignatureID)
}

// Lookup returns the FunctionType for a previously interned ID.
func (r *SignatureRegistry) Lookup(id SignatureID) (modinfo.FunctionType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.byID) {
		return modinfo.FunctionType{}, false
	}
	return r.byID[id], true
}

// Equal is the indirect-call type check: two SignatureIDs refer to the
// same registry's dense index space, so equality of the IDs is equality
// of the underlying signatures.
func (id SignatureID) Equal(other SignatureID) bool { return id == other }
