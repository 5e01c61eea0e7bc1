package engine

import (
	"sync"

	"github.com/petermattis/goid"
)

// goroutineLocal emulates a single-pointer thread-local whose read is a
// pure load, on top of Go, which has no first-class goroutine-local
// storage. We key a shared map by goroutine ID (github.com/petermattis/goid,
// already an indirect dependency of this project's ambient stack via
// moby-moby) rather than by anything allocation-heavy: never hold a
// reference across a handler transition — get() always re-reads the map.
type goroutineLocal[T comparable] struct {
	mu sync.RWMutex
	m  map[int64]T
}

func newGoroutineLocal[T comparable]() *goroutineLocal[T] {
	return &goroutineLocal[T]{m: make(map[int64]T)}
}

func (g *goroutineLocal[T]) get() T {
	id := goid.Get()
	g.mu.RLock()
	v := g.m[id]
	g.mu.RUnlock()
	return v
}

func (g *goroutineLocal[T]) set(v T) {
	id := goid.Get()
	g.mu.Lock()
	defer g.mu.Unlock()
	var zero T
	if v == zero {
		delete(g.m, id)
		return
	}
	g.m[id] = v
}
