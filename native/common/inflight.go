package common

import (
	"errors"
	"sync"
)

var ErrReentrantCall = errors.New("reentrant call on record")

// KeyedMutex provides blocking mutual exclusion per 32-byte record
// identifier. Operations on distinct identifiers proceed independently.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[[32]byte]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex returns an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[[32]byte]*recordLock)}
}

// Lock blocks until the identifier is free and returns the release function,
// which must be called exactly once.
func (m *KeyedMutex) Lock(id [32]byte) func() {
	m.mu.Lock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &recordLock{}
		m.locks[id] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		m.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// InflightGuard tracks record identifiers with an outstanding external
// transfer. Entry points consult it before taking the record lock so a
// transfer callback attempting to re-invoke an operation on the same record
// fails fast instead of deadlocking.
type InflightGuard struct {
	mu   sync.Mutex
	busy map[[32]byte]struct{}
}

// NewInflightGuard returns an empty guard.
func NewInflightGuard() *InflightGuard {
	return &InflightGuard{busy: make(map[[32]byte]struct{})}
}

// Mark flags the identifier as having a transfer outstanding. It returns
// ErrReentrantCall when the identifier is already marked. The returned
// release function must be called exactly once.
func (g *InflightGuard) Mark(id [32]byte) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[id]; ok {
		return nil, ErrReentrantCall
	}
	g.busy[id] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.busy, id)
		g.mu.Unlock()
	}, nil
}

// InFlight reports whether a transfer is outstanding for the identifier.
func (g *InflightGuard) InFlight(id [32]byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[id]
	return ok
}
