// Package ownerlock serializes work per owning account. One owner's
// operations run one at a time; different owners proceed in parallel.
package ownerlock

import "sync"

type Set struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewSet() *Set {
	return &Set{locks: make(map[int64]*sync.Mutex)}
}

// Acquire blocks until the owner's exclusive scope is free and returns the
// release func. Callers must release on every exit path.
func (s *Set) Acquire(owner int64) (release func()) {
	s.mu.Lock()
	l, ok := s.locks[owner]
	if !ok {
		l = &sync.Mutex{}
		s.locks[owner] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
