package identity

import "sync"

// personLocks hands out one RWMutex per person id so that a block/unblock
// write and a concurrent validation read of the same person serialize,
// while requests for different persons never contend. Locks are created
// lazily and never removed; the population of persons on a site is small
// relative to request volume.
type personLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newPersonLocks() *personLocks {
	return &personLocks{locks: make(map[string]*sync.RWMutex)}
}

func (p *personLocks) get(id string) *sync.RWMutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[id]
	if !ok {
		l = &sync.RWMutex{}
		p.locks[id] = l
	}
	return l
}
