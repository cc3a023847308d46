package service

import (
	"sync"

	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
)

// passbackTracker enforces anti-passback at flagged points: after a
// granted entry, a second entry grant is refused until an exit is granted
// for the same person. State is in-memory; it rebuilds organically from
// traffic after a restart.
type passbackTracker struct {
	mu   sync.Mutex
	last map[string]models.Direction
}

func newPassbackTracker() *passbackTracker {
	return &passbackTracker{last: make(map[string]models.Direction)}
}

// allows reports whether the direction is permitted for the person.
func (t *passbackTracker) allows(personID string, dir models.Direction) bool {
	if dir != models.DirectionEntry {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last[personID] != models.DirectionEntry
}

// record notes a granted passage.
func (t *passbackTracker) record(personID string, dir models.Direction) {
	if dir != models.DirectionEntry && dir != models.DirectionExit {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[personID] = dir
}
