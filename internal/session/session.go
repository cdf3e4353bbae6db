// Package session tracks which uploads were already ingested within one
// session. The set is not persisted: re-ingesting after a restart only
// duplicates rows, which the append-only store tolerates.
package session

import (
	"sync"

	"docubot/internal/helper"
)

// Tracker is a concurrency-safe set of already-ingested filenames.
type Tracker struct {
	id string

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewTracker creates a Tracker with a fresh session id.
func NewTracker() (*Tracker, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	return &Tracker{id: id, seen: make(map[string]struct{})}, nil
}

// ID returns the session identifier.
func (t *Tracker) ID() string { return t.id }

// MarkSeen records name and reports whether it was new. The check and the
// add are one atomic step so concurrent uploads of the same file race safely.
func (t *Tracker) MarkSeen(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[name]; ok {
		return false
	}
	t.seen[name] = struct{}{}
	return true
}

// Seen reports whether name was already ingested this session.
func (t *Tracker) Seen(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[name]
	return ok
}

// Len returns the number of tracked filenames.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
