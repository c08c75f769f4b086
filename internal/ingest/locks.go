package ingest

import "sync"

// entityLocker serializes work per child while letting different children
// proceed in parallel. Entries are reference counted and reclaimed when the
// last holder releases, so short-lived children do not grow the map forever.
type entityLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newEntityLocker() *entityLocker {
	return &entityLocker{
		entries: make(map[string]*lockEntry),
	}
}

// Lock acquires the lock for the given child and returns the release func.
func (l *entityLocker) Lock(childID string) func() {
	l.mu.Lock()
	entry, exists := l.entries[childID]
	if !exists {
		entry = &lockEntry{}
		l.entries[childID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, childID)
		}
		l.mu.Unlock()
	}
}
