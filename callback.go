package livekit

import (
	"sync"
)

// contextTable maps the opaque context values handed to the native layer back
// to Go objects. Go pointers cannot be stored in native memory, so every
// trampoline receives an id and resolves it here.
//
// Entries are either taken (one-shot callbacks, removed on first use) or
// looked up (repeating callbacks, removed by an explicit teardown).
type contextTable struct {
	mu      sync.RWMutex
	entries map[uintptr]any
	nextID  uintptr
}

func newContextTable() *contextTable {
	return &contextTable{entries: make(map[uintptr]any), nextID: 1}
}

// callbackContexts is shared by every client; trampolines only see the id.
var callbackContexts = newContextTable()

// put stores v and returns its context id. Ids are never reused.
func (t *contextTable) put(v any) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.entries[id] = v
	return id
}

// lookup returns the value for id without removing it.
func (t *contextTable) lookup(id uintptr) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[id]
	return v, ok
}

// take removes and returns the value for id. A second take of the same id
// reports false.
func (t *contextTable) take(id uintptr) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return v, ok
}

// takeMatching removes and returns every value for which match reports true.
func (t *contextTable) takeMatching(match func(v any) bool) []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []any
	for id, v := range t.entries {
		if match(v) {
			delete(t.entries, id)
			out = append(out, v)
		}
	}
	return out
}

// countMatching returns the number of entries for which match reports true.
func (t *contextTable) countMatching(match func(v any) bool) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, v := range t.entries {
		if match(v) {
			n++
		}
	}
	return n
}

// count returns the number of live entries.
func (t *contextTable) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
