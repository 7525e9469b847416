package client

import (
	"sync"

	"github.com/rickgao/ledgerlink/internal/protocol"
)

// ListenerFunc receives inbound messages.
type ListenerFunc func(*protocol.Message)

// listenerEntry pairs an optional category filter with a callback. Entries
// are identified by registration id, not callback identity, so the same
// function registered twice yields two independently removable listeners.
type listenerEntry struct {
	id       uint64
	category string // "" matches every message
	fn       ListenerFunc
}

// listenerRegistry is an ordered collection of listeners. Registration
// order is fan-out order.
type listenerRegistry struct {
	mu      sync.Mutex
	nextID  uint64
	entries []listenerEntry
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{}
}

// add registers a listener and returns its idempotent remover.
func (r *listenerRegistry) add(category string, fn ListenerFunc) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, listenerEntry{id: id, category: category, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.entries {
			if e.id == id {
				r.entries = append(r.entries[:i], r.entries[i+1:]...)
				return
			}
		}
		// Already removed; calling the remover twice is a no-op.
	}
}

// matching returns the listeners to invoke for a message category, in
// registration order.
func (r *listenerRegistry) matching(category string) []listenerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]listenerEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.category == "" || e.category == category {
			out = append(out, e)
		}
	}
	return out
}

// size returns the number of registered listeners.
func (r *listenerRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
