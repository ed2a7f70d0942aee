package events

import (
	"sync"
	"sync/atomic"
)

type entry struct {
	handle Handle
	fn     any
	// fired is shared by every snapshot copy of a one-shot entry; nil for
	// long-lived listeners.
	fired *atomic.Bool
}

// claim reports whether this pass may invoke the entry. One-shot entries
// are claimed by exactly one pass.
func (e entry) claim() bool {
	if e.fired == nil {
		return true
	}
	return e.fired.CompareAndSwap(false, true)
}

// registry holds the listeners of every kind in registration order.
type registry struct {
	mu      sync.RWMutex
	nextSeq uint64
	kinds   map[uint64][]entry
}

func newRegistry() *registry {
	return &registry{
		kinds: make(map[uint64][]entry),
	}
}

func (r *registry) register(kindID uint64, fn any, once bool) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	e := entry{
		handle: Handle{kind: kindID, seq: r.nextSeq},
		fn:     fn,
	}
	if once {
		e.fired = new(atomic.Bool)
	}
	r.kinds[kindID] = append(r.kinds[kindID], e)
	return e.handle
}

// unregister removes h and reports whether it was present.
func (r *registry) unregister(h Handle) bool {
	if h.IsZero() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.kinds[h.kind]
	for i, e := range list {
		if e.handle != h {
			continue
		}
		// Snapshots are copies, so shifting in place keeps them intact.
		list = append(list[:i], list[i+1:]...)
		if len(list) == 0 {
			delete(r.kinds, h.kind)
		} else {
			r.kinds[h.kind] = list
		}
		return true
	}
	return false
}

// snapshot returns a copy of the listeners for a kind
func (r *registry) snapshot(kindID uint64) []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	original := r.kinds[kindID]
	if len(original) == 0 {
		return nil
	}

	entries := make([]entry, len(original))
	copy(entries, original)
	return entries
}

func (r *registry) count(kindID uint64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.kinds[kindID])
}

func (r *registry) total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, list := range r.kinds {
		total += len(list)
	}
	return total
}

func (r *registry) clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, list := range r.kinds {
		removed += len(list)
	}
	r.kinds = make(map[uint64][]entry)
	return removed
}
