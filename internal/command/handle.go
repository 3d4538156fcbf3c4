package command

import "sync"

// Handle is a stable registration owned by one command owner. It decouples
// the registry entry (identifier, description, phrase, written once at
// acquisition and once per identifier change) from the behavior, which may
// be swapped on every owner update without registry churn.
type Handle struct {
	registry *Registry

	mu       sync.Mutex
	id       string
	released bool
}

// Acquire registers a definition and returns a handle that owns the entry.
// The owner must call Release when the command is no longer relevant.
func (r *Registry) Acquire(def Definition) *Handle {
	r.Upsert(def)
	return &Handle{registry: r, id: def.ID}
}

// ID returns the handle's current identifier.
func (h *Handle) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// SetAction swaps the behavior behind the registered entry. The registry
// entry itself is not rewritten.
func (h *Handle) SetAction(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}

	h.registry.mu.Lock()
	if e, ok := h.registry.entries[h.id]; ok {
		e.action.set(fn)
		e.def.Action = fn
	}
	h.registry.mu.Unlock()
}

// Update applies a new definition. When only the behavior changed the swap
// stays out of the registry; an identifier change re-registers under the new
// identifier and drops the old entry atomically.
func (h *Handle) Update(def Definition) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}

	h.registry.mu.Lock()
	if def.ID == h.id {
		if e, ok := h.registry.entries[h.id]; ok {
			e.action.set(def.Action)
			e.def.Action = def.Action
		} else {
			h.registry.upsertLocked(def)
		}
	} else {
		h.registry.removeLocked(h.id)
		h.registry.upsertLocked(def)
		h.id = def.ID
	}
	h.registry.mu.Unlock()
}

// Release removes the entry from the registry. It is safe to call more than
// once and on every owner exit path.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	h.registry.Remove(h.id)
}
