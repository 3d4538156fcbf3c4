package command

import (
	"strings"
	"sync"

	"hotmic/internal/domain"
)

// Definition describes one routable command. ID is unique within a registry;
// Description is consumed only by the classifier; Phrase, when set, enables
// zero-latency exact matching; Action is the side effect to run on a match.
type Definition struct {
	ID          string
	Description string
	Phrase      string
	Action      func()
}

// Info strips the behavior, leaving the metadata safe to hand to external
// collaborators.
func (d Definition) Info() domain.CommandInfo {
	return domain.CommandInfo{ID: d.ID, Description: d.Description, Phrase: d.Phrase}
}

type entry struct {
	def    Definition
	action *actionCell
}

// Registry is the single source of truth for what can currently be matched.
// It preserves insertion order: replacing an existing identifier keeps its
// original position, so snapshot order is deterministic per registry state.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// Upsert inserts or replaces a definition by identifier. Last writer wins.
func (r *Registry) Upsert(def Definition) {
	if strings.TrimSpace(def.ID) == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(def)
}

func (r *Registry) upsertLocked(def Definition) *entry {
	if existing, ok := r.entries[def.ID]; ok {
		existing.def = def
		existing.action.set(def.Action)
		return existing
	}

	e := &entry{def: def, action: newActionCell(def.Action)}
	r.entries[def.ID] = e
	r.order = append(r.order, def.ID)
	return e
}

// Remove deletes a definition if present; removing an absent identifier is a
// no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) {
	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns an immutable point-in-time view of the registry in
// insertion order. Each definition's Action dispatches through the entry's
// current behavior cell, so a snapshot invokes the most recently supplied
// logic even if it was swapped after the snapshot was taken.
func (r *Registry) Snapshot() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		def := e.def
		cell := e.action
		def.Action = cell.invoke
		defs = append(defs, def)
	}
	return defs
}

// IDs returns the registered identifiers in insertion order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// actionCell holds a command's current behavior, swappable without touching
// the registry entry that references it.
type actionCell struct {
	mu sync.Mutex
	fn func()
}

func newActionCell(fn func()) *actionCell {
	return &actionCell{fn: fn}
}

func (c *actionCell) set(fn func()) {
	c.mu.Lock()
	c.fn = fn
	c.mu.Unlock()
}

func (c *actionCell) invoke() {
	c.mu.Lock()
	fn := c.fn
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
