package fleet

import (
	"fmt"
	"sync"
)

// Number of distinct marker colors the map layer can render.
const defaultPaletteSize = 8

// Registry owns the set of active entries for one tracking session and which
// of them is surfaced in the detail panel. It is the only component that may
// insert or remove entries; drivers and renderers look entries up by id.
type Registry struct {
	mu          sync.RWMutex
	entries     map[string]*Entry
	order       []string
	activeID    string
	paletteSize int
}

// NewRegistry creates an empty registry. paletteSize <= 0 selects the default
// marker palette length.
func NewRegistry(paletteSize int) *Registry {
	if paletteSize <= 0 {
		paletteSize = defaultPaletteSize
	}
	return &Registry{
		entries:     make(map[string]*Entry),
		paletteSize: paletteSize,
	}
}

// Attach registers an entry, assigns its marker color slot, and makes it the
// active entry if none is selected. Attaching the same underlying drone twice
// is rejected.
func (r *Registry) Attach(e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.source == e.source {
			return fmt.Errorf("drone %q is already being tracked", e.source)
		}
	}
	e.colorIndex = len(r.entries) % r.paletteSize
	r.entries[e.id] = e
	r.order = append(r.order, e.id)
	if r.activeID == "" {
		r.activeID = e.id
	}
	return nil
}

// Detach removes an entry and returns it so the caller can confirm teardown.
// The caller must have stopped the entry's driver first; removal is atomic
// with respect to any iteration snapshot taken via All.
func (r *Registry) Detach(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.activeID == id {
		r.activeID = ""
		if len(r.order) > 0 {
			r.activeID = r.order[0]
		}
	}
	return e, true
}

// SetActive selects which entry the detail panel and report button follow.
// It never touches any entry's driver.
func (r *Registry) SetActive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	r.activeID = id
	return true
}

// Active returns the currently selected entry.
func (r *Registry) Active() (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[r.activeID]
	return e, ok
}

// Get looks an entry up by id. Drivers re-fetch through Get at every tick or
// message so a detached entry can never be resurrected through a stale
// reference.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// All returns the entries in attachment order as a snapshot slice; callers
// may iterate it freely while attach/detach proceed concurrently.
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Len returns the number of tracked entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
