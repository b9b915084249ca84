package store

import (
	"strings"
	"sync"
)

// Registry owns the name to channel mapping. Enumeration order is first-seen:
// seeded names in their configured order, then dynamically created names in
// the order their first post arrived.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// Seed pre-creates empty channels so they are listable before any message
// arrives. Blank and duplicate names are skipped.
func (r *Registry) Seed(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := r.channels[name]; ok {
			continue
		}
		r.channels[name] = newChannel(name)
		r.order = append(r.order, name)
	}
}

// Get returns the named channel, or nil when the registry has never seen it.
// Lookups never create channels; only posts do.
func (r *Registry) Get(name string) *Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channels[name]
}

// GetOrCreate returns the named channel, creating it exactly once if needed.
// The second return reports whether this call created it.
func (r *Registry) GetOrCreate(name string) (*Channel, bool) {
	r.mu.RLock()
	ch, ok := r.channels[name]
	r.mu.RUnlock()
	if ok {
		return ch, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock; another post may have won the race.
	if ch, ok := r.channels[name]; ok {
		return ch, false
	}
	ch = newChannel(name)
	r.channels[name] = ch
	r.order = append(r.order, name)
	return ch, true
}

// ListNames returns all known channel names in first-seen order, including
// seeded channels that have never held a message.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// snapshot returns the channels in enumeration order.
func (r *Registry) snapshot() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Channel, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.channels[name])
	}
	return out
}
