package agent

import (
	"sync"

	"github.com/hupe1980/agentpanel/model"
)

// Registry maps backend ids to capabilities. Dispatch is a plain lookup; the
// engine never branches on the concrete backend.
type Registry struct {
	mu    sync.RWMutex
	caps  map[string]Capability
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry(caps ...Capability) *Registry {
	r := &Registry{caps: make(map[string]Capability)}
	for _, c := range caps {
		r.Register(c)
	}
	return r
}

// FromModels creates one Agent per registered model, applying the known
// backend defaults.
func FromModels(models *model.Registry, optFns ...func(o *Options)) *Registry {
	r := NewRegistry()
	for _, id := range models.IDs() {
		m, _ := models.Get(id)
		fns := append([]func(o *Options){WithDefaults(id)}, optFns...)
		r.Register(New(id, m, fns...))
	}
	return r
}

// Register adds or replaces a capability under its ID.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[c.ID()]; !exists {
		r.order = append(r.order, c.ID())
	}
	r.caps[c.ID()] = c
}

// Get returns the capability registered for id.
func (r *Registry) Get(id string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[id]
	return c, ok
}

// List returns all capabilities in registration order.
func (r *Registry) List() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Capability, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.caps[id])
	}
	return out
}
