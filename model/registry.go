package model

import "sync"

// Registry maps stable backend ids ("openai", "claude", ...) to models.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

// Register adds or replaces the model for id. Registration order is kept.
func (r *Registry) Register(id string, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[id]; !exists {
		r.order = append(r.order, id)
	}
	r.models[id] = m
}

// Get returns the model registered for id.
func (r *Registry) Get(id string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
