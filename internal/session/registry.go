package session

import (
	"context"
	"sort"
	"sync"
)

// Registry is the process-wide map from session id to its live controller.
// It is an explicit object injected into controllers, never a package
// global; insertion is atomic with the duplicate-id check.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Controller),
	}
}

// add inserts the controller, failing when the id already has a live entry.
func (r *Registry) add(c *Controller) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[c.id]; exists {
		return false
	}
	r.sessions[c.id] = c
	return true
}

// remove drops the controller for id, if any.
func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Get returns the live controller for id.
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[id]
	return c, ok
}

// Has reports whether id has a live controller.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// List returns the live session ids in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns the live controllers.
func (r *Registry) All() []*Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()

	controllers := make([]*Controller, 0, len(r.sessions))
	for _, c := range r.sessions {
		controllers = append(controllers, c)
	}
	return controllers
}

// DestroyAll tears down every live session. Teardown errors are collected
// per session by the controllers themselves; the last one is returned.
func (r *Registry) DestroyAll(ctx context.Context, purgeCredentials bool) error {
	var lastErr error
	for _, c := range r.All() {
		if err := c.Destroy(ctx, purgeCredentials); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
