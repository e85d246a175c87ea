package backend

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry holds the connected backend instances, keyed by the backend
// instance id assigned when the instance was configured.
type Registry struct {
	mu       sync.RWMutex
	backends map[uuid.UUID]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[uuid.UUID]Backend),
	}
}

// Register adds or replaces the gateway for a backend instance.
func (r *Registry) Register(instanceID uuid.UUID, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[instanceID] = b
}

// Get returns the gateway for a backend instance.
func (r *Registry) Get(instanceID uuid.UUID) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[instanceID]
	if !ok {
		return nil, fmt.Errorf("no backend registered for instance %s", instanceID)
	}
	return b, nil
}

// InstanceIDs returns the ids of all registered instances.
func (r *Registry) InstanceIDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.backends))
	for id := range r.backends {
		ids = append(ids, id)
	}
	return ids
}

// Close closes all registered gateways and returns the first error seen.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, b := range r.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.backends, id)
	}
	return firstErr
}
