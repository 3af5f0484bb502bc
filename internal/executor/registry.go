package executor

import (
	"fmt"
	"sync"
)

// Registry maps database identifiers to their execution boundaries. It is
// populated at startup and read concurrently by pipeline runs.
type Registry struct {
	mu         sync.RWMutex
	boundaries map[string]Boundary
}

func NewRegistry() *Registry {
	return &Registry{boundaries: make(map[string]Boundary)}
}

func (r *Registry) Register(databaseID string, boundary Boundary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boundaries[databaseID] = boundary
}

func (r *Registry) Boundary(databaseID string) (Boundary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	boundary, ok := r.boundaries[databaseID]
	if !ok {
		return nil, fmt.Errorf("executor: no target database registered as %q", databaseID)
	}
	return boundary, nil
}

// DatabaseIDs returns the registered identifiers.
func (r *Registry) DatabaseIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.boundaries))
	for id := range r.boundaries {
		ids = append(ids, id)
	}
	return ids
}
