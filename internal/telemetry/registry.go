package telemetry

import (
	"sort"
	"sync"
)

// Registry owns the set of machine topics the client wants live data
// for. Topics persist across reconnects until explicitly removed; the
// client re-asserts the whole set to the server after every connect.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{topics: make(map[string]struct{})}
}

// Add registers a topic and reports whether it was newly added.
func (r *Registry) Add(machineID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topics[machineID]; ok {
		return false
	}
	r.topics[machineID] = struct{}{}

	return true
}

// Remove drops a topic and reports whether it was present.
func (r *Registry) Remove(machineID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topics[machineID]; !ok {
		return false
	}
	delete(r.topics, machineID)

	return true
}

func (r *Registry) Contains(machineID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.topics[machineID]

	return ok
}

// Snapshot returns the current topic set sorted by machine ID.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.topics))
	for id := range r.topics {
		out = append(out, id)
	}
	sort.Strings(out)

	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.topics)
}
