package partition

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a name-keyed, mutex-protected map of open partitions,
// generalized from the teacher's internal/coordinator.ShardRegistry (a
// mutex-protected map keyed by shard ID, with registration, lookup, and
// removal) from "shard ID -> node address" to "partition name ->
// partition handle" (SPEC_FULL.md §4.K).
type Registry struct {
	mu         sync.RWMutex
	partitions map[string]*Handle
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{partitions: make(map[string]*Handle)}
}

// Register adds handle to the registry under its own name. It is an
// error to register two partitions with the same name.
func (r *Registry) Register(handle *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.partitions[handle.Name()]; exists {
		return fmt.Errorf("partition %q: already registered", handle.Name())
	}
	r.partitions[handle.Name()] = handle
	return nil
}

// Get returns the partition named name, or !ok if no such partition is
// registered.
func (r *Registry) Get(name string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.partitions[name]
	return h, ok
}

// List returns every registered partition's name, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.partitions))
	for name := range r.partitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered Handle, in no particular order.
func (r *Registry) All() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]*Handle, 0, len(r.partitions))
	for _, h := range r.partitions {
		handles = append(handles, h)
	}
	return handles
}

// Drop marks the named partition dropped and removes it from the
// registry. Returns an error if no such partition exists.
func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.partitions[name]
	if !ok {
		return fmt.Errorf("partition %q: not found", name)
	}
	_ = h.SetState(StateDropped)
	delete(r.partitions, name)
	return nil
}
