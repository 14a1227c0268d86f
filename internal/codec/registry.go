package codec

import (
	"fmt"
	"sort"
	"sync"
)

// Record is anything that can travel in a frame.
type Record interface {
	TypeID() uint16
}

// Factory returns a fresh decode target for one type id. It must return a
// pointer.
type Factory func() Record

// Registry maps type ids to factories. Populate it before the first decode.
type Registry struct {
	name string

	mu        sync.RWMutex
	factories map[uint16]Factory
}

// NewRegistry creates an empty registry. name appears in errors.
func NewRegistry(name string) *Registry {
	return &Registry{name: name, factories: make(map[uint16]Factory)}
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Register binds id to f. Duplicate ids are rejected.
func (r *Registry) Register(id uint16, f Factory) error {
	if f == nil {
		return fmt.Errorf("%s registry: nil factory for type %d", r.name, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[id]; dup {
		return fmt.Errorf("%s registry: type %d already registered", r.name, id)
	}
	r.factories[id] = f
	return nil
}

// MustRegister is Register that panics; for package initialization.
func (r *Registry) MustRegister(id uint16, f Factory) {
	if err := r.Register(id, f); err != nil {
		panic(err)
	}
}

// New returns a decode target for id.
func (r *Registry) New(id uint16) (Record, bool) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(), true
}

// Known reports whether id is registered.
func (r *Registry) Known(id uint16) bool {
	r.mu.RLock()
	_, ok := r.factories[id]
	r.mu.RUnlock()
	return ok
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []uint16 {
	r.mu.RLock()
	out := make([]uint16, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
