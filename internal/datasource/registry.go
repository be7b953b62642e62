package datasource

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	// ErrEmptyName is returned when registering under an empty name.
	ErrEmptyName = errors.New("datasource: empty name")
	// ErrNilProvider is returned when registering a nil provider.
	ErrNilProvider = errors.New("datasource: nil provider")
	// ErrDuplicateName is returned when a name is already registered.
	ErrDuplicateName = errors.New("datasource: name already registered")
)

// Registry is a named set of providers shared across a process. Unlike
// MapLookup it refuses to silently replace an existing name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p under name.
func (r *Registry) Register(name string, p Provider) error {
	if name == "" {
		return ErrEmptyName
	}
	if p == nil {
		return ErrNilProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; ok {
		return &LookupError{Name: name, Err: ErrDuplicateName}
	}
	r.providers[name] = p
	return nil
}

// Unregister removes name. It reports whether name was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.providers[name]
	delete(r.providers, name)
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup implements Lookup.
func (r *Registry) Lookup(_ context.Context, name string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &LookupError{Name: name, Err: ErrNotFound}
	}
	return p, nil
}

var defaultRegistry = NewRegistry()

// Register adds p to the process-wide registry.
func Register(name string, p Provider) error {
	return defaultRegistry.Register(name, p)
}

// Unregister removes name from the process-wide registry.
func Unregister(name string) bool {
	return defaultRegistry.Unregister(name)
}

// DefaultLookup returns the process-wide registry as a Lookup.
func DefaultLookup() Lookup {
	return defaultRegistry
}
