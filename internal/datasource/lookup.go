package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when a Lookup has no provider under a name.
var ErrNotFound = errors.New("datasource: not found")

// LookupError reports a name a Lookup could not resolve.
type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup data source %q: %v", e.Name, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Lookup resolves a data source name to a Provider.
type Lookup interface {
	Lookup(ctx context.Context, name string) (Provider, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, name string) (Provider, error)

// Lookup calls f.
func (f LookupFunc) Lookup(ctx context.Context, name string) (Provider, error) {
	return f(ctx, name)
}

// MapLookup resolves names from an in-memory map. It is safe for
// concurrent use.
type MapLookup struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewMapLookup returns a MapLookup seeded with a copy of providers.
func NewMapLookup(providers map[string]Provider) *MapLookup {
	m := &MapLookup{providers: make(map[string]Provider, len(providers))}
	for name, p := range providers {
		m.providers[name] = p
	}
	return m
}

// Add registers p under name, replacing any previous provider.
func (m *MapLookup) Add(name string, p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.providers == nil {
		m.providers = make(map[string]Provider)
	}
	m.providers[name] = p
}

// Remove deletes name. It reports whether name was present.
func (m *MapLookup) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.providers[name]
	delete(m.providers, name)
	return ok
}

// Names returns the registered names in sorted order.
func (m *MapLookup) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup implements Lookup.
func (m *MapLookup) Lookup(_ context.Context, name string) (Provider, error) {
	m.mu.RLock()
	p, ok := m.providers[name]
	m.mu.RUnlock()
	if !ok || p == nil {
		return nil, &LookupError{Name: name, Err: ErrNotFound}
	}
	return p, nil
}

// SingleLookup resolves every name to the same provider.
type SingleLookup struct {
	Provider Provider
}

// Lookup implements Lookup.
func (s SingleLookup) Lookup(_ context.Context, name string) (Provider, error) {
	if s.Provider == nil {
		return nil, &LookupError{Name: name, Err: ErrNotFound}
	}
	return s.Provider, nil
}
