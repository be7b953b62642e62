package router

import (
	"context"
	"fmt"

	"github.com/rickgao/routedb/internal/datasource"
)

// Target is a routing table value: either a provider given directly or the
// name of one to be resolved through a datasource.Lookup during
// initialization. The zero Target is invalid.
type Target struct {
	provider datasource.Provider
	name     string
}

// Direct returns a Target for p.
func Direct(p datasource.Provider) Target {
	return Target{provider: p}
}

// Named returns a Target resolved by name at initialization.
func Named(name string) Target {
	return Target{name: name}
}

// TargetOf converts a raw configuration value into a Target. Only providers
// and strings are accepted.
func TargetOf(v any) (Target, error) {
	switch t := v.(type) {
	case Target:
		return t, nil
	case datasource.Provider:
		return Direct(t), nil
	case string:
		return Named(t), nil
	}
	return Target{}, fmt.Errorf("%w: only providers and data source names are supported, got %#v", ErrInvalidTarget, v)
}

// Provider returns the direct provider, if any.
func (t Target) Provider() (datasource.Provider, bool) {
	return t.provider, t.provider != nil
}

// Name returns the data source name, if any.
func (t Target) Name() (string, bool) {
	return t.name, t.provider == nil && t.name != ""
}

// IsZero reports whether t holds neither a provider nor a name.
func (t Target) IsZero() bool {
	return t.provider == nil && t.name == ""
}

// String returns the name, the provider type, or "<empty>".
func (t Target) String() string {
	switch {
	case t.provider != nil:
		return fmt.Sprintf("%T", t.provider)
	case t.name != "":
		return t.name
	default:
		return "<empty>"
	}
}

// KeySource supplies the lookup key for the current call. A nil key selects
// the default target.
type KeySource interface {
	CurrentKey(ctx context.Context) any
}

// KeySourceFunc adapts a function to KeySource.
type KeySourceFunc func(ctx context.Context) any

// CurrentKey calls f.
func (f KeySourceFunc) CurrentKey(ctx context.Context) any {
	return f(ctx)
}

// KeyResolver canonicalizes a configured key before it is stored in the
// routing table. The stored key must match what the KeySource returns.
type KeyResolver func(raw any) (any, error)

// IdentityKeys stores configured keys unchanged.
func IdentityKeys(raw any) (any, error) {
	return raw, nil
}

// TargetResolver turns a Target into a provider during initialization.
type TargetResolver func(ctx context.Context, t Target, lookup datasource.Lookup) (datasource.Provider, error)

// ResolveTarget is the default TargetResolver: direct providers pass
// through, names go through lookup.
func ResolveTarget(ctx context.Context, t Target, lookup datasource.Lookup) (datasource.Provider, error) {
	if p, ok := t.Provider(); ok {
		return p, nil
	}
	if name, ok := t.Name(); ok {
		p, err := lookup.Lookup(ctx, name)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("lookup returned no provider for %q", name)
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: empty target", ErrInvalidTarget)
}
