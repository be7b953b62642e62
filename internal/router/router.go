package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/routedb/internal/datasource"
	"github.com/rickgao/routedb/internal/metrics"
)

var (
	// ErrTargetsRequired is returned by Initialize when no routing targets
	// were configured.
	ErrTargetsRequired = errors.New("router: targets are required")
	// ErrKeySourceRequired is returned by Initialize when the router has no
	// KeySource.
	ErrKeySourceRequired = errors.New("router: key source is required")
	// ErrInvalidTarget is returned for a target that is neither a provider
	// nor a data source name.
	ErrInvalidTarget = errors.New("router: illegal target value")
	// ErrInvalidKey is returned for a lookup key that cannot be used as a
	// map key.
	ErrInvalidKey = errors.New("router: lookup key is not comparable")
	// ErrDuplicateKey is returned when two configured keys canonicalize to
	// the same lookup key.
	ErrDuplicateKey = errors.New("router: duplicate lookup key")
	// ErrNotInitialized is returned when resolving before Initialize.
	ErrNotInitialized = errors.New("router: not initialized")
	// ErrAlreadyInitialized is returned by a second call to Initialize.
	ErrAlreadyInitialized = errors.New("router: already initialized")
	// ErrNoTarget is returned when neither the routing table nor the
	// default can serve the current key.
	ErrNoTarget = errors.New("router: cannot determine target data source")
)

// DefaultName labels routers that were not given a name.
const DefaultName = "default"

// Router is a datasource.Provider that delegates every acquisition to the
// provider registered for the current lookup key.
type Router struct {
	name          string
	keys          KeySource
	targets       map[any]Target
	defaultTarget Target
	lenient       bool
	lookup        datasource.Lookup
	resolveKey    KeyResolver
	resolveTarget TargetResolver
	logger        *slog.Logger
	metrics       *metrics.Collector

	// initMu serializes Initialize; readers only touch table.
	initMu sync.Mutex
	table  atomic.Pointer[table]
}

// table is the resolved routing state. It is never modified once stored.
type table struct {
	targets  map[any]datasource.Provider
	fallback datasource.Provider
}

// Option configures a Router.
type Option func(*Router)

// New creates a Router that reads its lookup key from keys. The router must
// be initialized before use.
func New(keys KeySource, opts ...Option) *Router {
	r := &Router{
		name:          DefaultName,
		keys:          keys,
		lenient:       true,
		lookup:        datasource.DefaultLookup(),
		resolveKey:    IdentityKeys,
		resolveTarget: ResolveTarget,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.logger = r.logger.With("router", r.name)
	return r
}

// WithName sets the name used in logs and metrics.
func WithName(name string) Option {
	return func(r *Router) {
		if name != "" {
			r.name = name
		}
	}
}

// WithTargets sets the routing table. The map is copied.
func WithTargets(targets map[any]Target) Option {
	return func(r *Router) {
		if targets == nil {
			r.targets = nil
			return
		}
		r.targets = make(map[any]Target, len(targets))
		for k, t := range targets {
			r.targets[k] = t
		}
	}
}

// WithTarget adds a single routing table entry.
func WithTarget(key any, t Target) Option {
	return func(r *Router) {
		if r.targets == nil {
			r.targets = make(map[any]Target)
		}
		r.targets[key] = t
	}
}

// WithDefault sets the target used when the current key has no entry.
func WithDefault(t Target) Option {
	return func(r *Router) {
		r.defaultTarget = t
	}
}

// WithLenientFallback controls whether any unmatched key falls back to the
// default target. When false only a nil key does. Defaults to true.
func WithLenientFallback(lenient bool) Option {
	return func(r *Router) {
		r.lenient = lenient
	}
}

// WithLookup sets how named targets are resolved. A nil lookup restores the
// process-wide registry.
func WithLookup(lookup datasource.Lookup) Option {
	return func(r *Router) {
		if lookup == nil {
			lookup = datasource.DefaultLookup()
		}
		r.lookup = lookup
	}
}

// WithKeyResolver sets how configured keys are canonicalized.
func WithKeyResolver(kr KeyResolver) Option {
	return func(r *Router) {
		if kr != nil {
			r.resolveKey = kr
		}
	}
}

// WithTargetResolver sets how targets become providers.
func WithTargetResolver(tr TargetResolver) Option {
	return func(r *Router) {
		if tr != nil {
			r.resolveTarget = tr
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records resolutions and acquisitions on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Router) {
		r.metrics = c
	}
}

// Name returns the router's name.
func (r *Router) Name() string {
	return r.name
}

// Initialize resolves every configured key and target and publishes the
// routing table. It may succeed only once.
func (r *Router) Initialize(ctx context.Context) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	if r.table.Load() != nil {
		return ErrAlreadyInitialized
	}
	if r.keys == nil {
		return ErrKeySourceRequired
	}
	if r.targets == nil {
		return ErrTargetsRequired
	}

	t := &table{targets: make(map[any]datasource.Provider, len(r.targets))}
	for raw, target := range r.targets {
		key, err := r.resolveKey(raw)
		if err != nil {
			return fmt.Errorf("resolve lookup key [%v]: %w", raw, err)
		}
		if !isComparable(key) {
			return fmt.Errorf("%w: %T", ErrInvalidKey, key)
		}
		if _, dup := t.targets[key]; dup {
			return fmt.Errorf("%w: [%v]", ErrDuplicateKey, key)
		}

		p, err := r.resolve(ctx, target)
		if err != nil {
			return fmt.Errorf("resolve target for lookup key [%v]: %w", raw, err)
		}
		t.targets[key] = p
	}

	if !r.defaultTarget.IsZero() {
		p, err := r.resolve(ctx, r.defaultTarget)
		if err != nil {
			return fmt.Errorf("resolve default target: %w", err)
		}
		t.fallback = p
	}

	r.table.Store(t)

	r.logger.Info("router initialized",
		"targets", len(t.targets),
		"default", r.defaultTarget.String(),
		"lenient_fallback", r.lenient,
	)
	return nil
}

func (r *Router) resolve(ctx context.Context, t Target) (datasource.Provider, error) {
	if t.IsZero() {
		return nil, fmt.Errorf("%w: empty target", ErrInvalidTarget)
	}
	p, err := r.resolveTarget(ctx, t, r.lookup)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s resolved to nil provider", ErrInvalidTarget, t)
	}
	return p, nil
}

// Initialized reports whether Initialize has completed.
func (r *Router) Initialized() bool {
	return r.table.Load() != nil
}

// CurrentKey returns the lookup key the router would use for ctx.
func (r *Router) CurrentKey(ctx context.Context) any {
	if r.keys == nil {
		return nil
	}
	return r.keys.CurrentKey(ctx)
}

// DetermineTarget returns the provider for the current lookup key. It is
// evaluated on every call.
func (r *Router) DetermineTarget(ctx context.Context) (datasource.Provider, error) {
	t := r.table.Load()
	if t == nil {
		r.metrics.RecordResolution(r.name, metrics.OutcomeUninitialized)
		return nil, ErrNotInitialized
	}

	key := r.keys.CurrentKey(ctx)
	if !isComparable(key) {
		r.metrics.RecordResolution(r.name, metrics.OutcomeMiss)
		return nil, fmt.Errorf("%w: %T", ErrInvalidKey, key)
	}

	if p, ok := t.targets[key]; ok {
		r.metrics.RecordResolution(r.name, metrics.OutcomeMatch)
		return p, nil
	}

	if (r.lenient || key == nil) && t.fallback != nil {
		r.metrics.RecordResolution(r.name, metrics.OutcomeFallback)
		r.logger.Debug("using default target", "key", key)
		return t.fallback, nil
	}

	r.metrics.RecordResolution(r.name, metrics.OutcomeMiss)
	r.logger.Warn("no target for lookup key", "key", key)
	return nil, fmt.Errorf("%w for lookup key [%v]", ErrNoTarget, key)
}

// Acquire implements datasource.Provider.
func (r *Router) Acquire(ctx context.Context) (datasource.Conn, error) {
	start := time.Now()
	conn, err := r.acquire(ctx, func(p datasource.Provider) (datasource.Conn, error) {
		return p.Acquire(ctx)
	})
	r.metrics.RecordAcquire(r.name, time.Since(start), err)
	return conn, err
}

// AcquireWith implements datasource.Provider.
func (r *Router) AcquireWith(ctx context.Context, creds datasource.Credentials) (datasource.Conn, error) {
	start := time.Now()
	conn, err := r.acquire(ctx, func(p datasource.Provider) (datasource.Conn, error) {
		return p.AcquireWith(ctx, creds)
	})
	r.metrics.RecordAcquire(r.name, time.Since(start), err)
	return conn, err
}

func (r *Router) acquire(ctx context.Context, fn func(datasource.Provider) (datasource.Conn, error)) (datasource.Conn, error) {
	p, err := r.DetermineTarget(ctx)
	if err != nil {
		return nil, err
	}
	return fn(p)
}

// Unwrap implements datasource.Wrapper by returning the current target.
func (r *Router) Unwrap(ctx context.Context) (datasource.Provider, error) {
	return r.DetermineTarget(ctx)
}

// Ping checks the current target.
func (r *Router) Ping(ctx context.Context) error {
	p, err := r.DetermineTarget(ctx)
	if err != nil {
		return err
	}
	return datasource.Ping(ctx, p)
}

// Targets returns a copy of the resolved routing table, or nil before
// initialization.
func (r *Router) Targets() map[any]datasource.Provider {
	t := r.table.Load()
	if t == nil {
		return nil
	}
	out := make(map[any]datasource.Provider, len(t.targets))
	for k, p := range t.targets {
		out[k] = p
	}
	return out
}

// DefaultTarget returns the resolved default provider, if any.
func (r *Router) DefaultTarget() (datasource.Provider, bool) {
	t := r.table.Load()
	if t == nil || t.fallback == nil {
		return nil, false
	}
	return t.fallback, true
}

func isComparable(key any) bool {
	return key == nil || reflect.ValueOf(key).Comparable()
}
