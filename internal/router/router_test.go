package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rickgao/routedb/internal/datasource"
	"github.com/rickgao/routedb/internal/metrics"
)

type fakeConn struct {
	from *fakeProvider
	user string
}

func (c *fakeConn) Exec(context.Context, string, ...any) (int64, error) { return 1, nil }
func (c *fakeConn) QueryRow(context.Context, string, []any, ...any) error {
	return nil
}
func (c *fakeConn) Ping(context.Context) error { return nil }
func (c *fakeConn) Release()                   {}

type fakeProvider struct {
	name string
}

func (p *fakeProvider) Acquire(context.Context) (datasource.Conn, error) {
	return &fakeConn{from: p}, nil
}

func (p *fakeProvider) AcquireWith(_ context.Context, creds datasource.Credentials) (datasource.Conn, error) {
	return &fakeConn{from: p, user: creds.User}, nil
}

func (p *fakeProvider) String() string { return p.name }

// mutableKey is a KeySource whose key tests can change between calls.
type mutableKey struct {
	mu  sync.Mutex
	key any
}

func (m *mutableKey) set(k any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = k
}

func (m *mutableKey) CurrentKey(context.Context) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

var (
	providerA = &fakeProvider{name: "A"}
	providerB = &fakeProvider{name: "B"}
	providerD = &fakeProvider{name: "D"}
)

func newExampleRouter(t *testing.T, lenient bool, opts ...Option) *Router {
	t.Helper()
	base := []Option{
		WithTargets(map[any]Target{
			"A": Direct(providerA),
			"B": Direct(providerB),
		}),
		WithDefault(Direct(providerD)),
		WithLenientFallback(lenient),
	}
	r := New(ContextKeys, append(base, opts...)...)
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return r
}

func TestDetermineTarget(t *testing.T) {
	tests := []struct {
		name    string
		lenient bool
		key     any
		want    datasource.Provider
		wantErr error
	}{
		{name: "exact match A", key: "A", want: providerA},
		{name: "exact match B", key: "B", want: providerB},
		{name: "unknown key strict", key: "C", wantErr: ErrNoTarget},
		{name: "unknown key lenient", lenient: true, key: "C", want: providerD},
		{name: "nil key strict", key: nil, want: providerD},
		{name: "nil key lenient", lenient: true, key: nil, want: providerD},
		{name: "match wins over lenient", lenient: true, key: "B", want: providerB},
		{name: "non-comparable key", key: []string{"A"}, wantErr: ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newExampleRouter(t, tt.lenient)
			ctx := WithKey(context.Background(), tt.key)

			got, err := r.DetermineTarget(ctx)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DetermineTarget() error = %v, want %v", err, tt.wantErr)
				}
				if got != nil {
					t.Errorf("DetermineTarget() = %v, want nil on error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetermineTarget() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DetermineTarget() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetermineTarget_ErrorNamesKey(t *testing.T) {
	r := newExampleRouter(t, false)

	_, err := r.DetermineTarget(WithKey(context.Background(), "reporting"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "[reporting]") {
		t.Errorf("error %q does not name the lookup key", err)
	}
}

func TestDetermineTarget_NoDefault(t *testing.T) {
	r := New(ContextKeys, WithTarget("A", Direct(providerA)))
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	for _, key := range []any{nil, "C"} {
		_, err := r.DetermineTarget(WithKey(context.Background(), key))
		if !errors.Is(err, ErrNoTarget) {
			t.Errorf("key %v: error = %v, want ErrNoTarget", key, err)
		}
	}
}

func TestDetermineTarget_NotInitialized(t *testing.T) {
	r := New(ContextKeys, WithTarget("A", Direct(providerA)), WithDefault(Direct(providerD)))
	ctx := WithKey(context.Background(), "A")

	if _, err := r.DetermineTarget(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("DetermineTarget() error = %v, want ErrNotInitialized", err)
	}
	if _, err := r.Acquire(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Acquire() error = %v, want ErrNotInitialized", err)
	}
	if r.Targets() != nil {
		t.Error("Targets() before Initialize should be nil")
	}
	if _, ok := r.DefaultTarget(); ok {
		t.Error("DefaultTarget() before Initialize should report false")
	}
}

func TestDetermineTarget_NoCaching(t *testing.T) {
	keys := &mutableKey{key: "A"}
	r := New(keys, WithTargets(map[any]Target{
		"A": Direct(providerA),
		"B": Direct(providerB),
	}))
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	ctx := context.Background()
	first, err := r.DetermineTarget(ctx)
	if err != nil || first != providerA {
		t.Fatalf("first = %v, %v; want A", first, err)
	}

	keys.set("B")
	second, err := r.DetermineTarget(ctx)
	if err != nil || second != providerB {
		t.Fatalf("second = %v, %v; want B", second, err)
	}
}

func TestInitialize_Errors(t *testing.T) {
	lookup := datasource.NewMapLookup(map[string]datasource.Provider{"primary": providerA})

	tests := []struct {
		name    string
		keys    KeySource
		opts    []Option
		wantErr error
	}{
		{
			name:    "targets not configured",
			keys:    ContextKeys,
			wantErr: ErrTargetsRequired,
		},
		{
			name:    "nil targets map",
			keys:    ContextKeys,
			opts:    []Option{WithTargets(nil)},
			wantErr: ErrTargetsRequired,
		},
		{
			name:    "no key source",
			opts:    []Option{WithTarget("A", Direct(providerA))},
			wantErr: ErrKeySourceRequired,
		},
		{
			name:    "empty target",
			keys:    ContextKeys,
			opts:    []Option{WithTarget("A", Target{})},
			wantErr: ErrInvalidTarget,
		},
		{
			name:    "unknown name",
			keys:    ContextKeys,
			opts:    []Option{WithLookup(lookup), WithTarget("A", Named("missing"))},
			wantErr: datasource.ErrNotFound,
		},
		{
			name: "unknown default name",
			keys: ContextKeys,
			opts: []Option{
				WithLookup(lookup),
				WithTarget("A", Named("primary")),
				WithDefault(Named("missing")),
			},
			wantErr: datasource.ErrNotFound,
		},
		{
			name: "key resolver failure",
			keys: ContextKeys,
			opts: []Option{
				WithKeyResolver(IsolationKeys),
				WithTarget("snapshot", Direct(providerA)),
			},
			wantErr: ErrUnknownIsolation,
		},
		{
			name: "duplicate canonical key",
			keys: ContextKeys,
			opts: []Option{
				WithKeyResolver(StringKeys),
				WithTarget("Read", Direct(providerA)),
				WithTarget("read", Direct(providerB)),
			},
			wantErr: ErrDuplicateKey,
		},
		{
			name: "non-comparable canonical key",
			keys: ContextKeys,
			opts: []Option{
				WithKeyResolver(func(any) (any, error) { return []int{1}, nil }),
				WithTarget("A", Direct(providerA)),
			},
			wantErr: ErrInvalidKey,
		},
		{
			name: "resolver returns nil provider",
			keys: ContextKeys,
			opts: []Option{
				WithTargetResolver(func(context.Context, Target, datasource.Lookup) (datasource.Provider, error) {
					return nil, nil
				}),
				WithTarget("A", Named("primary")),
			},
			wantErr: ErrInvalidTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.keys, tt.opts...)
			err := r.Initialize(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Initialize() error = %v, want %v", err, tt.wantErr)
			}
			if r.Initialized() {
				t.Error("router reports initialized after a failed Initialize")
			}
			if _, err := r.DetermineTarget(context.Background()); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("DetermineTarget() after failed init error = %v, want ErrNotInitialized", err)
			}
		})
	}
}

func TestInitialize_Twice(t *testing.T) {
	r := newExampleRouter(t, false)
	if err := r.Initialize(context.Background()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize() error = %v, want ErrAlreadyInitialized", err)
	}
}

func TestInitialize_EmptyTargets(t *testing.T) {
	r := New(ContextKeys, WithTargets(map[any]Target{}), WithDefault(Direct(providerD)))
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize with empty targets failed: %v", err)
	}

	got, err := r.DetermineTarget(context.Background())
	if err != nil || got != providerD {
		t.Errorf("DetermineTarget() = %v, %v; want D", got, err)
	}
}

func TestInitialize_NamedTargets(t *testing.T) {
	lookup := datasource.NewMapLookup(map[string]datasource.Provider{
		"primary": providerA,
		"replica": providerB,
	})
	r := New(ContextKeys,
		WithLookup(lookup),
		WithTargets(map[any]Target{
			"write": Named("primary"),
			"read":  Named("replica"),
			"batch": Direct(providerD),
		}),
		WithDefault(Named("primary")),
	)
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	targets := r.Targets()
	if len(targets) != 3 {
		t.Fatalf("len(Targets()) = %d, want 3", len(targets))
	}
	if targets["write"] != providerA || targets["read"] != providerB || targets["batch"] != providerD {
		t.Errorf("Targets() = %v", targets)
	}

	def, ok := r.DefaultTarget()
	if !ok || def != providerA {
		t.Errorf("DefaultTarget() = %v, %v; want A, true", def, ok)
	}

	// Later changes to the lookup do not affect the initialized table.
	lookup.Remove("replica")
	got, err := r.DetermineTarget(WithKey(context.Background(), "read"))
	if err != nil || got != providerB {
		t.Errorf("DetermineTarget(read) = %v, %v; want B", got, err)
	}
}

func TestInitialize_DefaultLookup(t *testing.T) {
	if err := datasource.Register("router-test-primary", providerA); err != nil {
		t.Fatalf("Register: %v", err)
	}
	t.Cleanup(func() { datasource.Unregister("router-test-primary") })

	r := New(ContextKeys,
		WithLookup(nil),
		WithTarget("A", Named("router-test-primary")),
	)
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	got, err := r.DetermineTarget(WithKey(context.Background(), "A"))
	if err != nil || got != providerA {
		t.Errorf("DetermineTarget() = %v, %v; want A", got, err)
	}
}

func TestAcquire_Delegates(t *testing.T) {
	r := newExampleRouter(t, false)

	conn, err := r.Acquire(WithKey(context.Background(), "B"))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer conn.Release()
	if conn.(*fakeConn).from != providerB {
		t.Errorf("connection came from %v, want B", conn.(*fakeConn).from)
	}

	conn2, err := r.AcquireWith(WithKey(context.Background(), "A"), datasource.Credentials{User: "report", Password: "x"})
	if err != nil {
		t.Fatalf("AcquireWith failed: %v", err)
	}
	defer conn2.Release()
	fc := conn2.(*fakeConn)
	if fc.from != providerA || fc.user != "report" {
		t.Errorf("AcquireWith connection = %+v, want from A as report", fc)
	}

	if _, err := r.Acquire(WithKey(context.Background(), "C")); !errors.Is(err, ErrNoTarget) {
		t.Errorf("Acquire(C) error = %v, want ErrNoTarget", err)
	}
}

func TestUnwrap(t *testing.T) {
	r := newExampleRouter(t, false)
	ctx := WithKey(context.Background(), "A")

	// The router satisfies its own type without consulting the key.
	self, err := datasource.As[*Router](context.Background(), r)
	if err != nil || self != r {
		t.Errorf("As[*Router] = %v, %v; want router itself", self, err)
	}

	inner, err := datasource.As[*fakeProvider](ctx, r)
	if err != nil || inner != providerA {
		t.Errorf("As[*fakeProvider] = %v, %v; want A", inner, err)
	}

	ok, err := datasource.IsWrapperFor[*fakeProvider](ctx, r)
	if err != nil || !ok {
		t.Errorf("IsWrapperFor[*fakeProvider] = %v, %v; want true", ok, err)
	}

	_, err = datasource.IsWrapperFor[*fakeProvider](WithKey(context.Background(), "C"), r)
	if !errors.Is(err, ErrNoTarget) {
		t.Errorf("IsWrapperFor with unknown key error = %v, want ErrNoTarget", err)
	}
}

func TestNestedRouters(t *testing.T) {
	inner := New(ReadOnlyKeys("read", "write"),
		WithName("inner"),
		WithTargets(map[any]Target{
			"read":  Direct(providerB),
			"write": Direct(providerA),
		}),
	)
	if err := inner.Initialize(context.Background()); err != nil {
		t.Fatalf("inner Initialize failed: %v", err)
	}

	outer := New(ContextKeys,
		WithName("outer"),
		WithTarget("tenant-1", Direct(inner)),
		WithDefault(Direct(providerD)),
		WithLenientFallback(false),
	)
	if err := outer.Initialize(context.Background()); err != nil {
		t.Fatalf("outer Initialize failed: %v", err)
	}

	ctx := WithReadOnly(WithKey(context.Background(), "tenant-1"), true)
	conn, err := outer.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if conn.(*fakeConn).from != providerB {
		t.Errorf("connection came from %v, want B", conn.(*fakeConn).from)
	}

	got, err := datasource.As[*fakeProvider](ctx, outer)
	if err != nil || got != providerB {
		t.Errorf("As through two routers = %v, %v; want B", got, err)
	}
}

func TestPing(t *testing.T) {
	r := newExampleRouter(t, false)
	if err := r.Ping(WithKey(context.Background(), "A")); err != nil {
		t.Errorf("Ping(A) error: %v", err)
	}
	if err := r.Ping(WithKey(context.Background(), "C")); !errors.Is(err, ErrNoTarget) {
		t.Errorf("Ping(C) error = %v, want ErrNoTarget", err)
	}
}

func TestMetrics(t *testing.T) {
	c := metrics.NewCollector("routedb")
	r := New(ContextKeys,
		WithName("orders"),
		WithMetrics(c),
		WithTarget("A", Direct(providerA)),
		WithDefault(Direct(providerD)),
		WithLenientFallback(false),
	)

	_, _ = r.DetermineTarget(context.Background())
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	_, _ = r.Acquire(WithKey(context.Background(), "A"))
	_, _ = r.Acquire(context.Background())
	_, _ = r.Acquire(WithKey(context.Background(), "C"))

	checks := map[string]float64{
		metrics.OutcomeUninitialized: 1,
		metrics.OutcomeMatch:         1,
		metrics.OutcomeFallback:      1,
		metrics.OutcomeMiss:          1,
	}
	for outcome, want := range checks {
		if got := testutil.ToFloat64(c.Resolutions.WithLabelValues("orders", outcome)); got != want {
			t.Errorf("%s resolutions = %v, want %v", outcome, got, want)
		}
	}
	if got := testutil.ToFloat64(c.Acquisitions.WithLabelValues("orders", "error")); got != 1 {
		t.Errorf("failed acquisitions = %v, want 1", got)
	}
}

func TestConcurrentResolution(t *testing.T) {
	r := newExampleRouter(t, true)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key, want := "A", datasource.Provider(providerA)
			if i%2 == 1 {
				key, want = "B", providerB
			}
			got, err := r.DetermineTarget(WithKey(context.Background(), key))
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- errors.New("wrong provider for " + key)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestTargetOf(t *testing.T) {
	tests := []struct {
		name     string
		v        any
		wantName string
		wantErr  bool
	}{
		{name: "provider", v: providerA},
		{name: "string", v: "primary", wantName: "primary"},
		{name: "target", v: Named("replica"), wantName: "replica"},
		{name: "int", v: 42, wantErr: true},
		{name: "nil", v: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TargetOf(tt.v)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTarget) {
					t.Fatalf("TargetOf(%v) error = %v, want ErrInvalidTarget", tt.v, err)
				}
				if !strings.Contains(err.Error(), "42") && tt.v != nil {
					t.Errorf("error %q does not name the bad value", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("TargetOf(%v) unexpected error: %v", tt.v, err)
			}
			if name, ok := got.Name(); tt.wantName != "" && (!ok || name != tt.wantName) {
				t.Errorf("Name() = %q, %v; want %q", name, ok, tt.wantName)
			}
			if tt.wantName == "" {
				if p, ok := got.Provider(); !ok || p != providerA {
					t.Errorf("Provider() = %v, %v; want A", p, ok)
				}
			}
		})
	}
}
