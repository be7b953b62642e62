package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rickgao/routedb/internal/config"
	"github.com/rickgao/routedb/internal/datasource"
	"github.com/rickgao/routedb/internal/router"
)

// BuildRouter creates and initializes the router described by cfg. Named
// targets are resolved through lookup; a nil lookup uses the process-wide
// registry.
func BuildRouter(ctx context.Context, cfg config.RoutingConfig, lookup datasource.Lookup, opts ...router.Option) (*router.Router, error) {
	var (
		keys        router.KeySource
		keyResolver router.KeyResolver
	)
	switch cfg.KeySource {
	case config.KeySourceHeader, "":
		keys, keyResolver = router.ContextKeys, router.StringKeys
	case config.KeySourceReadOnly:
		keys = router.ReadOnlyKeys(router.NormalizeKey(cfg.ReadKey), router.NormalizeKey(cfg.WriteKey))
		keyResolver = router.StringKeys
	case config.KeySourceIsolation:
		keys, keyResolver = router.IsolationKeySource, router.IsolationKeys
	default:
		return nil, fmt.Errorf("unknown key source %q", cfg.KeySource)
	}

	targets := make(map[any]router.Target, len(cfg.Targets))
	for key, name := range cfg.Targets {
		targets[key] = router.Named(name)
	}

	all := []router.Option{
		router.WithName(cfg.Name),
		router.WithTargets(targets),
		router.WithLenientFallback(cfg.Lenient()),
		router.WithLookup(lookup),
		router.WithKeyResolver(keyResolver),
	}
	if cfg.Default != "" {
		all = append(all, router.WithDefault(router.Named(cfg.Default)))
	}
	all = append(all, opts...)

	r := router.New(keys, all...)
	if err := r.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize router %s: %w", r.Name(), err)
	}
	return r, nil
}

// KeyBinder attaches the routing key for a request to its context.
type KeyBinder func(r *http.Request) (*http.Request, error)

// BindKeys returns the KeyBinder matching cfg.KeySource.
func BindKeys(cfg config.RoutingConfig) KeyBinder {
	switch cfg.KeySource {
	case config.KeySourceReadOnly:
		return func(r *http.Request) (*http.Request, error) {
			return r.WithContext(router.WithReadOnly(r.Context(), isSafeMethod(r.Method))), nil
		}
	case config.KeySourceIsolation:
		return func(r *http.Request) (*http.Request, error) {
			v := r.Header.Get(cfg.KeyHeader)
			if v == "" {
				return r, nil
			}
			level, err := router.ParseIsolation(v)
			if err != nil {
				return nil, err
			}
			return r.WithContext(router.WithIsolation(r.Context(), level)), nil
		}
	default:
		return func(r *http.Request) (*http.Request, error) {
			v := r.Header.Get(cfg.KeyHeader)
			if strings.TrimSpace(v) == "" {
				return r, nil
			}
			return r.WithContext(router.WithKey(r.Context(), router.NormalizeKey(v))), nil
		}
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
