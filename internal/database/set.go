package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rickgao/routedb/internal/config"
	"github.com/rickgao/routedb/internal/datasource"
	"golang.org/x/sync/errgroup"
)

// Open creates the provider for a single data source. The returned close
// function releases its resources.
func Open(ctx context.Context, cfg config.DBConfig) (datasource.Provider, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres, "":
		pool, err := Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgres(pool), pool.Close, nil
	case config.DriverSQLite:
		db, err := OpenSQLite(ctx, cfg.Path, cfg.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		return NewSQL(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// Set holds the open data sources of a process.
type Set struct {
	providers map[string]datasource.Provider
	closers   map[string]func()
	lookup    *datasource.MapLookup
}

// OpenAll opens every data source in cfgs concurrently. If any fails, the
// ones already opened are closed and the first error is returned.
func OpenAll(ctx context.Context, cfgs map[string]config.DBConfig, logger *slog.Logger) (*Set, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Set{
		providers: make(map[string]datasource.Provider, len(cfgs)),
		closers:   make(map[string]func(), len(cfgs)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, cfg := range cfgs {
		name, cfg := name, cfg
		g.Go(func() error {
			p, closeFn, err := Open(gctx, cfg)
			if err != nil {
				return fmt.Errorf("open data source %s: %w", name, err)
			}

			mu.Lock()
			s.providers[name] = p
			s.closers[name] = closeFn
			mu.Unlock()

			logger.Info("data source opened", "name", name, "driver", cfg.Driver)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.Close()
		return nil, err
	}

	s.lookup = datasource.NewMapLookup(s.providers)
	return s, nil
}

// Get returns the provider for name.
func (s *Set) Get(name string) (datasource.Provider, bool) {
	p, ok := s.providers[name]
	return p, ok
}

// Names returns the data source names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves data source names for named routing targets.
func (s *Set) Lookup() datasource.Lookup {
	return s.lookup
}

// Ping checks every data source and returns the failures by name.
func (s *Set) Ping(ctx context.Context) map[string]error {
	failed := make(map[string]error)
	for name, p := range s.providers {
		if err := datasource.Ping(ctx, p); err != nil {
			failed[name] = err
		}
	}
	return failed
}

// Register adds every data source to the process-wide registry, so routers
// built without an explicit lookup can resolve them by name.
func (s *Set) Register() error {
	var errs []error
	for _, name := range s.Names() {
		if err := datasource.Register(name, s.providers[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every data source.
func (s *Set) Close() {
	for name, closeFn := range s.closers {
		closeFn()
		delete(s.closers, name)
	}
}
