package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if len(c.DataSources) == 0 {
		return errors.New("datasources must define at least one data source")
	}
	// Sorted so the first error reported is stable.
	for _, name := range sortedKeys(c.DataSources) {
		db := c.DataSources[name]
		if err := db.validate("datasources." + name); err != nil {
			return err
		}
	}

	if err := c.Routing.validate(c.DataSources); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	switch db.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if db.Path == "" {
			return fmt.Errorf("%s.path is required", prefix)
		}
		return nil
	default:
		return fmt.Errorf("%s.driver must be %s or %s, got %q", prefix, DriverPostgres, DriverSQLite, db.Driver)
	}

	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func (r *RoutingConfig) validate(sources map[string]DBConfig) error {
	switch r.KeySource {
	case KeySourceHeader, KeySourceReadOnly, KeySourceIsolation:
	default:
		return fmt.Errorf("routing.key_source must be one of %s, %s, %s; got %q",
			KeySourceHeader, KeySourceReadOnly, KeySourceIsolation, r.KeySource)
	}

	if r.Targets == nil {
		return errors.New("routing.targets is required")
	}
	for _, key := range sortedKeys(r.Targets) {
		name := r.Targets[key]
		if _, ok := sources[name]; !ok {
			return fmt.Errorf("routing.targets.%s refers to unknown data source %q", key, name)
		}
	}
	if r.Default != "" {
		if _, ok := sources[r.Default]; !ok {
			return fmt.Errorf("routing.default refers to unknown data source %q", r.Default)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
