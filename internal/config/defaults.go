package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerPort      = 8080
	DefaultShutdownTimeout = 10 * time.Second
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultConnectTimeout  = 10 * time.Second
	DefaultRouterName      = "default"
	DefaultKeySource       = KeySourceHeader
	DefaultKeyHeader       = "X-Route-Key"
	DefaultIsolationHeader = "X-Isolation-Level"
	DefaultReadKey         = "read"
	DefaultWriteKey        = "write"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultLogMaxSizeMB    = 100
	DefaultLogMaxFiles     = 5
	DefaultLogMaxAgeDays   = 30
	DefaultMetricsNS       = "routedb"
	DefaultMetricsPath     = "/metrics"
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Data source defaults
	for name, db := range c.DataSources {
		applyDBDefaults(&db)
		c.DataSources[name] = db
	}

	// Routing defaults
	if c.Routing.Name == "" {
		c.Routing.Name = DefaultRouterName
	}
	if c.Routing.KeySource == "" {
		c.Routing.KeySource = DefaultKeySource
	}
	if c.Routing.KeyHeader == "" {
		if c.Routing.KeySource == KeySourceIsolation {
			c.Routing.KeyHeader = DefaultIsolationHeader
		} else {
			c.Routing.KeyHeader = DefaultKeyHeader
		}
	}
	if c.Routing.ReadKey == "" {
		c.Routing.ReadKey = DefaultReadKey
	}
	if c.Routing.WriteKey == "" {
		c.Routing.WriteKey = DefaultWriteKey
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.FileMaxSizeMB == 0 {
		c.Logging.FileMaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.FileMaxFiles == 0 {
		c.Logging.FileMaxFiles = DefaultLogMaxFiles
	}
	if c.Logging.FileMaxAgeDays == 0 {
		c.Logging.FileMaxAgeDays = DefaultLogMaxAgeDays
	}

	// Metrics defaults
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNS
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Driver == "" {
		db.Driver = DriverPostgres
	}
	if db.Driver != DriverPostgres {
		return
	}
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
	if db.ConnectTimeout == 0 {
		db.ConnectTimeout = DefaultConnectTimeout
	}
}
