package config

import "time"

// Config is the root configuration for a routerd instance.
type Config struct {
	Instance    InstanceConfig      `yaml:"instance"`
	Server      ServerConfig        `yaml:"server"`
	DataSources map[string]DBConfig `yaml:"datasources"`
	Routing     RoutingConfig       `yaml:"routing"`
	Logging     LoggingConfig       `yaml:"logging"`
	Metrics     MetricsConfig       `yaml:"metrics"`
}

// InstanceConfig identifies this instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Supported data source drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DBConfig holds a single data source.
type DBConfig struct {
	Driver string `yaml:"driver"`

	// PostgreSQL
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Name           string        `yaml:"name"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	SSLMode        string        `yaml:"ssl_mode"`
	MaxConns       int           `yaml:"max_conns"`
	MinConns       int           `yaml:"min_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// SQLite
	Path string `yaml:"path"`
}

// Key sources understood by routerd.
const (
	KeySourceHeader    = "header"    // lookup key taken from a request header
	KeySourceReadOnly  = "readonly"  // safe HTTP methods route to read_key
	KeySourceIsolation = "isolation" // isolation level header, keys are isolation levels
)

// RoutingConfig describes the router built over the data sources.
type RoutingConfig struct {
	Name      string `yaml:"name"`
	KeySource string `yaml:"key_source"`
	KeyHeader string `yaml:"key_header"`
	ReadKey   string `yaml:"read_key"`
	WriteKey  string `yaml:"write_key"`

	// Targets maps lookup keys to data source names.
	Targets map[string]string `yaml:"targets"`
	Default string            `yaml:"default"`

	// LenientFallback is a pointer so an absent value can default to true.
	LenientFallback *bool `yaml:"lenient_fallback"`
}

// Lenient reports the effective lenient fallback setting.
func (r RoutingConfig) Lenient() bool {
	return r.LenientFallback == nil || *r.LenientFallback
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxFiles   int    `yaml:"file_max_files"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Path      string `yaml:"path"`
}
