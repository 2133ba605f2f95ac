package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"prologns/internal/consult"
	"prologns/internal/query"
	"prologns/internal/session"
)

// Engine backends.
const (
	BackendProlog = "prolog"
	BackendMangle = "mangle"
)

// ValidBackends lists all supported engine backends.
var ValidBackends = []string{BackendProlog, BackendMangle}

// Config holds all prologns configuration.
type Config struct {
	// Engine selection and limits
	Engine EngineConfig `yaml:"engine"`

	// Default namespace for new sessions
	Session SessionConfig `yaml:"session"`

	// Per-operation defaults
	Query    QueryConfig    `yaml:"query"`
	Consult  ConsultConfig  `yaml:"consult"`
	Mutation MutationConfig `yaml:"mutation"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// File watching
	Watch WatchConfig `yaml:"watch"`
}

// EngineConfig selects and tunes the shared engine.
type EngineConfig struct {
	Backend      string `yaml:"backend"`       // prolog, mangle
	FactLimit    int    `yaml:"fact_limit"`    // mangle only
	QueryTimeout string `yaml:"query_timeout"` // empty means no timeout
}

// SessionConfig configures session creation.
type SessionConfig struct {
	// Module pins the namespace. Empty generates a fresh one per session.
	Module string `yaml:"module"`
}

// QueryConfig holds query defaults.
type QueryConfig struct {
	MaxResults  int  `yaml:"max_results"` // -1 = unlimited
	CatchErrors bool `yaml:"catch_errors"`
	Normalize   bool `yaml:"normalize"`
}

// ConsultConfig holds knowledge-base loading defaults.
type ConsultConfig struct {
	TempDir     string `yaml:"temp_dir"`
	CatchErrors bool   `yaml:"catch_errors"`
}

// MutationConfig holds defaults for assert/retract style goals.
type MutationConfig struct {
	CatchErrors bool `yaml:"catch_errors"`
}

// WatchConfig configures reconsult-on-change.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Backend:   BackendProlog,
			FactLimit: 500000,
		},
		Query: QueryConfig{
			MaxResults:  query.Unlimited,
			CatchErrors: true,
			Normalize:   true,
		},
		Consult: ConsultConfig{
			CatchErrors: false,
		},
		Mutation: MutationConfig{
			CatchErrors: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Watch: WatchConfig{
			Debounce: "200ms",
		},
	}
}

// Load loads configuration from a YAML file. A missing file or an empty path
// yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
			// Defaults
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PROLOGNS_MODULE"); v != "" {
		c.Session.Module = v
	}
	if v := os.Getenv("PROLOGNS_TEMP_DIR"); v != "" {
		c.Consult.TempDir = v
	}
	if v := os.Getenv("PROLOGNS_BACKEND"); v != "" {
		c.Engine.Backend = v
	}
	if v := os.Getenv("PROLOGNS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv("PROLOGNS_MAX_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PROLOGNS_MAX_RESULTS %q: %w", v, err)
		}
		c.Query.MaxResults = n
	}
	if v := os.Getenv("PROLOGNS_CATCH_ERRORS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PROLOGNS_CATCH_ERRORS %q: %w", v, err)
		}
		c.Query.CatchErrors = b
	}
	if v := os.Getenv("PROLOGNS_NORMALIZE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PROLOGNS_NORMALIZE %q: %w", v, err)
		}
		c.Query.Normalize = b
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validBackend := false
	for _, b := range ValidBackends {
		if c.Engine.Backend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid engine backend: %s (valid: %v)", c.Engine.Backend, ValidBackends)
	}

	if c.Session.Module != "" {
		if err := session.Validate(c.Session.Module); err != nil {
			return fmt.Errorf("invalid session module: %w", err)
		}
	}

	if c.Engine.QueryTimeout != "" {
		if _, err := time.ParseDuration(c.Engine.QueryTimeout); err != nil {
			return fmt.Errorf("invalid engine query_timeout %q: %w", c.Engine.QueryTimeout, err)
		}
	}
	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("invalid watch debounce %q: %w", c.Watch.Debounce, err)
		}
	}

	if c.Consult.TempDir != "" {
		info, err := os.Stat(c.Consult.TempDir)
		if err != nil {
			return fmt.Errorf("invalid consult temp_dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("invalid consult temp_dir: %s is not a directory", c.Consult.TempDir)
		}
	}

	return c.Logging.Validate()
}

// GetQueryTimeout returns the per-query timeout. Zero means none.
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Engine.QueryTimeout)
	if err != nil {
		return 0
	}
	return d
}

// GetDebounce returns the watch debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// QueryOptions returns the configured query defaults.
func (c *Config) QueryOptions() query.Options {
	return query.Options{
		MaxResults:  c.Query.MaxResults,
		CatchErrors: c.Query.CatchErrors,
		Normalize:   c.Query.Normalize,
	}
}

// MutationOptions returns query options for mutation goals.
func (c *Config) MutationOptions() query.Options {
	return query.Options{
		MaxResults:  1,
		CatchErrors: c.Mutation.CatchErrors,
		Normalize:   true,
	}
}

// ConsultOptions returns the configured consult defaults.
func (c *Config) ConsultOptions(isPath bool) consult.Options {
	return consult.Options{
		IsPath:      isPath,
		CatchErrors: c.Consult.CatchErrors,
		TempDir:     c.Consult.TempDir,
	}
}
