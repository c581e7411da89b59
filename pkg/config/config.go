package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/burrow/pkg/autoscale"
	"github.com/cuemby/burrow/pkg/pool"
	"github.com/cuemby/burrow/pkg/quarantine"
	"github.com/cuemby/burrow/pkg/scope"
	"gopkg.in/yaml.v3"
)

// Config is the top-level manifest
type Config struct {
	Logging Logging `yaml:"logging"`

	// Strategy is the scope matching strategy applied to every
	// acquisition
	Strategy scope.Strategy `yaml:"strategy"`

	// DataDir enables quarantine persistence when set
	DataDir string `yaml:"data_dir"`

	// Credentials enables the encrypted credential vault when set
	Credentials *CredentialsSpec `yaml:"credentials,omitempty"`

	Pools map[string]PoolSpec `yaml:"pools"`
}

// CredentialsSpec points at the credential vault file. The passphrase
// is read from the named environment variable, never from the manifest.
type CredentialsSpec struct {
	Path          string `yaml:"path"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

// Logging configures the global logger
type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// HealthSpec tunes the per-instance monitor for one pool
type HealthSpec struct {
	Interval  time.Duration `yaml:"interval"`
	Timeout   time.Duration `yaml:"timeout"`
	Threshold int           `yaml:"threshold"`
}

// PoolSpec configures one resource pool and its companions
type PoolSpec struct {
	Pool       pool.Config       `yaml:",inline"`
	DependsOn  []string          `yaml:"depends_on"`
	Health     HealthSpec        `yaml:"health"`
	Quarantine quarantine.Config `yaml:"quarantine"`
	Autoscale  *autoscale.Policy `yaml:"autoscale,omitempty"`
}

// Default returns a minimal working manifest
func Default() *Config {
	return &Config{
		Logging:  Logging{Level: "info"},
		Strategy: scope.StrategyHierarchical,
		Pools:    make(map[string]PoolSpec),
	}
}

// Load reads and validates a manifest file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the manifest invariants
func (c *Config) Validate() error {
	if c.Strategy != "" && !c.Strategy.Valid() {
		return fmt.Errorf("unknown scope strategy %q", c.Strategy)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	if c.Credentials != nil {
		if c.Credentials.Path == "" {
			return fmt.Errorf("credentials: path is required")
		}
		if c.Credentials.PassphraseEnv == "" {
			return fmt.Errorf("credentials: passphrase_env is required")
		}
	}

	for name, spec := range c.Pools {
		if name == "" {
			return fmt.Errorf("pool with empty name")
		}
		if err := spec.Pool.WithDefaults().Validate(); err != nil {
			return fmt.Errorf("pool %s: %w", name, err)
		}
		if spec.Autoscale != nil {
			if err := spec.Autoscale.Validate(); err != nil {
				return fmt.Errorf("pool %s autoscale: %w", name, err)
			}
		}
		if spec.Health.Threshold < 0 {
			return fmt.Errorf("pool %s: health threshold must not be negative", name)
		}
		for _, dep := range spec.DependsOn {
			if _, ok := c.Pools[dep]; !ok {
				return fmt.Errorf("pool %s depends on unknown pool %s", name, dep)
			}
		}
	}
	return nil
}
