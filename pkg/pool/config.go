package pool

import (
	"fmt"
	"time"
)

// SelectionStrategy picks which idle instance an acquire receives
type SelectionStrategy string

const (
	// SelectFIFO hands out the least recently used instance (fairness)
	SelectFIFO SelectionStrategy = "fifo"

	// SelectLIFO hands out the most recently used instance (connection
	// locality)
	SelectLIFO SelectionStrategy = "lifo"
)

// Config tunes one pool. Immutable once the pool is built; hot-reload
// replaces the whole pool.
type Config struct {
	// MinSize is the number of idle instances maintenance keeps warm
	MinSize int `yaml:"min_size"`

	// MaxSize bounds idle + in-use instances
	MaxSize int `yaml:"max_size"`

	// HardMaxSize is the absolute ceiling the auto-scaler may grow
	// MaxSize to. Zero means MaxSize (no headroom).
	HardMaxSize int `yaml:"hard_max_size"`

	// AcquireTimeout bounds how long an acquire waits for a permit
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`

	// IdleTimeout evicts instances idle longer than this
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxLifetime evicts instances older than this regardless of use
	MaxLifetime time.Duration `yaml:"max_lifetime"`

	// ValidationInterval is the maintenance pass cadence
	ValidationInterval time.Duration `yaml:"validation_interval"`

	// Strategy selects FIFO or LIFO idle selection
	Strategy SelectionStrategy `yaml:"strategy"`
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		MinSize:            0,
		MaxSize:            10,
		AcquireTimeout:     5 * time.Second,
		IdleTimeout:        5 * time.Minute,
		MaxLifetime:        30 * time.Minute,
		ValidationInterval: 30 * time.Second,
		Strategy:           SelectFIFO,
	}
}

// Validate checks the config invariants
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("pool config: max_size must be positive, got %d", c.MaxSize)
	}
	if c.MinSize < 0 {
		return fmt.Errorf("pool config: min_size must not be negative, got %d", c.MinSize)
	}
	if c.MinSize > c.MaxSize {
		return fmt.Errorf("pool config: min_size %d exceeds max_size %d", c.MinSize, c.MaxSize)
	}
	if c.HardMaxSize != 0 && c.HardMaxSize < c.MaxSize {
		return fmt.Errorf("pool config: hard_max_size %d below max_size %d", c.HardMaxSize, c.MaxSize)
	}
	if c.AcquireTimeout <= 0 {
		return fmt.Errorf("pool config: acquire_timeout must be positive")
	}
	switch c.Strategy {
	case SelectFIFO, SelectLIFO, "":
	default:
		return fmt.Errorf("pool config: unknown selection strategy %q", c.Strategy)
	}
	return nil
}

// WithDefaults fills unset optional fields
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = d.AcquireTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = d.MaxLifetime
	}
	if c.ValidationInterval == 0 {
		c.ValidationInterval = d.ValidationInterval
	}
	if c.Strategy == "" {
		c.Strategy = SelectFIFO
	}
	if c.HardMaxSize == 0 {
		c.HardMaxSize = c.MaxSize
	}
	return c
}
