package edgeshard

import (
	"fmt"
	"time"
)

// Strategy names the edge decision strategy an ingress uses.
type Strategy string

const (
	// StrategyRandom hashes each edge onto a machine.
	StrategyRandom Strategy = "random"

	// StrategyOblivious is the PowerGraph greedy heuristic.
	StrategyOblivious Strategy = "oblivious"

	// StrategyHDRF is High-Degree Replicated First.
	StrategyHDRF Strategy = "hdrf"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyRandom, StrategyOblivious, StrategyHDRF:
		return true
	default:
		return false
	}
}

// TableConfig tunes the per-vertex cuckoo tables.
type TableConfig struct {
	// InitialCapacity is the slot count of each stripe's table after
	// construction and after Finalize clears it. Must be a power of two.
	InitialCapacity int `yaml:"initialCapacity"`

	// MaxStash is the overflow stash size that triggers a table resize.
	MaxStash int `yaml:"maxStash"`

	// MaxDisplacements bounds the cuckoo random walk of a single insert.
	MaxDisplacements int `yaml:"maxDisplacements"`

	// Seed seeds the random walk. Tables built with the same seed and
	// the same insert order have the same layout.
	Seed uint64 `yaml:"seed"`
}

// Config is the configuration for an Ingress.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// Strategy selects the decision strategy used by New.
	// One of "random", "oblivious", "hdrf".
	Strategy Strategy `yaml:"strategy"`

	// UseHash counts machine (v mod numMachines) as holding a replica of v when scoring.
	UseHash bool `yaml:"usehash"`

	// UseRecent resets both endpoint replica vectors before recording a placement,
	// so scoring only sees the most recent machine of each vertex.
	UseRecent bool `yaml:"userecent"`

	// LockStripes is the number of lock stripes protecting the per-vertex tables.
	// Must be a power of two. 1 serializes all decisions behind one lock.
	LockStripes int `yaml:"lockStripes"`

	// Table tunes the per-vertex tables.
	Table TableConfig `yaml:"table"`

	// FinalizeTimeout bounds the collective part of Finalize (flush and
	// reduction). 0 means Finalize relies on the caller's context only.
	FinalizeTimeout time.Duration `yaml:"finalizeTimeout"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		Strategy:    StrategyHDRF,
		LockStripes: 64,
		Table: TableConfig{
			InitialCapacity:  128,
			MaxStash:         8,
			MaxDisplacements: 100,
		},
		FinalizeTimeout: 5 * time.Minute,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// UseHash, UseRecent and Table.Seed keep their zero values.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Strategy == "" {
		cfg.Strategy = defaults.Strategy
	}
	if cfg.LockStripes == 0 {
		cfg.LockStripes = defaults.LockStripes
	}
	if cfg.Table.InitialCapacity == 0 {
		cfg.Table.InitialCapacity = defaults.Table.InitialCapacity
	}
	if cfg.Table.MaxStash == 0 {
		cfg.Table.MaxStash = defaults.Table.MaxStash
	}
	if cfg.Table.MaxDisplacements == 0 {
		cfg.Table.MaxDisplacements = defaults.Table.MaxDisplacements
	}
	// Note: FinalizeTimeout of 0 is valid (context only), so we don't apply default
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - Strategy is one of random, oblivious, hdrf
//   - LockStripes is a positive power of two
//   - Table.InitialCapacity is a power of two >= 8
//   - Table.MaxStash >= 0, Table.MaxDisplacements > 0
//   - FinalizeTimeout >= 0
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if !cfg.Strategy.Valid() {
		return fmt.Errorf("unknown strategy %q, expected one of random, oblivious, hdrf", cfg.Strategy)
	}

	if !isPow2(cfg.LockStripes) {
		return fmt.Errorf("LockStripes (%d) must be a positive power of two", cfg.LockStripes)
	}

	if cfg.Table.InitialCapacity < 8 || !isPow2(cfg.Table.InitialCapacity) {
		return fmt.Errorf("Table.InitialCapacity (%d) must be a power of two >= 8", cfg.Table.InitialCapacity)
	}

	if cfg.Table.MaxStash < 0 {
		return fmt.Errorf("Table.MaxStash must be >= 0, got %d", cfg.Table.MaxStash)
	}

	if cfg.Table.MaxDisplacements <= 0 {
		return fmt.Errorf("Table.MaxDisplacements must be > 0, got %d", cfg.Table.MaxDisplacements)
	}

	if cfg.FinalizeTimeout < 0 {
		return fmt.Errorf("FinalizeTimeout must be >= 0, got %v", cfg.FinalizeTimeout)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in New() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Strategy == StrategyRandom && (cfg.UseHash || cfg.UseRecent) {
		logger.Warn(
			"usehash and userecent have no effect with the random strategy",
			"usehash", cfg.UseHash,
			"userecent", cfg.UseRecent,
		)
	}

	if cfg.LockStripes == 1 {
		logger.Warn(
			"single lock stripe serializes every decision",
			"lockStripes", cfg.LockStripes,
			"recommended", "64 or higher with concurrent loaders",
		)
	}

	if cfg.Table.MaxStash > 64 {
		logger.Warn(
			"large MaxStash slows lookups of stashed vertices",
			"maxStash", cfg.Table.MaxStash,
			"recommended", 8,
		)
	}
}

// TestConfig returns a configuration for tests: few stripes, tiny tables
// that resize often, a fixed seed and a short finalize bound.
//
// Returns:
//   - Config: Configuration tuned for fast, reproducible tests
//
// Example:
//
//	cfg := edgeshard.TestConfig()
//	cfg.Strategy = edgeshard.StrategyOblivious
//	ing, err := edgeshard.New(&cfg, cluster, transport)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.LockStripes = 4
	cfg.Table.InitialCapacity = 8
	cfg.Table.Seed = 1
	cfg.FinalizeTimeout = 10 * time.Second

	return cfg
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}
