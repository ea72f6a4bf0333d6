// Package config loads the ingress simulator configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/edgeshard"
)

// Config is the root configuration structure.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Graph      GraphConfig      `yaml:"graph"`
	Rate       RateConfig       `yaml:"rate"`
	Ingress    edgeshard.Config `yaml:"ingress"`
	NATS       NATSConfig       `yaml:"nats"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// SimulationConfig configures the simulated cluster.
type SimulationConfig struct {
	Machines int    `yaml:"machines"` // Simulated machines, each running one ingress
	Loaders  int    `yaml:"loaders"`  // Loader goroutines per machine
	Mode     string `yaml:"mode"`     // "local" or "nats"
}

// GraphConfig configures the generated edge stream.
type GraphConfig struct {
	Edges        int     `yaml:"edges"`        // Total edges across all machines
	Vertices     uint64  `yaml:"vertices"`     // Vertex ID space
	Distribution string  `yaml:"distribution"` // "uniform" or "powerlaw"
	Exponent     float64 `yaml:"exponent"`     // Zipf exponent for powerlaw, > 1
	PayloadBytes int     `yaml:"payloadBytes"` // Opaque data attached to each edge
	Seed         uint64  `yaml:"seed"`
}

// RateConfig throttles the loaders.
type RateConfig struct {
	EdgesPerSecond float64 `yaml:"edgesPerSecond"` // 0 disables throttling
	Burst          int     `yaml:"burst"`
}

// NATSConfig configures the NATS transport and reducer.
type NATSConfig struct {
	Mode          string `yaml:"mode"` // "embedded" or "external"
	URL           string `yaml:"url"`  // "nats://localhost:4222"
	SubjectPrefix string `yaml:"subjectPrefix"`
	ReduceBucket  string `yaml:"reduceBucket"`
	MemberBucket  string `yaml:"memberBucket"`
}

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

// PrometheusConfig configures the Prometheus endpoint.
type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"` // 9090
}

// LoggingConfig configures the simulator log output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// CheckpointConfig configures table snapshots taken right before Finalize.
type CheckpointConfig struct {
	Dir string `yaml:"dir"` // Empty disables snapshots
}

// LoadConfig loads configuration from a YAML file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded configuration with defaults applied
//   - error: Error if file cannot be read, parsed or validated
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
