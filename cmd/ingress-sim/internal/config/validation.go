package config

import (
	"errors"
	"fmt"
)

// validateConfig validates the configuration for logical consistency.
func validateConfig(cfg *Config) error {
	if cfg.Simulation.Machines <= 0 {
		return errors.New("machine count must be positive")
	}
	if cfg.Simulation.Loaders <= 0 {
		return errors.New("loader count must be positive")
	}
	switch cfg.Simulation.Mode {
	case "local", "nats":
	default:
		return fmt.Errorf("invalid simulation mode: %s (must be one of: local, nats)", cfg.Simulation.Mode)
	}

	if cfg.Graph.Edges < 0 {
		return errors.New("edge count cannot be negative")
	}
	if cfg.Graph.Vertices < 2 {
		return errors.New("vertex space must hold at least 2 vertices")
	}
	switch cfg.Graph.Distribution {
	case "uniform":
	case "powerlaw":
		if cfg.Graph.Exponent <= 1 {
			return fmt.Errorf("powerlaw exponent must be > 1, got %v", cfg.Graph.Exponent)
		}
	default:
		return fmt.Errorf("invalid distribution: %s (must be one of: uniform, powerlaw)", cfg.Graph.Distribution)
	}
	if cfg.Graph.PayloadBytes < 0 {
		return errors.New("payload size cannot be negative")
	}

	if cfg.Rate.EdgesPerSecond < 0 {
		return errors.New("edge rate cannot be negative")
	}

	if err := cfg.Ingress.Validate(); err != nil {
		return fmt.Errorf("ingress: %w", err)
	}

	if cfg.Simulation.Mode == "nats" {
		switch cfg.NATS.Mode {
		case "embedded", "external":
		default:
			return fmt.Errorf("invalid NATS mode: %s (must be one of: embedded, external)", cfg.NATS.Mode)
		}
	}

	if cfg.Metrics.Prometheus.Enabled && (cfg.Metrics.Prometheus.Port <= 0 || cfg.Metrics.Prometheus.Port > 65535) {
		return fmt.Errorf("invalid Prometheus port: %d", cfg.Metrics.Prometheus.Port)
	}

	return nil
}
