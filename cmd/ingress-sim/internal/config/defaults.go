package config

import "github.com/arloliu/edgeshard"

// applyDefaults applies default values to configuration fields that are not set.
func applyDefaults(cfg *Config) {
	if cfg.Simulation.Machines == 0 {
		cfg.Simulation.Machines = 4
	}
	if cfg.Simulation.Loaders == 0 {
		cfg.Simulation.Loaders = 4
	}
	if cfg.Simulation.Mode == "" {
		cfg.Simulation.Mode = "local"
	}

	if cfg.Graph.Edges == 0 {
		cfg.Graph.Edges = 100_000
	}
	if cfg.Graph.Vertices == 0 {
		cfg.Graph.Vertices = 10_000
	}
	if cfg.Graph.Distribution == "" {
		cfg.Graph.Distribution = "powerlaw"
	}
	if cfg.Graph.Exponent == 0 {
		cfg.Graph.Exponent = 2.0
	}
	if cfg.Graph.Seed == 0 {
		cfg.Graph.Seed = 1
	}

	if cfg.Rate.EdgesPerSecond > 0 && cfg.Rate.Burst == 0 {
		cfg.Rate.Burst = 1000
	}

	edgeshard.SetDefaults(&cfg.Ingress)

	if cfg.NATS.Mode == "" {
		cfg.NATS.Mode = "embedded"
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "edgeshard"
	}
	if cfg.NATS.ReduceBucket == "" {
		cfg.NATS.ReduceBucket = "edgeshard-reduce"
	}
	if cfg.NATS.MemberBucket == "" {
		cfg.NATS.MemberBucket = "edgeshard-members"
	}

	if cfg.Metrics.Prometheus.Port == 0 {
		cfg.Metrics.Prometheus.Port = 9090
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
