package edgeshard

// Option configures an Ingress with optional dependencies.
type Option func(*ingressOptions)

// ingressOptions holds optional Ingress configuration.
type ingressOptions struct {
	logger  Logger
	metrics MetricsCollector
	reducer Reducer
	base    BaseIngress
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for New and the strategy constructors
//
// Example:
//
//	ing, err := edgeshard.New(&cfg, cl, tr, edgeshard.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *ingressOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for New and the strategy constructors
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *ingressOptions) {
		o.metrics = metrics
	}
}

// WithReducer sets the collective reduction used by Finalize to compute the
// cluster-wide edge count. Required when the cluster has more than one machine.
//
// Parameters:
//   - reducer: Reducer shared by every machine's ingress (e.g. cluster.LocalReducer
//     party or cluster.KVReducer)
//
// Returns:
//   - Option: Functional option for New and the strategy constructors
func WithReducer(reducer Reducer) Option {
	return func(o *ingressOptions) {
		o.reducer = reducer
	}
}

// WithBaseIngress sets the component finalized last by Finalize, typically
// the local graph store or a transport receiver wrapping it.
//
// Parameters:
//   - base: BaseIngress implementation
//
// Returns:
//   - Option: Functional option for New and the strategy constructors
func WithBaseIngress(base BaseIngress) Option {
	return func(o *ingressOptions) {
		o.base = base
	}
}
