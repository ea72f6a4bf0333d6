package transport

import (
	"time"

	"github.com/arloliu/edgeshard/internal/logger"
	"github.com/arloliu/edgeshard/internal/metrics"
	"github.com/arloliu/edgeshard/types"
)

// DefaultFlushTimeout bounds a NATS flush when the context has no deadline.
const DefaultFlushTimeout = 30 * time.Second

type options struct {
	logger       types.Logger
	metrics      types.TransportMetrics
	flushTimeout time.Duration
}

func defaultOptions() options {
	return options{
		logger:       logger.NewNop(),
		metrics:      metrics.NewNop(),
		flushTimeout: DefaultFlushTimeout,
	}
}

// Option configures a Local, NATS or Receiver.
type Option func(*options)

// WithLogger sets a custom logger.
//
// Parameters:
//   - l: Logger implementation
//
// Returns:
//   - Option: Functional option
func WithLogger(l types.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the collector for send and receive counters.
//
// Parameters:
//   - m: Transport metrics implementation
//
// Returns:
//   - Option: Functional option
func WithMetrics(m types.TransportMetrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithFlushTimeout bounds NATS flushes made with a deadline-free context.
func WithFlushTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.flushTimeout = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
