// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/edgeshard/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. It is the ingress default when no metrics
// option is given.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	ing, err := edgeshard.New(&cfg, cl, tr, edgeshard.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// IngressMetrics implementation

// RecordEdgeAssigned discards the placement metric.
func (n *NopMetrics) RecordEdgeAssigned(_ /* strategy */ string, _ /* machine */ types.ProcID) {
	// No-op
}

// RecordDecisionDuration discards the decision latency metric.
func (n *NopMetrics) RecordDecisionDuration(_ /* strategy */ string, _ /* duration */ float64) {
	// No-op
}

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State) {
	// No-op
}

// RecordFinalize discards the finalize metric.
func (n *NopMetrics) RecordFinalize(_ /* localEdges */, _ /* globalEdges */ uint64, _ /* duration */ float64) {
	// No-op
}

// TableMetrics implementation

// RecordTableStats discards the table gauges.
func (n *NopMetrics) RecordTableStats(_ /* table */ string, _ /* entries */, _ /* stash */ int, _ /* loadFactor */ float64) {
	// No-op
}

// RecordTableResize discards the resize metric.
func (n *NopMetrics) RecordTableResize(_ /* table */ string, _ /* resizes */ int) {
	// No-op
}

// TransportMetrics implementation

// RecordSend discards the send metric.
func (n *NopMetrics) RecordSend(_ /* machine */ types.ProcID, _ /* success */ bool) {
	// No-op
}

// RecordReceive discards the receive metric.
func (n *NopMetrics) RecordReceive(_ /* bytes */ int) {
	// No-op
}
