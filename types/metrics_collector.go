package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods may be called concurrently from loader goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	IngressMetrics
	TableMetrics
	TransportMetrics
}

// IngressMetrics defines metrics for the ingress front-ends.
type IngressMetrics interface {
	// RecordEdgeAssigned records one edge placed on a machine.
	//
	// Parameters:
	//   - strategy: Decision strategy ("random", "oblivious", "hdrf")
	//   - machine: Owning machine
	RecordEdgeAssigned(strategy string, machine ProcID)

	// RecordDecisionDuration records the time spent deciding one edge, in seconds.
	RecordDecisionDuration(strategy string, duration float64)

	// RecordStateTransition records an ingress lifecycle transition.
	RecordStateTransition(from, to State)

	// RecordFinalize records the outcome of Finalize.
	//
	// Parameters:
	//   - localEdges: Edges decided by this machine
	//   - globalEdges: Edges decided across the cluster
	//   - duration: Time taken in seconds
	RecordFinalize(localEdges, globalEdges uint64, duration float64)
}

// TableMetrics defines metrics for the degree/replica tables.
type TableMetrics interface {
	// RecordTableStats sets the current table gauges.
	//
	// Parameters:
	//   - table: Table name ("replica", "degree")
	//   - entries: Live entries
	//   - stash: Entries in the overflow stash
	//   - loadFactor: entries / (capacity + stash)
	RecordTableStats(table string, entries, stash int, loadFactor float64)

	// RecordTableResize records table growth events.
	RecordTableResize(table string, resizes int)
}

// TransportMetrics defines metrics for edge record delivery.
type TransportMetrics interface {
	// RecordSend records one send attempt to a machine.
	RecordSend(machine ProcID, success bool)

	// RecordReceive records one edge record received by the local machine.
	RecordReceive(bytes int)
}
