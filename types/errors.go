package types

import "errors"

// Sentinel errors for the edgeshard library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error Naming Convention:
//   - Use descriptive names with Err prefix
//   - Group by component (Ingress, Oracle, Table, Transport, Cluster)
//   - Use consistent messages across similar error types

// Ingress errors - Public API errors returned by the ingress front-ends.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTransportRequired is returned when the transport is nil.
	ErrTransportRequired = errors.New("transport is required")

	// ErrClusterRequired is returned when the cluster description is nil.
	ErrClusterRequired = errors.New("cluster is required")

	// ErrReducerRequired is returned when a multi-machine cluster has no reducer.
	ErrReducerRequired = errors.New("reducer is required for more than one machine")

	// ErrNoMachines is returned when the cluster reports zero machines.
	ErrNoMachines = errors.New("cluster has no machines")

	// ErrIngressFinalized is returned by AddEdge once Finalize has started.
	ErrIngressFinalized = errors.New("ingress finalized")

	// ErrAlreadyFinalized is returned when Finalize is called more than once.
	ErrAlreadyFinalized = errors.New("ingress already finalized")

	// ErrSendFailed wraps transport failures surfaced by AddEdge.
	ErrSendFailed = errors.New("failed to send edge record")

	// ErrNoTables is returned by table checkpoints of a strategy without per-vertex state.
	ErrNoTables = errors.New("strategy keeps no per-vertex tables")

	// ErrIngressStarted is returned when tables are restored after the first edge.
	ErrIngressStarted = errors.New("ingress already started")
)

// Invariant violations - these indicate a logic bug and are raised through panic.
var (
	// ErrProcOutOfRange is raised when a decision selects a machine >= NumMachines.
	ErrProcOutOfRange = errors.New("owning machine out of range")

	// ErrNoCandidates is raised when a decision is asked to choose from no machines.
	ErrNoCandidates = errors.New("no candidate machines")
)

// Transport and cluster errors.
var (
	// ErrConnectivity indicates a NATS/KV connectivity issue.
	ErrConnectivity = errors.New("connectivity issue")

	// ErrUnknownMachine is returned when a record is addressed outside the cluster.
	ErrUnknownMachine = errors.New("unknown machine")

	// ErrMalformedRecord is returned when a wire message cannot be decoded.
	ErrMalformedRecord = errors.New("malformed edge record")

	// ErrReduceFailed is returned when a collective reduction cannot complete.
	ErrReduceFailed = errors.New("collective reduction failed")

	// ErrContextCanceled is returned when an operation is canceled by context.
	ErrContextCanceled = errors.New("operation canceled by context")
)
