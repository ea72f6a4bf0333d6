package edgeshard

import "github.com/arloliu/edgeshard/types"

// Sentinel errors returned by an Ingress. They are the same values as in the
// types package, so errors.Is works with either.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrTransportRequired is returned when the transport is nil.
	ErrTransportRequired = types.ErrTransportRequired

	// ErrClusterRequired is returned when the cluster is nil.
	ErrClusterRequired = types.ErrClusterRequired

	// ErrReducerRequired is returned when a multi-machine cluster has no reducer.
	ErrReducerRequired = types.ErrReducerRequired

	// ErrNoMachines is returned when the cluster reports zero machines.
	ErrNoMachines = types.ErrNoMachines

	// ErrIngressFinalized is returned by AddEdge once Finalize has started.
	ErrIngressFinalized = types.ErrIngressFinalized

	// ErrAlreadyFinalized is returned when Finalize is called more than once.
	ErrAlreadyFinalized = types.ErrAlreadyFinalized

	// ErrSendFailed wraps transport failures surfaced by AddEdge.
	ErrSendFailed = types.ErrSendFailed

	// ErrNoTables is returned by SaveTables and LoadTables for the random strategy.
	ErrNoTables = types.ErrNoTables

	// ErrIngressStarted is returned by LoadTables after the first edge.
	ErrIngressStarted = types.ErrIngressStarted

	// ErrReduceFailed wraps collective reduction failures surfaced by Finalize.
	ErrReduceFailed = types.ErrReduceFailed
)
