package edgeshard

import "github.com/arloliu/edgeshard/types"

// Re-export types from the types package.
//
// Internal packages depend on types rather than on the root package, which
// keeps the import graph acyclic while users can still write
// edgeshard.VertexID, edgeshard.Transport and so on.
type (
	VertexID   = types.VertexID
	ProcID     = types.ProcID
	EdgeRecord = types.EdgeRecord
	State      = types.State
)

// Re-export interfaces from the types package for convenience.
type (
	Transport        = types.Transport
	Cluster          = types.Cluster
	Reducer          = types.Reducer
	BaseIngress      = types.BaseIngress
	EdgeSink         = types.EdgeSink
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
)

// InvalidProcID marks "no machine".
const InvalidProcID = types.InvalidProcID

// Re-export State constants from the types package.
const (
	StateConstructed = types.StateConstructed
	StateIngesting   = types.StateIngesting
	StateFinalizing  = types.StateFinalizing
	StateFinalized   = types.StateFinalized
)
