package types

import "context"

// Transport ships edge records to the machine that owns them.
//
// Delivery ordering, buffering and retry belong to the implementation. The
// ingress never retries a failed send.
type Transport interface {
	// Send delivers rec to machine to. It may block while outbound buffers are full.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - to: Owning machine
	//   - rec: Edge record to deliver
	//
	// Returns:
	//   - error: Non-nil if the record could not be handed to the transport
	Send(ctx context.Context, to ProcID, rec EdgeRecord) error

	// Flush pushes every buffered record out and signals end-of-stream to
	// every machine. Called once by the ingress during Finalize.
	Flush(ctx context.Context) error
}

// Cluster describes the machine this process runs as and the cluster size.
type Cluster interface {
	// NumMachines returns the number of machines in the cluster.
	NumMachines() int

	// ProcID returns the identifier of the local machine.
	ProcID() ProcID
}

// Reducer performs collective reductions across all machines.
//
// AllReduceSum is a barrier: it returns only after every machine contributed
// its value for the same round.
type Reducer interface {
	// AllReduceSum contributes local and returns the sum over all machines.
	AllReduceSum(ctx context.Context, local uint64) (uint64, error)
}

// BaseIngress is the graph construction stage that takes over after the
// ingress has placed every edge.
type BaseIngress interface {
	// Finalize materializes local storage from the delivered edge records.
	Finalize(ctx context.Context) error
}

// EdgeSink receives edge records addressed to the local machine.
type EdgeSink interface {
	// AddLocalEdge stores one delivered edge record.
	AddLocalEdge(rec EdgeRecord) error
}
