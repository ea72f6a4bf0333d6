package types

import "math"

// VertexID identifies a vertex in the input edge stream.
//
// Vertex IDs are dense but not necessarily contiguous at ingestion time and are
// used as the hash key for every per-vertex table.
type VertexID uint64

// ProcID identifies a machine in the cluster, in the range [0, NumMachines).
type ProcID uint32

// InvalidProcID marks "no decision yet" or "out of range". It is never returned
// to callers as a real placement.
const InvalidProcID ProcID = math.MaxUint32

// Valid reports whether p addresses one of n machines.
func (p ProcID) Valid(n int) bool {
	return p != InvalidProcID && int(p) < n
}

// EdgeRecord is the message produced by an ingress for every placed edge and
// consumed by the owning machine's base ingress.
type EdgeRecord struct {
	// Source is the source vertex as given by the loader.
	Source VertexID `json:"source"`

	// Target is the target vertex as given by the loader.
	Target VertexID `json:"target"`

	// Data is the opaque edge payload. The ingress never inspects it.
	Data []byte `json:"data,omitempty"`
}

// CanonicalPair returns (min(u, v), max(u, v)).
//
// Every hash-based decision is computed on the canonical pair so that the
// placement of an edge does not depend on the orientation it arrived in.
//
// Parameters:
//   - u: One endpoint
//   - v: The other endpoint
//
// Returns:
//   - VertexID: The smaller endpoint
//   - VertexID: The larger endpoint
func CanonicalPair(u, v VertexID) (VertexID, VertexID) {
	if u <= v {
		return u, v
	}

	return v, u
}
