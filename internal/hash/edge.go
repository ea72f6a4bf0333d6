// Package hash provides the content hashes used by edge placement.
//
// All hashes use XXH3 over the little-endian encoding of vertex IDs so that a
// given edge hashes identically on every machine and in every run.
package hash

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"github.com/arloliu/edgeshard/types"
)

// Edge hashes the canonical pair of (u, v).
//
// The result is independent of argument order: Edge(u, v) == Edge(v, u). It is
// the tie-breaker for every placement decision, which is what makes a replayed
// edge land on the same machine regardless of call order.
//
// Parameters:
//   - u: One endpoint
//   - v: The other endpoint
//
// Returns:
//   - uint64: 64-bit hash of (min(u,v), max(u,v))
func Edge(u, v types.VertexID) uint64 {
	lo, hi := types.CanonicalPair(u, v)

	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], uint64(lo))
	binary.LittleEndian.PutUint64(b[8:], uint64(hi))

	return xxh3.Hash(b[:])
}

// EdgeSeed is Edge with a caller-chosen seed.
func EdgeSeed(u, v types.VertexID, seed uint64) uint64 {
	lo, hi := types.CanonicalPair(u, v)

	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], uint64(lo))
	binary.LittleEndian.PutUint64(b[8:], uint64(hi))

	return xxh3.HashSeed(b[:], seed)
}

// Vertex hashes a single vertex ID.
//
// Used to spread vertices over lock stripes; not used for placement.
func Vertex(v types.VertexID) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))

	return xxh3.Hash(b[:])
}
