package hash

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/edgeshard/types"
)

func TestEdge(t *testing.T) {
	t.Run("is symmetric", func(t *testing.T) {
		for u := types.VertexID(0); u < 50; u++ {
			for v := types.VertexID(0); v < 50; v++ {
				require.Equal(t, Edge(u, v), Edge(v, u), "edge (%d,%d)", u, v)
			}
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		require.Equal(t, Edge(7, 10), Edge(7, 10))
		require.Equal(t, EdgeSeed(7, 10, 42), EdgeSeed(10, 7, 42))
	})

	t.Run("distinguishes pairs", func(t *testing.T) {
		seen := make(map[uint64]struct{})
		for u := types.VertexID(0); u < 100; u++ {
			for v := u; v < 100; v++ {
				seen[Edge(u, v)] = struct{}{}
			}
		}
		require.Len(t, seen, 100*101/2)
	})

	t.Run("seed changes the hash", func(t *testing.T) {
		require.NotEqual(t, EdgeSeed(1, 2, 1), EdgeSeed(1, 2, 2))
	})
}

func TestVertex_SpreadsAcrossStripes(t *testing.T) {
	const stripes = 16
	counts := make([]int, stripes)
	for v := types.VertexID(0); v < 16000; v++ {
		counts[Vertex(v)%stripes]++
	}

	for i, c := range counts {
		require.Greater(t, c, 700, "stripe %d underfilled", i)
		require.Less(t, c, 1300, "stripe %d overfilled", i)
	}
}

func BenchmarkEdge(b *testing.B) {
	var sink uint64
	v := types.VertexID(0)
	for b.Loop() {
		sink ^= Edge(v, v+1)
		v++
	}
	_ = sink
}
