package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalPair(t *testing.T) {
	t.Run("orders endpoints", func(t *testing.T) {
		lo, hi := CanonicalPair(10, 7)
		require.Equal(t, VertexID(7), lo)
		require.Equal(t, VertexID(10), hi)
	})

	t.Run("is symmetric", func(t *testing.T) {
		for _, p := range [][2]VertexID{{0, 1}, {5, 5}, {1 << 40, 3}, {99, 100}} {
			a1, b1 := CanonicalPair(p[0], p[1])
			a2, b2 := CanonicalPair(p[1], p[0])
			require.Equal(t, a1, a2)
			require.Equal(t, b1, b2)
		}
	})
}

func TestProcIDValid(t *testing.T) {
	require.True(t, ProcID(0).Valid(1))
	require.True(t, ProcID(3).Valid(4))
	require.False(t, ProcID(4).Valid(4))
	require.False(t, InvalidProcID.Valid(1<<40))
}
