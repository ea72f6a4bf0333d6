package graph

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/edgeshard/types"
)

func TestMirrorIndex(t *testing.T) {
	idx, err := NewMirrorIndex(3)
	require.NoError(t, err)

	require.NoError(t, idx.Add(0, roaring64.BitmapOf(1, 2, 3)))
	require.NoError(t, idx.Add(1, roaring64.BitmapOf(3, 4)))
	require.NoError(t, idx.Add(2, roaring64.BitmapOf(3)))

	t.Run("machines per vertex", func(t *testing.T) {
		assert.Equal(t, []types.ProcID{0}, idx.Machines(1))
		assert.Equal(t, []types.ProcID{0, 1, 2}, idx.Machines(3))
		assert.Equal(t, []types.ProcID{1}, idx.Machines(4))
		assert.Nil(t, idx.Machines(99))
	})

	t.Run("master is a stable mirror", func(t *testing.T) {
		m, ok := idx.Master(3)
		require.True(t, ok)
		require.Contains(t, idx.Machines(3), m)

		again, _ := idx.Master(3)
		require.Equal(t, m, again)

		m, ok = idx.Master(1)
		require.True(t, ok)
		require.Equal(t, types.ProcID(0), m)

		_, ok = idx.Master(99)
		require.False(t, ok)
	})

	t.Run("quality", func(t *testing.T) {
		q := idx.Quality([]uint64{4, 2, 0})

		require.Equal(t, 4, q.Vertices)
		require.Equal(t, uint64(6), q.Replicas)
		require.InDelta(t, 1.5, q.ReplicationFactor, 1e-9)
		require.Equal(t, 3, q.MaxMirrors)
		require.InDelta(t, 2.0, q.LoadImbalance, 1e-9)
		require.Equal(t, 4, idx.NumVertices())
		require.Equal(t, []uint64{1, 2, 3, 4}, idx.Vertices().ToArray())
	})

	t.Run("duplicate add is idempotent", func(t *testing.T) {
		require.NoError(t, idx.Add(1, roaring64.BitmapOf(4)))
		require.Equal(t, uint64(6), idx.Quality(nil).Replicas)
	})

	t.Run("unknown machine", func(t *testing.T) {
		require.ErrorIs(t, idx.Add(3, roaring64.BitmapOf(1)), types.ErrUnknownMachine)
	})
}

func TestMirrorIndexFromStores(t *testing.T) {
	stores := []*Store{NewStore(0), NewStore(1)}
	require.NoError(t, stores[0].AddLocalEdge(types.EdgeRecord{Source: 1, Target: 2}))
	require.NoError(t, stores[1].AddLocalEdge(types.EdgeRecord{Source: 2, Target: 3}))

	idx, err := NewMirrorIndex(2)
	require.NoError(t, err)
	for _, s := range stores {
		require.NoError(t, idx.AddStore(s))
	}

	require.Equal(t, []types.ProcID{0, 1}, idx.Machines(2))
	require.InDelta(t, 4.0/3.0, idx.Quality(nil).ReplicationFactor, 1e-9)
}

func TestLoadImbalance(t *testing.T) {
	require.Zero(t, LoadImbalance(nil))
	require.Zero(t, LoadImbalance([]uint64{0, 0}))
	require.InDelta(t, 1.0, LoadImbalance([]uint64{5, 5, 5}), 1e-9)
	require.InDelta(t, 4.0, LoadImbalance([]uint64{8, 0, 0, 0}), 1e-9)
}

func TestNewMirrorIndex_NoMachines(t *testing.T) {
	_, err := NewMirrorIndex(0)
	require.ErrorIs(t, err, types.ErrNoMachines)
}
