package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	shardtest "github.com/arloliu/edgeshard/testing"
	"github.com/arloliu/edgeshard/types"
)

func TestNewStatic(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		s, err := NewStatic(4, 3)
		require.NoError(t, err)
		require.Equal(t, 4, s.NumMachines())
		require.Equal(t, types.ProcID(3), s.ProcID())
	})

	t.Run("no machines", func(t *testing.T) {
		_, err := NewStatic(0, 0)
		require.ErrorIs(t, err, types.ErrNoMachines)
	})

	t.Run("self out of range", func(t *testing.T) {
		_, err := NewStatic(4, 4)
		require.ErrorIs(t, err, types.ErrUnknownMachine)
	})

	t.Run("group", func(t *testing.T) {
		group, err := NewStaticGroup(3)
		require.NoError(t, err)
		require.Len(t, group, 3)
		for i, s := range group {
			require.Equal(t, types.ProcID(i), s.ProcID())
			require.Equal(t, 3, s.NumMachines())
		}

		_, err = NewStaticGroup(-1)
		require.ErrorIs(t, err, types.ErrNoMachines)
	})
}

func TestLocalReducer(t *testing.T) {
	t.Run("reusable rounds", func(t *testing.T) {
		const parties = 4
		r, err := NewLocalReducer(parties)
		require.NoError(t, err)

		results := make([][]uint64, parties)
		var g errgroup.Group
		for p := range parties {
			g.Go(func() error {
				for round := range 3 {
					sum, err := r.AllReduceSum(context.Background(), uint64(p+1)*uint64(round+1))
					if err != nil {
						return err
					}
					results[p] = append(results[p], sum)
				}

				return nil
			})
		}
		require.NoError(t, g.Wait())

		for p := range parties {
			require.Equal(t, []uint64{10, 20, 30}, results[p], "party %d", p)
		}
	})

	t.Run("single party returns immediately", func(t *testing.T) {
		r, err := NewLocalReducer(1)
		require.NoError(t, err)

		sum, err := r.AllReduceSum(context.Background(), 7)
		require.NoError(t, err)
		require.Equal(t, uint64(7), sum)
	})

	t.Run("missing party times out", func(t *testing.T) {
		r, err := NewLocalReducer(2)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err = r.AllReduceSum(ctx, 1)
		require.ErrorIs(t, err, types.ErrReduceFailed)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("no parties", func(t *testing.T) {
		_, err := NewLocalReducer(0)
		require.ErrorIs(t, err, types.ErrNoMachines)
	})
}

func TestKVReducer(t *testing.T) {
	_, nc := shardtest.StartEmbeddedNATS(t)
	kv := shardtest.CreateJetStreamKV(t, nc, "reduce")

	t.Run("sum over machines and rounds", func(t *testing.T) {
		const machines = 3
		group, err := NewStaticGroup(machines)
		require.NoError(t, err)

		reducers := make([]*KVReducer, machines)
		for i, cl := range group {
			reducers[i], err = NewKVReducer(kv, "run1", cl, WithKVLogger(shardtest.NewTestLogger(t)))
			require.NoError(t, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		results := make([][]uint64, machines)
		var g errgroup.Group
		for i, r := range reducers {
			g.Go(func() error {
				for round := range 2 {
					sum, err := r.AllReduceSum(ctx, uint64(i*10+round))
					if err != nil {
						return err
					}
					results[i] = append(results[i], sum)
				}

				return nil
			})
		}
		require.NoError(t, g.Wait())

		// round 0: 0+10+20, round 1: 1+11+21
		for i := range machines {
			require.Equal(t, []uint64{30, 33}, results[i], "machine %d", i)
		}
	})

	t.Run("missing machine fails the round", func(t *testing.T) {
		cl, err := NewStatic(2, 0)
		require.NoError(t, err)
		r, err := NewKVReducer(kv, "run2", cl)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, err = r.AllReduceSum(ctx, 5)
		require.ErrorIs(t, err, types.ErrReduceFailed)
	})

	t.Run("invalid construction", func(t *testing.T) {
		cl, err := NewStatic(1, 0)
		require.NoError(t, err)

		_, err = NewKVReducer(nil, "run3", cl)
		require.Error(t, err)
		_, err = NewKVReducer(kv, "run3", nil)
		require.ErrorIs(t, err, types.ErrClusterRequired)
		_, err = NewKVReducer(kv, "run.*", cl)
		require.Error(t, err)
	})
}

func TestOpenKVReducer(t *testing.T) {
	_, nc := shardtest.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	cl, err := NewStatic(1, 0)
	require.NoError(t, err)

	r, err := OpenKVReducer(context.Background(), js, "", "solo", cl)
	require.NoError(t, err)

	sum, err := r.AllReduceSum(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), sum)
}
