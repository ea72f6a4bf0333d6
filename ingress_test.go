package edgeshard

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/edgeshard/cluster"
	"github.com/arloliu/edgeshard/graph"
	"github.com/arloliu/edgeshard/internal/logger"
	"github.com/arloliu/edgeshard/internal/metrics"
	"github.com/arloliu/edgeshard/transport"
)

type fakeCluster struct {
	n    int
	self ProcID
}

func (c fakeCluster) NumMachines() int { return c.n }
func (c fakeCluster) ProcID() ProcID { return c.self }

type failingTransport struct {
	sendErr  error
	flushErr error
}

func (f failingTransport) Send(context.Context, ProcID, EdgeRecord) error { return f.sendErr }
func (f failingTransport) Flush(context.Context) error { return f.flushErr }

type failingReducer struct{ err error }

func (f failingReducer) AllReduceSum(context.Context, uint64) (uint64, error) { return 0, f.err }

// machineSet is n in-process machines sharing a Local transport and a
// LocalReducer, each finalizing into its own graph.Store.
type machineSet struct {
	ingresses []*Ingress
	stores    []*graph.Store
}

func newMachineSet(t *testing.T, n int, strategy Strategy, opts ...Option) *machineSet {
	t.Helper()

	group, err := cluster.NewStaticGroup(n)
	require.NoError(t, err)
	reducer, err := cluster.NewLocalReducer(n)
	require.NoError(t, err)

	ms := &machineSet{}
	sinks := make([]EdgeSink, n)
	for i := range n {
		s := graph.NewStore(ProcID(i))
		ms.stores = append(ms.stores, s)
		sinks[i] = s
	}
	tr := transport.NewLocal(sinks)

	for i, cl := range group {
		cfg := TestConfig()
		cfg.Strategy = strategy
		ing, err := New(&cfg, cl, tr, append([]Option{WithReducer(reducer), WithBaseIngress(ms.stores[i])}, opts...)...)
		require.NoError(t, err)
		ms.ingresses = append(ms.ingresses, ing)
	}

	return ms
}

func (ms *machineSet) finalize(t *testing.T) []Stats {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats := make([]Stats, len(ms.ingresses))
	var g errgroup.Group
	for i, ing := range ms.ingresses {
		g.Go(func() error {
			var err error
			stats[i], err = ing.Finalize(ctx)

			return err
		})
	}
	require.NoError(t, g.Wait())

	return stats
}

func (ms *machineSet) replicationFactor(t *testing.T) float64 {
	t.Helper()

	idx, err := graph.NewMirrorIndex(len(ms.stores))
	require.NoError(t, err)
	for _, s := range ms.stores {
		require.NoError(t, idx.AddStore(s))
	}

	return idx.Quality(nil).ReplicationFactor
}

func TestNew_Errors(t *testing.T) {
	tr := failingTransport{}
	solo := fakeCluster{n: 1}

	tests := []struct {
		name    string
		build   func() (*Ingress, error)
		wantErr error
	}{
		{"nil config", func() (*Ingress, error) { return New(nil, solo, tr) }, ErrInvalidConfig},
		{"nil cluster", func() (*Ingress, error) { cfg := TestConfig(); return New(&cfg, nil, tr) }, ErrClusterRequired},
		{"nil transport", func() (*Ingress, error) { cfg := TestConfig(); return New(&cfg, solo, nil) }, ErrTransportRequired},
		{"invalid config", func() (*Ingress, error) {
			cfg := TestConfig()
			cfg.LockStripes = 3
			return New(&cfg, solo, tr)
		}, ErrInvalidConfig},
		{"no machines", func() (*Ingress, error) { cfg := TestConfig(); return New(&cfg, fakeCluster{}, tr) }, ErrNoMachines},
		{"self out of range", func() (*Ingress, error) {
			cfg := TestConfig()
			return New(&cfg, fakeCluster{n: 2, self: 2}, tr, WithReducer(failingReducer{}))
		}, ErrInvalidConfig},
		{"missing reducer", func() (*Ingress, error) { cfg := TestConfig(); return New(&cfg, fakeCluster{n: 2}, tr) }, ErrReducerRequired},
		{"strategy constructor nil config", func() (*Ingress, error) { return NewHDRFIngress(nil, solo, tr) }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing, err := tt.build()
			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, ing)
		})
	}
}

func TestStrategyConstructors(t *testing.T) {
	cl := fakeCluster{n: 1}
	tr := failingTransport{}

	tests := []struct {
		name string
		ctor func(*Config, Cluster, Transport, ...Option) (*Ingress, error)
		want Strategy
	}{
		{"oblivious", NewObliviousIngress, StrategyOblivious},
		{"hdrf", NewHDRFIngress, StrategyHDRF},
		{"random", NewRandomIngress, StrategyRandom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := TestConfig()
			cfg.Strategy = "bogus"

			ing, err := tt.ctor(&cfg, cl, tr)
			require.NoError(t, err)
			require.Equal(t, tt.want, ing.Strategy())
			require.Equal(t, tt.want, cfg.Strategy)
			require.Equal(t, StateConstructed, ing.State())
			require.Equal(t, 1, ing.NumMachines())
			require.Equal(t, ProcID(0), ing.ProcID())
		})
	}
}

func TestIngress_Lifecycle(t *testing.T) {
	for _, strategy := range []Strategy{StrategyRandom, StrategyOblivious, StrategyHDRF} {
		t.Run(string(strategy), func(t *testing.T) {
			log := logger.NewTest(t)
			ms := newMachineSet(t, 1, strategy, WithLogger(log))
			ing := ms.ingresses[0]
			ctx := context.Background()

			require.NoError(t, ing.AddEdge(ctx, 1, 2, []byte("a")))
			require.Equal(t, StateIngesting, ing.State())
			require.NoError(t, ing.AddEdge(ctx, 2, 3, nil))
			require.NoError(t, ing.AddEdge(ctx, 3, 1, nil))

			stats := ms.finalize(t)[0]
			require.Equal(t, StateFinalized, ing.State())
			require.Equal(t, uint64(3), stats.LocalEdges)
			require.Equal(t, uint64(3), stats.GlobalEdges)
			require.Equal(t, []uint64{3}, stats.Loads)
			require.Equal(t, strategy, stats.Strategy)

			entry, ok := log.Find("total processed edges")
			require.True(t, ok)
			global, _ := entry.Field("global")
			require.Equal(t, uint64(3), global)

			require.True(t, ms.stores[0].Finalized())
			require.Equal(t, 3, ms.stores[0].NumEdges())
			require.Equal(t, []byte("a"), ms.stores[0].Edges()[0].Data)

			require.ErrorIs(t, ing.AddEdge(ctx, 4, 5, nil), ErrIngressFinalized)
			_, err := ing.Finalize(ctx)
			require.ErrorIs(t, err, ErrAlreadyFinalized)
		})
	}
}

func TestIngress_TableStats(t *testing.T) {
	t.Run("hdrf tracks degrees", func(t *testing.T) {
		ms := newMachineSet(t, 1, StrategyHDRF)
		for v := range VertexID(500) {
			require.NoError(t, ms.ingresses[0].AddEdge(context.Background(), v, v+1, nil))
		}

		stats := ms.finalize(t)[0]
		require.Equal(t, 501, stats.Replicas.Entries)
		require.Equal(t, 501, stats.Degrees.Entries)
		require.Positive(t, stats.Replicas.Resizes)
	})

	t.Run("oblivious has no degrees", func(t *testing.T) {
		ms := newMachineSet(t, 1, StrategyOblivious)
		require.NoError(t, ms.ingresses[0].AddEdge(context.Background(), 1, 2, nil))

		stats := ms.finalize(t)[0]
		require.Equal(t, 2, stats.Replicas.Entries)
		require.Zero(t, stats.Degrees.Entries)
	})

	t.Run("random keeps no tables", func(t *testing.T) {
		ms := newMachineSet(t, 1, StrategyRandom)
		require.NoError(t, ms.ingresses[0].AddEdge(context.Background(), 1, 2, nil))

		stats := ms.finalize(t)[0]
		require.Zero(t, stats.Replicas)
	})
}

func TestIngress_FinalizeWithoutEdges(t *testing.T) {
	ms := newMachineSet(t, 2, StrategyHDRF)

	stats := ms.finalize(t)
	for _, st := range stats {
		require.Zero(t, st.LocalEdges)
		require.Zero(t, st.GlobalEdges)
	}
	require.Equal(t, StateFinalized, ms.ingresses[0].State())
}

func TestIngress_Subscribe(t *testing.T) {
	ms := newMachineSet(t, 1, StrategyOblivious)
	ing := ms.ingresses[0]

	ch, unsubscribe := ing.Subscribe()
	require.Equal(t, StateConstructed, <-ch)

	require.NoError(t, ing.AddEdge(context.Background(), 1, 2, nil))
	require.Equal(t, StateIngesting, <-ch)

	ms.finalize(t)
	require.Equal(t, StateFinalizing, <-ch)
	require.Equal(t, StateFinalized, <-ch)

	unsubscribe()
	_, open := <-ch
	require.False(t, open)

	require.NotPanics(t, unsubscribe)
}

func TestIngress_SendFailure(t *testing.T) {
	cause := errors.New("link down")
	cfg := TestConfig()
	ing, err := New(&cfg, fakeCluster{n: 1}, failingTransport{sendErr: cause})
	require.NoError(t, err)

	err = ing.AddEdge(context.Background(), 1, 2, nil)
	require.ErrorIs(t, err, ErrSendFailed)
	require.ErrorIs(t, err, cause)

	// The decision is kept.
	require.Equal(t, []uint64{1}, ing.Loads())
}

func TestIngress_FinalizeFailures(t *testing.T) {
	t.Run("flush", func(t *testing.T) {
		cfg := TestConfig()
		ing, err := New(&cfg, fakeCluster{n: 1}, failingTransport{flushErr: errors.New("flush failed")})
		require.NoError(t, err)

		_, err = ing.Finalize(context.Background())
		require.ErrorContains(t, err, "flush failed")
		require.Equal(t, StateFinalizing, ing.State())
		require.ErrorIs(t, ing.AddEdge(context.Background(), 1, 2, nil), ErrIngressFinalized)
	})

	t.Run("reduce", func(t *testing.T) {
		cfg := TestConfig()
		ing, err := New(&cfg, fakeCluster{n: 2}, failingTransport{}, WithReducer(failingReducer{err: errors.New("peer gone")}))
		require.NoError(t, err)

		_, err = ing.Finalize(context.Background())
		require.ErrorIs(t, err, ErrReduceFailed)
		require.Equal(t, StateFinalizing, ing.State())

		_, err = ing.Finalize(context.Background())
		require.ErrorIs(t, err, ErrAlreadyFinalized)
	})

	t.Run("timeout waiting for peers", func(t *testing.T) {
		reducer, err := cluster.NewLocalReducer(2)
		require.NoError(t, err)

		cfg := TestConfig()
		cfg.FinalizeTimeout = 20 * time.Millisecond
		ing, err := New(&cfg, fakeCluster{n: 2}, failingTransport{}, WithReducer(reducer))
		require.NoError(t, err)

		_, err = ing.Finalize(context.Background())
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestIngress_ConcurrentLoadersConserveEdges(t *testing.T) {
	const (
		machines = 4
		loaders  = 8
		perLoad  = 500
	)

	for _, strategy := range []Strategy{StrategyOblivious, StrategyHDRF} {
		t.Run(string(strategy), func(t *testing.T) {
			ms := newMachineSet(t, machines, strategy)
			ctx := context.Background()

			// Every machine ingests from several goroutines at once.
			var g errgroup.Group
			for m, ing := range ms.ingresses {
				for l := range loaders {
					g.Go(func() error {
						for e := range perLoad {
							src := VertexID((m*loaders + l) * perLoad % 97)
							dst := VertexID(e)
							if err := ing.AddEdge(ctx, src, dst, nil); err != nil {
								return err
							}
						}

						return nil
					})
				}
			}
			require.NoError(t, g.Wait())

			const total = machines * loaders * perLoad
			stats := ms.finalize(t)

			stored := 0
			for i, st := range stats {
				var sum uint64
				for _, l := range st.Loads {
					sum += l
				}
				require.Equal(t, uint64(loaders*perLoad), sum, "machine %d", i)
				require.Equal(t, uint64(total), st.GlobalEdges)
				stored += ms.stores[i].NumEdges()
			}
			require.Equal(t, total, stored)
		})
	}
}

func TestIngress_GreedyBeatsRandomOnPath(t *testing.T) {
	const machines = 4

	place := func(strategy Strategy) float64 {
		ms := newMachineSet(t, machines, strategy)
		for v := range VertexID(1000) {
			require.NoError(t, ms.ingresses[0].AddEdge(context.Background(), v, v+1, nil))
		}
		ms.finalize(t)

		return ms.replicationFactor(t)
	}

	random := place(StrategyRandom)
	oblivious := place(StrategyOblivious)
	hdrf := place(StrategyHDRF)

	assert.Greater(t, random, 1.5)
	assert.Less(t, oblivious, random)
	assert.Less(t, hdrf, random)
}

func TestIngress_RandomIsDeterministic(t *testing.T) {
	loads := func() []uint64 {
		ms := newMachineSet(t, 4, StrategyRandom)
		for v := range VertexID(200) {
			require.NoError(t, ms.ingresses[0].AddEdge(context.Background(), v*7, v*13+1, nil))
		}

		return ms.ingresses[0].Loads()
	}

	require.Equal(t, loads(), loads())
}

func TestIngress_SaveLoadTables(t *testing.T) {
	ctx := context.Background()

	first := newMachineSet(t, 4, StrategyOblivious)
	require.NoError(t, first.ingresses[0].AddEdge(ctx, 1, 2, nil))
	owner := ProcID(0)
	for m, l := range first.ingresses[0].Loads() {
		if l == 1 {
			owner = ProcID(m)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, first.ingresses[0].SaveTables(&buf))

	second := newMachineSet(t, 4, StrategyOblivious)
	ing := second.ingresses[0]
	require.NoError(t, ing.LoadTables(bytes.NewReader(buf.Bytes())))

	// Vertex 1 is known to live on owner; with all loads equal that wins.
	require.NoError(t, ing.AddEdge(ctx, 1, 500, nil))
	require.Equal(t, uint64(1), ing.Loads()[owner])

	t.Run("only before the first edge", func(t *testing.T) {
		require.ErrorIs(t, ing.LoadTables(bytes.NewReader(buf.Bytes())), ErrIngressStarted)
	})

	t.Run("random has no tables", func(t *testing.T) {
		ms := newMachineSet(t, 1, StrategyRandom)
		require.ErrorIs(t, ms.ingresses[0].SaveTables(&bytes.Buffer{}), ErrNoTables)
		require.ErrorIs(t, ms.ingresses[0].LoadTables(&bytes.Buffer{}), ErrNoTables)
	})

	t.Run("not after finalize", func(t *testing.T) {
		ms := newMachineSet(t, 1, StrategyHDRF)
		ms.finalize(t)
		require.ErrorIs(t, ms.ingresses[0].SaveTables(&bytes.Buffer{}), ErrIngressFinalized)
	})
}

func TestIngress_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewPrometheus(reg, "")

	ms := newMachineSet(t, 2, StrategyHDRF, WithMetrics(collector))
	for v := range VertexID(10) {
		require.NoError(t, ms.ingresses[0].AddEdge(context.Background(), v, v+100, nil))
	}
	ms.finalize(t)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] += m.GetGauge().GetValue()
			}
		}
	}

	require.InDelta(t, 10, values["edgeshard_ingress_edges_assigned_total"], 0)
	require.InDelta(t, 10, values["edgeshard_ingress_finalize_global_edges"], 0)
	// Constructed→Ingesting once, then Finalizing and Finalized on both machines.
	require.InDelta(t, 5, values["edgeshard_ingress_state_transitions_total"], 0)
}
