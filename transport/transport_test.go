package transport

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/edgeshard/cluster"
	shardtest "github.com/arloliu/edgeshard/testing"
	"github.com/arloliu/edgeshard/types"
)

// recordingSink keeps delivered records and counts Finalize calls.
type recordingSink struct {
	mu        sync.Mutex
	records   []types.EdgeRecord
	finalized int
	failOn    types.VertexID
}

func (s *recordingSink) AddLocalEdge(rec types.EdgeRecord) error {
	if s.failOn != 0 && rec.Source == s.failOn {
		return errors.New("sink rejected record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)

	return nil
}

func (s *recordingSink) Finalize(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized++

	return nil
}

func (s *recordingSink) snapshot() []types.EdgeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.records)
}

func TestLocal(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers a private copy", func(t *testing.T) {
		sinks := []*recordingSink{{}, {}}
		tr := NewLocal([]types.EdgeSink{sinks[0], sinks[1]})

		data := []byte("abc")
		require.NoError(t, tr.Send(ctx, 1, types.EdgeRecord{Source: 1, Target: 2, Data: data}))
		data[0] = 'z'

		got := sinks[1].snapshot()
		require.Len(t, got, 1)
		require.Equal(t, []byte("abc"), got[0].Data)
		require.Empty(t, sinks[0].snapshot())
		require.NoError(t, tr.Flush(ctx))
	})

	t.Run("unknown machine", func(t *testing.T) {
		tr := NewLocal([]types.EdgeSink{&recordingSink{}})
		err := tr.Send(ctx, 1, types.EdgeRecord{})
		require.ErrorIs(t, err, types.ErrUnknownMachine)
	})

	t.Run("sink error is returned", func(t *testing.T) {
		tr := NewLocal([]types.EdgeSink{&recordingSink{failOn: 5}})
		require.Error(t, tr.Send(ctx, 0, types.EdgeRecord{Source: 5}))
	})

	t.Run("canceled context", func(t *testing.T) {
		tr := NewLocal([]types.EdgeSink{&recordingSink{}})
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		require.ErrorIs(t, tr.Send(canceled, 0, types.EdgeRecord{}), context.Canceled)
	})
}

func TestSubject(t *testing.T) {
	require.Equal(t, "edgeshard.edges.3", Subject(DefaultSubjectPrefix, 3))
	require.Equal(t, "run.edges.0", Subject("run", 0))
}

// startMachines wires n NATS transports and receivers, machine i connected
// to the server URL urls[i % len(urls)].
func startMachines(t *testing.T, urls []string, n int) ([]*NATS, []*Receiver, []*recordingSink) {
	t.Helper()

	group, err := cluster.NewStaticGroup(n)
	require.NoError(t, err)

	transports := make([]*NATS, n)
	receivers := make([]*Receiver, n)
	sinks := make([]*recordingSink, n)

	for i, cl := range group {
		nc := shardtest.Connect(t, urls[i%len(urls)])
		sinks[i] = &recordingSink{}

		transports[i], err = NewNATS(nc, "test", cl)
		require.NoError(t, err)
		receivers[i], err = NewReceiver(nc, "test", cl, sinks[i], WithLogger(shardtest.NewTestLogger(t)))
		require.NoError(t, err)
		require.NoError(t, receivers[i].Start(context.Background()))
	}

	return transports, receivers, sinks
}

func TestNATSEndToEnd(t *testing.T) {
	ns, _ := shardtest.StartEmbeddedNATS(t)

	const machines = 3
	const perSender = 200
	transports, receivers, sinks := startMachines(t, []string{ns.ClientURL()}, machines)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var g errgroup.Group
	for i, tr := range transports {
		g.Go(func() error {
			for e := range perSender {
				rec := types.EdgeRecord{Source: types.VertexID(i), Target: types.VertexID(e), Data: []byte{byte(e)}}
				if err := tr.Send(ctx, types.ProcID(e%machines), rec); err != nil {
					return err
				}
			}

			return tr.Flush(ctx)
		})
	}
	require.NoError(t, g.Wait())

	for i, r := range receivers {
		require.NoError(t, r.Finalize(ctx), "machine %d", i)
	}

	total := 0
	for m, s := range sinks {
		got := s.snapshot()
		total += len(got)
		for _, rec := range got {
			require.Equal(t, m, int(rec.Target)%machines)
			require.Equal(t, []byte{byte(rec.Target)}, rec.Data)
		}
		require.Equal(t, 1, s.finalized)
		require.Equal(t, uint64(len(got)), receivers[m].Received())
	}
	require.Equal(t, machines*perSender, total)
}

func TestNATSAcrossClusterNodes(t *testing.T) {
	servers := shardtest.StartEmbeddedNATSCluster(t)
	urls := make([]string, len(servers))
	for i, s := range servers {
		urls[i] = s.ClientURL()
	}

	transports, receivers, sinks := startMachines(t, urls, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Route interest propagates asynchronously; wait until every node
	// knows every machine's subscription.
	require.Eventually(t, func() bool {
		for _, s := range servers {
			for m := range receivers {
				if !s.GlobalAccount().SubscriptionInterest(Subject("test", types.ProcID(m))) {
					return false
				}
			}
		}

		return true
	}, 5*time.Second, 20*time.Millisecond)

	for i, tr := range transports {
		to := types.ProcID((i + 1) % len(transports))
		require.NoError(t, tr.Send(ctx, to, types.EdgeRecord{Source: types.VertexID(i), Target: 100}))
	}
	for _, tr := range transports {
		require.NoError(t, tr.Flush(ctx))
	}
	for _, r := range receivers {
		require.NoError(t, r.Finalize(ctx))
	}

	for m, s := range sinks {
		got := s.snapshot()
		require.Len(t, got, 1)
		require.Equal(t, types.VertexID((m+len(sinks)-1)%len(sinks)), got[0].Source)
	}
}

func TestReceiverFinalize(t *testing.T) {
	ns, _ := shardtest.StartEmbeddedNATS(t)

	t.Run("not started", func(t *testing.T) {
		cl, err := cluster.NewStatic(1, 0)
		require.NoError(t, err)
		r, err := NewReceiver(shardtest.Connect(t, ns.ClientURL()), "idle", cl, &recordingSink{})
		require.NoError(t, err)
		require.ErrorIs(t, r.Finalize(context.Background()), ErrNotStarted)
	})

	t.Run("waits for every machine", func(t *testing.T) {
		transports, receivers, _ := startMachines(t, []string{ns.ClientURL()}, 2)
		require.NoError(t, transports[0].Flush(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := receivers[1].Finalize(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Contains(t, err.Error(), "1 of 2")
	})

	t.Run("sink error surfaces", func(t *testing.T) {
		cl, err := cluster.NewStatic(1, 0)
		require.NoError(t, err)
		nc := shardtest.Connect(t, ns.ClientURL())
		sink := &recordingSink{failOn: 9}

		tr, err := NewNATS(nc, "failing", cl)
		require.NoError(t, err)
		r, err := NewReceiver(nc, "failing", cl, sink)
		require.NoError(t, err)
		require.NoError(t, r.Start(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		require.NoError(t, tr.Send(ctx, 0, types.EdgeRecord{Source: 9, Target: 1}))
		require.NoError(t, tr.Flush(ctx))
		require.Error(t, r.Finalize(ctx))
		require.Zero(t, sink.finalized)
	})
}

func TestNewNATSValidation(t *testing.T) {
	cl, err := cluster.NewStatic(1, 0)
	require.NoError(t, err)

	_, err = NewNATS(nil, "", cl)
	require.ErrorIs(t, err, ErrConnRequired)
	_, err = NewReceiver(nil, "", cl, &recordingSink{})
	require.ErrorIs(t, err, ErrConnRequired)

	ns, _ := shardtest.StartEmbeddedNATS(t)
	nc := shardtest.Connect(t, ns.ClientURL())

	_, err = NewNATS(nc, "", nil)
	require.ErrorIs(t, err, types.ErrClusterRequired)
	_, err = NewReceiver(nc, "", cl, nil)
	require.ErrorIs(t, err, ErrSinkRequired)

	tr, err := NewNATS(nc, "", cl)
	require.NoError(t, err)
	require.ErrorIs(t, tr.Send(context.Background(), 3, types.EdgeRecord{}), types.ErrUnknownMachine)
}
