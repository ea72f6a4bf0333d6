package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/nats-io/nats.go"

	"github.com/arloliu/edgeshard/internal/natsutil"
	"github.com/arloliu/edgeshard/types"
)

// Receiver consumes the local machine's edge subject into a sink.
//
// As a BaseIngress it finalizes once every machine has sent its
// end-of-stream marker, then finalizes the sink when the sink is itself a
// BaseIngress. Start must run on every machine before any machine sends.
type Receiver struct {
	conn        *nats.Conn
	subject     string
	numMachines int
	sink        types.EdgeSink
	logger      types.Logger
	metrics     types.TransportMetrics
	timeout     time.Duration

	sub      *nats.Subscription
	received atomic.Uint64

	mu      sync.Mutex
	flushed *bitset.BitSet
	done    chan struct{}
	err     error
}

var _ types.BaseIngress = (*Receiver)(nil)

// NewReceiver creates a receiver for the local machine of cl.
//
// Parameters:
//   - conn: Connected NATS client
//   - prefix: Subject prefix, matching the senders' (DefaultSubjectPrefix when empty)
//   - cl: Cluster description
//   - sink: Destination of delivered records
//   - opts: Optional WithLogger, WithMetrics
//
// Returns:
//   - *Receiver: Receiver, not yet subscribed
//   - error: Error if a collaborator is missing
func NewReceiver(conn *nats.Conn, prefix string, cl types.Cluster, sink types.EdgeSink, opts ...Option) (*Receiver, error) {
	if conn == nil {
		return nil, ErrConnRequired
	}
	if cl == nil {
		return nil, types.ErrClusterRequired
	}
	if sink == nil {
		return nil, ErrSinkRequired
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	o := buildOptions(opts)
	n := cl.NumMachines()

	return &Receiver{
		conn:        conn,
		subject:     Subject(prefix, cl.ProcID()),
		numMachines: n,
		sink:        sink,
		logger:      o.logger,
		metrics:     o.metrics,
		timeout:     o.flushTimeout,
		flushed:     bitset.New(uint(n)), //nolint:gosec // n is positive
		done:        make(chan struct{}),
	}, nil
}

// Start subscribes to the local subject and waits until the server has
// registered the subscription.
func (r *Receiver) Start(ctx context.Context) error {
	sub, err := r.conn.Subscribe(r.subject, r.handle)
	if err != nil {
		return natsutil.Classify("subscribe "+r.subject, err)
	}
	// Senders do not retry, so the slow-consumer limit must never drop a record.
	if err := sub.SetPendingLimits(-1, -1); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("set pending limits: %w", err)
	}
	r.sub = sub

	if _, ok := ctx.Deadline(); ok {
		err = r.conn.FlushWithContext(ctx)
	} else {
		err = r.conn.FlushTimeout(r.timeout)
	}
	if err != nil {
		return natsutil.Classify("flush subscription", err)
	}

	r.logger.Debug("receiver subscribed", "subject", r.subject)

	return nil
}

// Received returns the number of edge records delivered to the sink.
func (r *Receiver) Received() uint64 {
	return r.received.Load()
}

// Finalize waits for every end-of-stream marker, unsubscribes and
// finalizes the sink.
//
// Parameters:
//   - ctx: Context bounding the wait for slow peers
//
// Returns:
//   - error: ErrNotStarted, the context error, the first delivery error,
//     or the sink's Finalize error
func (r *Receiver) Finalize(ctx context.Context) error {
	if r.sub == nil {
		return ErrNotStarted
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		r.mu.Lock()
		got := r.flushed.Count()
		r.mu.Unlock()

		return fmt.Errorf("waiting for end-of-stream (%d of %d machines): %w", got, r.numMachines, ctx.Err())
	}

	if err := r.sub.Unsubscribe(); err != nil {
		r.logger.Warn("unsubscribe failed", "subject", r.subject, "error", err)
	}

	r.mu.Lock()
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.logger.Debug("receiver drained", "subject", r.subject, "records", r.received.Load())

	if base, ok := r.sink.(types.BaseIngress); ok {
		return base.Finalize(ctx)
	}

	return nil
}

func (r *Receiver) handle(msg *nats.Msg) {
	m, err := DecodeMessage(msg.Data)
	if err != nil {
		r.fail(err)
		return
	}

	switch m.Kind {
	case KindEdge:
		if err := r.sink.AddLocalEdge(m.Record); err != nil {
			r.fail(fmt.Errorf("add edge %d-%d: %w", m.Record.Source, m.Record.Target, err))
			return
		}
		r.received.Add(1)
		r.metrics.RecordReceive(len(msg.Data))
	case KindEndOfStream:
		r.markFlushed(m.From)
	}
}

func (r *Receiver) markFlushed(from types.ProcID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !from.Valid(r.numMachines) {
		r.setErr(fmt.Errorf("%w: end-of-stream from %d", types.ErrUnknownMachine, from))
		return
	}
	if r.flushed.Test(uint(from)) {
		return
	}
	r.flushed.Set(uint(from))

	if r.flushed.Count() == uint(r.numMachines) { //nolint:gosec // numMachines is positive
		close(r.done)
	}
}

func (r *Receiver) fail(err error) {
	r.logger.Error("dropping edge message", "subject", r.subject, "error", err)

	r.mu.Lock()
	r.setErr(err)
	r.mu.Unlock()
}

// setErr keeps the first error. Caller holds mu.
func (r *Receiver) setErr(err error) {
	if r.err == nil {
		r.err = err
	}
}
