package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/edgeshard/internal/natsutil"
	"github.com/arloliu/edgeshard/types"
)

// DefaultSubjectPrefix is the subject prefix used when none is given.
const DefaultSubjectPrefix = "edgeshard"

var (
	// ErrConnRequired is returned when a NATS transport or receiver gets a nil connection.
	ErrConnRequired = errors.New("nats connection is required")

	// ErrSinkRequired is returned when a receiver gets a nil sink.
	ErrSinkRequired = errors.New("edge sink is required")

	// ErrNotStarted is returned by Receiver.Finalize before Start.
	ErrNotStarted = errors.New("receiver not started")
)

// Subject returns the subject machine listens on.
func Subject(prefix string, machine types.ProcID) string {
	return prefix + ".edges." + strconv.FormatUint(uint64(machine), 10)
}

// NATS publishes edge records over core NATS, one subject per machine.
//
// It is safe for concurrent use.
type NATS struct {
	conn         *nats.Conn
	prefix       string
	self         types.ProcID
	numMachines  int
	logger       types.Logger
	metrics      types.TransportMetrics
	flushTimeout time.Duration
	bufs         sync.Pool
}

var _ types.Transport = (*NATS)(nil)

// NewNATS creates a NATS transport for the local machine of cl.
//
// Parameters:
//   - conn: Connected NATS client
//   - prefix: Subject prefix (DefaultSubjectPrefix when empty)
//   - cl: Cluster description
//   - opts: Optional WithLogger, WithMetrics, WithFlushTimeout
//
// Returns:
//   - *NATS: Transport instance
//   - error: Error if conn or cl is missing
func NewNATS(conn *nats.Conn, prefix string, cl types.Cluster, opts ...Option) (*NATS, error) {
	if conn == nil {
		return nil, ErrConnRequired
	}
	if cl == nil {
		return nil, types.ErrClusterRequired
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	o := buildOptions(opts)

	return &NATS{
		conn:         conn,
		prefix:       prefix,
		self:         cl.ProcID(),
		numMachines:  cl.NumMachines(),
		logger:       o.logger,
		metrics:      o.metrics,
		flushTimeout: o.flushTimeout,
		bufs: sync.Pool{New: func() any {
			b := make([]byte, 0, 64)
			return &b
		}},
	}, nil
}

// Send publishes rec on the subject of machine to.
//
// Publish copies the payload into the connection's write buffer, so the
// encode buffer goes back to the pool right away.
func (t *NATS) Send(ctx context.Context, to types.ProcID, rec types.EdgeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !to.Valid(t.numMachines) {
		t.metrics.RecordSend(to, false)
		return fmt.Errorf("%w: %d of %d", types.ErrUnknownMachine, to, t.numMachines)
	}

	bp := t.bufs.Get().(*[]byte) //nolint:errcheck,forcetypeassert // pool only holds *[]byte
	*bp = EncodeRecord((*bp)[:0], rec)
	err := t.conn.Publish(Subject(t.prefix, to), *bp)
	t.bufs.Put(bp)

	if err != nil {
		t.metrics.RecordSend(to, false)
		return natsutil.Classify(fmt.Sprintf("publish to machine %d", to), err)
	}
	t.metrics.RecordSend(to, true)

	return nil
}

// Flush publishes an end-of-stream marker to every machine, then waits
// until the server has processed everything published so far.
func (t *NATS) Flush(ctx context.Context) error {
	marker := EncodeEndOfStream(nil, t.self)
	for m := range t.numMachines {
		to := types.ProcID(m) //nolint:gosec // numMachines fits ProcID
		if err := t.conn.Publish(Subject(t.prefix, to), marker); err != nil {
			return natsutil.Classify(fmt.Sprintf("end-of-stream to machine %d", to), err)
		}
	}

	var err error
	if _, ok := ctx.Deadline(); ok {
		err = t.conn.FlushWithContext(ctx)
	} else {
		err = t.conn.FlushTimeout(t.flushTimeout)
	}
	if err != nil {
		return natsutil.Classify("flush", err)
	}

	t.logger.Debug("transport flushed", "machine", t.self, "machines", t.numMachines)

	return nil
}
