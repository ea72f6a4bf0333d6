package transport

import (
	"context"
	"fmt"
	"slices"

	"github.com/arloliu/edgeshard/types"
)

// Local delivers records directly into per-machine sinks in the same process.
//
// It is safe for concurrent use when the sinks are.
type Local struct {
	sinks   []types.EdgeSink
	metrics types.TransportMetrics
}

var _ types.Transport = (*Local)(nil)

// NewLocal creates an in-process transport. Machine i delivers into sinks[i].
//
// Parameters:
//   - sinks: One sink per machine
//   - opts: Optional WithMetrics
//
// Returns:
//   - *Local: Transport shared by every simulated machine
func NewLocal(sinks []types.EdgeSink, opts ...Option) *Local {
	o := buildOptions(opts)

	return &Local{
		sinks:   slices.Clone(sinks),
		metrics: o.metrics,
	}
}

// Send stores a copy of rec in the sink of machine to.
func (l *Local) Send(ctx context.Context, to types.ProcID, rec types.EdgeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !to.Valid(len(l.sinks)) {
		l.metrics.RecordSend(to, false)
		return fmt.Errorf("%w: %d of %d", types.ErrUnknownMachine, to, len(l.sinks))
	}

	// The caller may reuse its payload buffer.
	rec.Data = slices.Clone(rec.Data)

	if err := l.sinks[to].AddLocalEdge(rec); err != nil {
		l.metrics.RecordSend(to, false)
		return err
	}
	l.metrics.RecordSend(to, true)

	return nil
}

// Flush is a no-op: Send delivers synchronously.
func (l *Local) Flush(ctx context.Context) error {
	return ctx.Err()
}
