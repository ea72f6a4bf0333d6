package edgeshard

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/edgeshard/decision"
	"github.com/arloliu/edgeshard/internal/cuckoo"
	"github.com/arloliu/edgeshard/internal/logger"
	"github.com/arloliu/edgeshard/internal/metrics"
	"github.com/arloliu/edgeshard/internal/replica"
	"github.com/arloliu/edgeshard/types"
)

// TableStats summarizes one per-vertex table across all lock stripes.
type TableStats = replica.Stats

// Stats is the outcome of Finalize.
type Stats struct {
	// Machine is the local machine.
	Machine ProcID

	// Strategy is the decision strategy used.
	Strategy Strategy

	// LocalEdges is the number of edges this ingress decided.
	LocalEdges uint64

	// GlobalEdges is the number of edges decided by all machines.
	GlobalEdges uint64

	// Loads is this ingress's view of how many edges it sent to each machine.
	Loads []uint64

	// Replicas and Degrees describe the per-vertex tables right before they
	// were cleared. Zero for the random strategy (and Degrees for oblivious).
	Replicas TableStats
	Degrees  TableStats

	// Duration is the wall time spent in Finalize.
	Duration time.Duration
}

// decideFunc places one edge, mutating the ingress tables and load vector.
type decideFunc func(src, dst VertexID) ProcID

// Ingress assigns a stream of edges to machines and ships each edge to its
// owner.
//
// AddEdge may be called from many goroutines. Per-vertex state is updated
// under lock stripes shared by both endpoints of an edge, so concurrent
// decisions never lose a replica bit, a degree increment or a load increment.
//
// Lifecycle:
//
//	Constructed → Ingesting → Finalizing → Finalized
//
// Finalize is collective: every machine in the cluster must call it, because
// it blocks in the reducer until all machines have contributed their counts.
type Ingress struct {
	cfg      Config
	strategy Strategy
	policy   decision.Policy

	cluster   Cluster
	transport Transport
	reducer   Reducer
	base      BaseIngress
	logger    Logger
	metrics   MetricsCollector

	numMachines int
	self        ProcID
	loads       *decision.LoadVector
	table       *replica.Table // nil for the random strategy
	decide      decideFunc

	// gate is held shared by AddEdge and exclusively by the Finalize state
	// transition, so Finalize starts only after in-flight edges are sent.
	gate  sync.RWMutex
	state atomic.Int32

	subscribers      *xsync.Map[uint64, *stateSubscriber]
	nextSubscriberID atomic.Uint64
}

// New creates an Ingress for cfg.Strategy.
//
// Parameters:
//   - cfg: Configuration; missing values are filled with defaults (modified in place)
//   - cl: Cluster description, read once for NumMachines and ProcID
//   - tr: Transport used to deliver every edge to its owner
//   - opts: Optional logger, metrics, reducer and base ingress
//
// Returns:
//   - *Ingress: Ingress in StateConstructed
//   - error: ErrInvalidConfig, ErrClusterRequired, ErrTransportRequired,
//     ErrNoMachines or ErrReducerRequired
//
// Example:
//
//	cfg := edgeshard.DefaultConfig()
//	ing, err := edgeshard.New(&cfg, cl, tr, edgeshard.WithReducer(red))
//	if err != nil {
//	    return err
//	}
//	for e := range edges {
//	    if err := ing.AddEdge(ctx, e.Src, e.Dst, e.Data); err != nil {
//	        return err
//	    }
//	}
//	stats, err := ing.Finalize(ctx)
func New(cfg *Config, cl Cluster, tr Transport, opts ...Option) (*Ingress, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	SetDefaults(cfg)

	return newIngress(cfg, cfg.Strategy, cl, tr, opts)
}

// NewObliviousIngress creates an Ingress using the PowerGraph greedy
// (oblivious) strategy, regardless of cfg.Strategy.
func NewObliviousIngress(cfg *Config, cl Cluster, tr Transport, opts ...Option) (*Ingress, error) {
	return newWithStrategy(cfg, StrategyOblivious, cl, tr, opts)
}

// NewHDRFIngress creates an Ingress using the HDRF strategy, regardless of
// cfg.Strategy.
func NewHDRFIngress(cfg *Config, cl Cluster, tr Transport, opts ...Option) (*Ingress, error) {
	return newWithStrategy(cfg, StrategyHDRF, cl, tr, opts)
}

// NewRandomIngress creates an Ingress that hashes every edge onto a machine,
// regardless of cfg.Strategy. It keeps no per-vertex state.
func NewRandomIngress(cfg *Config, cl Cluster, tr Transport, opts ...Option) (*Ingress, error) {
	return newWithStrategy(cfg, StrategyRandom, cl, tr, opts)
}

func newWithStrategy(cfg *Config, s Strategy, cl Cluster, tr Transport, opts []Option) (*Ingress, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	cfg.Strategy = s
	SetDefaults(cfg)

	return newIngress(cfg, s, cl, tr, opts)
}

func newIngress(cfg *Config, s Strategy, cl Cluster, tr Transport, opts []Option) (*Ingress, error) {
	if cl == nil {
		return nil, ErrClusterRequired
	}
	if tr == nil {
		return nil, ErrTransportRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	n := cl.NumMachines()
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNoMachines, n)
	}
	self := cl.ProcID()
	if !self.Valid(n) {
		return nil, fmt.Errorf("%w: local machine %d of %d", ErrInvalidConfig, self, n)
	}

	options := &ingressOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logger.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	reducer := options.reducer
	if reducer == nil {
		if n > 1 {
			return nil, ErrReducerRequired
		}
		reducer = soloReducer{}
	}

	base := options.base
	if base == nil {
		base = nopBase{}
	}

	ing := &Ingress{
		cfg:         *cfg,
		strategy:    s,
		policy:      decision.Policy{UseHash: cfg.UseHash, UseRecent: cfg.UseRecent},
		cluster:     cl,
		transport:   tr,
		reducer:     reducer,
		base:        base,
		logger:      loggerInstance,
		metrics:     metricsCollector,
		numMachines: n,
		self:        self,
		loads:       decision.NewLoadVector(n),
		subscribers: xsync.NewMap[uint64, *stateSubscriber](),
	}
	ing.state.Store(int32(StateConstructed))

	mapOpts := replica.WithMapOptions(
		cuckoo.WithInitialCapacity(cfg.Table.InitialCapacity),
		cuckoo.WithMaxStash(cfg.Table.MaxStash),
		cuckoo.WithMaxDisplacements(cfg.Table.MaxDisplacements),
		cuckoo.WithSeed(cfg.Table.Seed),
	)

	switch s {
	case StrategyRandom:
		ing.decide = ing.decideRandom
	case StrategyOblivious:
		ing.table = replica.New(replica.WithStripes(cfg.LockStripes), mapOpts)
		ing.decide = ing.decideOblivious
	case StrategyHDRF:
		ing.table = replica.New(replica.WithStripes(cfg.LockStripes), replica.WithDegrees(), mapOpts)
		ing.decide = ing.decideHDRF
	}

	ing.logger.Debug("ingress created",
		"strategy", s,
		"machine", self,
		"machines", n,
		"lockStripes", cfg.LockStripes,
		"usehash", cfg.UseHash,
		"userecent", cfg.UseRecent,
	)

	return ing, nil
}

func (i *Ingress) decideRandom(src, dst VertexID) ProcID {
	p := decision.Random(src, dst, i.numMachines)
	i.loads.Inc(p)

	return p
}

func (i *Ingress) decideOblivious(src, dst VertexID) ProcID {
	owner := InvalidProcID
	i.table.Pair(src, dst, func(s, d replica.Entry) {
		owner = decision.Greedy(src, dst, s.Replicas, d.Replicas, i.loads, i.policy)
	})

	return owner
}

func (i *Ingress) decideHDRF(src, dst VertexID) ProcID {
	owner := InvalidProcID
	i.table.Pair(src, dst, func(s, d replica.Entry) {
		owner = decision.HDRF(src, dst, s.Replicas, d.Replicas, s.Degree, d.Degree, i.loads, i.policy)
	})

	return owner
}

// AddEdge decides the owner of edge (source, target) and sends it there.
//
// The decision and the table updates it implies happen before the send; a
// failed send is not retried and the decision is not rolled back.
//
// Parameters:
//   - ctx: Context passed to the transport
//   - source: Source vertex
//   - target: Target vertex
//   - data: Opaque edge payload, delivered unchanged
//
// Returns:
//   - error: ErrIngressFinalized after Finalize started, or an ErrSendFailed-wrapped
//     transport error
func (i *Ingress) AddEdge(ctx context.Context, source, target VertexID, data []byte) error {
	i.gate.RLock()
	defer i.gate.RUnlock()

	if !i.State().AcceptsEdges() {
		return ErrIngressFinalized
	}
	if i.state.CompareAndSwap(int32(StateConstructed), int32(StateIngesting)) {
		i.emitStateChange(StateConstructed, StateIngesting)
	}

	start := time.Now()
	owner := i.decide(source, target)
	i.metrics.RecordDecisionDuration(string(i.strategy), time.Since(start).Seconds())

	if !owner.Valid(i.numMachines) {
		panic(fmt.Errorf("edge %d-%d placed on machine %d of %d: %w",
			source, target, owner, i.numMachines, types.ErrProcOutOfRange))
	}
	i.metrics.RecordEdgeAssigned(string(i.strategy), owner)

	rec := EdgeRecord{Source: source, Target: target, Data: data}
	if err := i.transport.Send(ctx, owner, rec); err != nil {
		return fmt.Errorf("%w: edge %d-%d to machine %d: %w", ErrSendFailed, source, target, owner, err)
	}

	return nil
}

// Finalize ends ingestion on this machine.
//
// It clears the per-vertex tables, flushes the transport, sums the edge
// count over the cluster through the reducer and finally finalizes the base
// ingress. Every machine must call Finalize; it blocks until all have
// contributed or ctx (bounded by Config.FinalizeTimeout) expires.
//
// On error the ingress stays in StateFinalizing and cannot be reused.
//
// Parameters:
//   - ctx: Context for cancellation and deadline
//
// Returns:
//   - Stats: Edge counts and table statistics (partially filled on error)
//   - error: ErrAlreadyFinalized on a second call, or a flush, reduce or base
//     finalize error
func (i *Ingress) Finalize(ctx context.Context) (Stats, error) {
	i.gate.Lock()
	from := i.State()
	if !from.AcceptsEdges() {
		i.gate.Unlock()
		return Stats{}, ErrAlreadyFinalized
	}
	i.state.Store(int32(StateFinalizing))
	i.gate.Unlock()
	i.emitStateChange(from, StateFinalizing)

	start := time.Now()
	if i.cfg.FinalizeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.FinalizeTimeout)
		defer cancel()
	}

	stats := Stats{
		Machine:    i.self,
		Strategy:   i.strategy,
		LocalEdges: i.loads.Sum(),
		Loads:      i.loads.Snapshot(),
	}
	if i.table != nil {
		stats.Replicas = i.table.ReplicaStats()
		stats.Degrees = i.table.DegreeStats()
		i.recordTable("replica", stats.Replicas)
		if i.table.TracksDegrees() {
			i.recordTable("degree", stats.Degrees)
		}
		i.table.Clear()
	}

	if err := i.transport.Flush(ctx); err != nil {
		i.logger.Error("transport flush failed", "machine", i.self, "error", err)
		return stats, fmt.Errorf("flush transport: %w", err)
	}

	global, err := i.reducer.AllReduceSum(ctx, stats.LocalEdges)
	if err != nil {
		i.logger.Error("edge count reduction failed", "machine", i.self, "error", err)
		return stats, fmt.Errorf("%w: %w", ErrReduceFailed, err)
	}
	stats.GlobalEdges = global

	i.logger.Info("total processed edges",
		"machine", i.self,
		"strategy", i.strategy,
		"local", stats.LocalEdges,
		"global", global,
	)

	if err := i.base.Finalize(ctx); err != nil {
		i.logger.Error("base ingress finalize failed", "machine", i.self, "error", err)
		return stats, fmt.Errorf("finalize base ingress: %w", err)
	}

	stats.Duration = time.Since(start)
	i.metrics.RecordFinalize(stats.LocalEdges, stats.GlobalEdges, stats.Duration.Seconds())

	i.state.Store(int32(StateFinalized))
	i.emitStateChange(StateFinalizing, StateFinalized)

	return stats, nil
}

func (i *Ingress) recordTable(name string, st TableStats) {
	i.metrics.RecordTableStats(name, st.Entries, st.Stash, st.LoadFactor)
	i.metrics.RecordTableResize(name, st.Resizes)
}

// SaveTables writes the per-vertex tables as a compressed snapshot.
//
// Concurrent AddEdge calls may run; each stripe is captured consistently but
// stripes are captured one after another.
//
// Parameters:
//   - w: Destination stream
//
// Returns:
//   - error: ErrNoTables for the random strategy, ErrIngressFinalized once
//     Finalize started, or a write error
func (i *Ingress) SaveTables(w io.Writer) error {
	if i.table == nil {
		return ErrNoTables
	}

	i.gate.RLock()
	defer i.gate.RUnlock()

	if !i.State().AcceptsEdges() {
		return ErrIngressFinalized
	}

	return i.table.WriteSnapshot(w)
}

// LoadTables merges a snapshot written by SaveTables into the tables, so a
// new ingress starts with the replica placement and degrees of an earlier
// one. Loads start from zero. Only valid before the first AddEdge.
//
// Parameters:
//   - r: Snapshot stream
//
// Returns:
//   - error: ErrNoTables, ErrIngressStarted, or a read/format error
func (i *Ingress) LoadTables(r io.Reader) error {
	if i.table == nil {
		return ErrNoTables
	}

	i.gate.Lock()
	defer i.gate.Unlock()

	if i.State() != StateConstructed {
		return ErrIngressStarted
	}
	if err := i.table.ReadSnapshot(r); err != nil {
		return fmt.Errorf("load tables: %w", err)
	}

	i.logger.Info("tables restored", "machine", i.self, "vertices", i.table.Len())

	return nil
}

// State returns the current lifecycle state.
func (i *Ingress) State() State {
	return State(i.state.Load())
}

// Strategy returns the decision strategy in use.
func (i *Ingress) Strategy() Strategy {
	return i.strategy
}

// NumMachines returns the cluster size captured at construction.
func (i *Ingress) NumMachines() int {
	return i.numMachines
}

// ProcID returns the local machine.
func (i *Ingress) ProcID() ProcID {
	return i.self
}

// Loads returns a copy of the per-machine edge counts decided so far.
func (i *Ingress) Loads() []uint64 {
	return i.loads.Snapshot()
}

// Subscribe returns a channel that receives lifecycle state changes.
//
// The channel is buffered (size 4, enough for the whole lifecycle) and
// receives the current state immediately. Slow subscribers miss updates
// rather than blocking ingestion.
//
// Returns:
//   - <-chan State: Channel that receives state updates
//   - func(): Unsubscribe function; closes the channel
//
// Example:
//
//	ch, unsubscribe := ing.Subscribe()
//	defer unsubscribe()
//	for st := range ch {
//	    if st == edgeshard.StateFinalized {
//	        break
//	    }
//	}
func (i *Ingress) Subscribe() (<-chan State, func()) {
	id := i.nextSubscriberID.Add(1)

	sub := &stateSubscriber{ch: make(chan State, 4)}
	i.subscribers.Store(id, sub)
	sub.trySend(i.State())

	return sub.ch, func() {
		if s, ok := i.subscribers.LoadAndDelete(id); ok {
			s.close()
		}
	}
}

// emitStateChange logs, records and fans out a transition that has already
// been stored.
func (i *Ingress) emitStateChange(from, to State) {
	i.logger.Info("state transition", "machine", i.self, "from", from, "to", to)
	i.metrics.RecordStateTransition(from, to)

	i.subscribers.Range(func(_ uint64, sub *stateSubscriber) bool {
		sub.trySend(to)
		return true
	})
}

// soloReducer is the reducer of a one-machine cluster.
type soloReducer struct{}

func (soloReducer) AllReduceSum(_ context.Context, local uint64) (uint64, error) {
	return local, nil
}

type nopBase struct{}

func (nopBase) Finalize(context.Context) error { return nil }
