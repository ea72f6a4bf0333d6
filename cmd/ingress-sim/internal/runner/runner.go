// Package runner drives a simulated cluster of ingresses over a synthetic
// edge stream and reports partition quality.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/arloliu/edgeshard"
	"github.com/arloliu/edgeshard/cluster"
	"github.com/arloliu/edgeshard/cmd/ingress-sim/internal/config"
	"github.com/arloliu/edgeshard/cmd/ingress-sim/internal/generator"
	"github.com/arloliu/edgeshard/graph"
	"github.com/arloliu/edgeshard/internal/metrics"
	"github.com/arloliu/edgeshard/internal/natsutil"
	"github.com/arloliu/edgeshard/transport"
	"github.com/arloliu/edgeshard/types"
)

// machine is one simulated machine: its ingress and the store behind it.
type machine struct {
	id      types.ProcID
	ingress *edgeshard.Ingress
	store   *graph.Store
}

// Runner runs one simulation.
type Runner struct {
	cfg     *config.Config
	logger  types.Logger
	metrics types.MetricsCollector

	cleanups []func()
}

// New creates a runner.
//
// Parameters:
//   - cfg: Loaded simulator configuration
//   - logger: Logger shared by all simulated machines
//   - reg: Registry for ingress metrics, nil disables metrics
//
// Returns:
//   - *Runner: Runner ready for Run
func New(cfg *config.Config, logger types.Logger, reg prometheus.Registerer) *Runner {
	var collector types.MetricsCollector = metrics.NewNop()
	if reg != nil {
		collector = metrics.NewPrometheus(reg, "edgeshard")
	}

	return &Runner{cfg: cfg, logger: logger, metrics: collector}
}

// Run builds the cluster, streams the configured edges through it,
// finalizes every machine and reports the resulting partition.
//
// Parameters:
//   - ctx: Context bounding the whole run
//
// Returns:
//   - *Report: Partition quality and per-machine counts
//   - error: Setup, load, checkpoint or finalize failure
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	defer r.cleanup()

	start := time.Now()

	var (
		machines []*machine
		err      error
	)
	switch r.cfg.Simulation.Mode {
	case "local":
		machines, err = r.setupLocal()
	case "nats":
		machines, err = r.setupNATS(ctx)
	default:
		err = fmt.Errorf("unknown mode: %s", r.cfg.Simulation.Mode)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("loading edges",
		"mode", r.cfg.Simulation.Mode,
		"machines", len(machines),
		"loaders", r.cfg.Simulation.Loaders,
		"edges", r.cfg.Graph.Edges,
		"strategy", r.cfg.Ingress.Strategy,
	)

	loadStart := time.Now()
	if err := r.load(ctx, machines); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	loadDuration := time.Since(loadStart)

	if err := r.checkpoint(machines); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	stats, err := r.finalize(ctx, machines)
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}

	report, err := r.report(machines, stats)
	if err != nil {
		return nil, err
	}
	report.LoadDuration = loadDuration
	report.Duration = time.Since(start)

	r.logger.Info("simulation complete",
		"edges", report.GlobalEdges,
		"replicationFactor", report.Quality.ReplicationFactor,
		"loadImbalance", report.Quality.LoadImbalance,
		"duration", report.Duration,
	)

	return report, nil
}

func (r *Runner) setupLocal() ([]*machine, error) {
	n := r.cfg.Simulation.Machines

	members, err := cluster.NewStaticGroup(n)
	if err != nil {
		return nil, err
	}

	reducer, err := cluster.NewLocalReducer(n)
	if err != nil {
		return nil, err
	}

	machines := make([]*machine, n)
	sinks := make([]types.EdgeSink, n)
	for i := range n {
		id := types.ProcID(i) //nolint:gosec // bounded by machine count
		machines[i] = &machine{id: id, store: graph.NewStore(id, graph.WithStoreLogger(r.logger))}
		sinks[i] = machines[i].store
	}

	tr := transport.NewLocal(sinks, transport.WithLogger(r.logger), transport.WithMetrics(r.metrics))

	for i, m := range machines {
		m.ingress, err = r.newIngress(members[i], tr, reducer, m.store)
		if err != nil {
			return nil, err
		}
	}

	return machines, nil
}

func (r *Runner) setupNATS(ctx context.Context) ([]*machine, error) {
	url := r.cfg.NATS.URL
	if r.cfg.NATS.Mode == "embedded" {
		dir, err := os.MkdirTemp("", "edgeshard-sim-*")
		if err != nil {
			return nil, err
		}
		r.cleanups = append(r.cleanups, func() { _ = os.RemoveAll(dir) })

		ns, err := natsutil.StartEmbedded(natsutil.EmbeddedOptions{Port: -1, JetStream: true, StoreDir: dir})
		if err != nil {
			return nil, fmt.Errorf("failed to start embedded NATS: %w", err)
		}
		r.cleanups = append(r.cleanups, func() {
			ns.Shutdown()
			ns.WaitForShutdown()
		})
		url = ns.ClientURL()
	}

	n := r.cfg.Simulation.Machines

	// Member and reduction keys must not collide with earlier runs sharing the buckets.
	runID := fmt.Sprintf("run%d", time.Now().UnixNano())
	subjectPrefix := r.cfg.NATS.SubjectPrefix + "." + runID
	topts := []transport.Option{transport.WithLogger(r.logger), transport.WithMetrics(r.metrics)}

	machines := make([]*machine, n)
	for i := range n {
		nc, err := nats.Connect(url, nats.Name(fmt.Sprintf("edgeshard-sim-%d", i)))
		if err != nil {
			return nil, natsutil.Classify("connect", err)
		}
		r.cleanups = append(r.cleanups, nc.Close)

		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to get JetStream: %w", err)
		}

		member, err := cluster.OpenMembership(ctx, js, r.cfg.NATS.MemberBucket, runID, n, cluster.WithMemberLogger(r.logger))
		if err != nil {
			return nil, err
		}
		r.cleanups = append(r.cleanups, func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := member.Release(rctx); err != nil {
				r.logger.Warn("failed to release machine ID", "machine", member.ProcID(), "error", err)
			}
		})

		m := &machine{id: member.ProcID(), store: graph.NewStore(member.ProcID(), graph.WithStoreLogger(r.logger))}

		receiver, err := transport.NewReceiver(nc, subjectPrefix, member, m.store, topts...)
		if err != nil {
			return nil, err
		}
		// Every receiver subscribes before any machine sends.
		if err := receiver.Start(ctx); err != nil {
			return nil, err
		}

		tr, err := transport.NewNATS(nc, subjectPrefix, member, topts...)
		if err != nil {
			return nil, err
		}

		reducer, err := cluster.OpenKVReducer(ctx, js, r.cfg.NATS.ReduceBucket, runID, member, cluster.WithKVLogger(r.logger))
		if err != nil {
			return nil, err
		}

		m.ingress, err = r.newIngress(member, tr, reducer, receiver)
		if err != nil {
			return nil, err
		}
		machines[m.id] = m
	}

	return machines, nil
}

func (r *Runner) newIngress(
	member types.Cluster,
	tr types.Transport,
	reducer types.Reducer,
	base types.BaseIngress,
) (*edgeshard.Ingress, error) {
	cfg := r.cfg.Ingress

	return edgeshard.New(&cfg, member, tr,
		edgeshard.WithLogger(r.logger),
		edgeshard.WithMetrics(r.metrics),
		edgeshard.WithReducer(reducer),
		edgeshard.WithBaseIngress(base),
	)
}

// load spreads the configured edge count over every loader of every
// machine. Each loader owns a generator stream.
func (r *Runner) load(ctx context.Context, machines []*machine) error {
	var limiter *rate.Limiter
	if r.cfg.Rate.EdgesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.Rate.EdgesPerSecond), r.cfg.Rate.Burst)
	}

	loaders := r.cfg.Simulation.Loaders
	workers := len(machines) * loaders
	total := r.cfg.Graph.Edges

	g, gctx := errgroup.WithContext(ctx)
	for mi, m := range machines {
		for l := range loaders {
			worker := mi*loaders + l
			count := total / workers
			if worker < total%workers {
				count++
			}

			gen, err := generator.New(r.cfg.Graph, uint64(worker)) //nolint:gosec // non-negative
			if err != nil {
				return err
			}

			var payload []byte
			if r.cfg.Graph.PayloadBytes > 0 {
				payload = make([]byte, r.cfg.Graph.PayloadBytes)
				for i := range payload {
					payload[i] = byte(worker)
				}
			}

			g.Go(func() error {
				return runLoader(gctx, m.ingress, gen, count, payload, limiter)
			})
		}
	}

	return g.Wait()
}

func runLoader(
	ctx context.Context,
	ing *edgeshard.Ingress,
	gen generator.Generator,
	count int,
	payload []byte,
	limiter *rate.Limiter,
) error {
	for range count {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		src, dst := gen.Next()
		if err := ing.AddEdge(ctx, src, dst, payload); err != nil {
			return err
		}
	}

	return nil
}

// checkpoint saves every machine's tables into the checkpoint directory.
func (r *Runner) checkpoint(machines []*machine) error {
	dir := r.cfg.Checkpoint.Dir
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, m := range machines {
		path := filepath.Join(dir, fmt.Sprintf("machine-%d.tables", m.id))
		if err := saveTables(m.ingress, path); err != nil {
			if errors.Is(err, edgeshard.ErrNoTables) {
				r.logger.Warn("strategy keeps no tables, skipping checkpoint", "strategy", m.ingress.Strategy())
				return nil
			}

			return fmt.Errorf("machine %d: %w", m.id, err)
		}
		r.logger.Info("tables saved", "machine", m.id, "path", path)
	}

	return nil
}

func saveTables(ing *edgeshard.Ingress, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := ing.SaveTables(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)

		return err
	}

	return f.Close()
}

// finalize runs the collective Finalize on every machine at once.
func (r *Runner) finalize(ctx context.Context, machines []*machine) ([]edgeshard.Stats, error) {
	stats := make([]edgeshard.Stats, len(machines))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range machines {
		g.Go(func() error {
			s, err := m.ingress.Finalize(gctx)
			if err != nil {
				return fmt.Errorf("machine %d: %w", m.id, err)
			}
			stats[i] = s

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *Runner) report(machines []*machine, stats []edgeshard.Stats) (*Report, error) {
	index, err := graph.NewMirrorIndex(len(machines))
	if err != nil {
		return nil, err
	}

	report := &Report{
		Strategy: r.cfg.Ingress.Strategy,
		Mode:     r.cfg.Simulation.Mode,
		Machines: make([]MachineReport, len(machines)),
	}

	loads := make([]uint64, len(machines))
	var stored uint64
	for i, m := range machines {
		if err := index.AddStore(m.store); err != nil {
			return nil, err
		}

		loads[i] = uint64(m.store.NumEdges()) //nolint:gosec // non-negative
		stored += loads[i]

		report.Machines[i] = MachineReport{
			Machine:        m.id,
			Decided:        stats[i].LocalEdges,
			Stored:         m.store.NumEdges(),
			Vertices:       m.store.NumVertices(),
			ReplicaEntries: stats[i].Replicas.Entries,
			DegreeEntries:  stats[i].Degrees.Entries,
		}
	}

	report.GlobalEdges = stats[0].GlobalEdges
	report.Quality = index.Quality(loads)

	if stored != report.GlobalEdges {
		return nil, fmt.Errorf("stored %d edges, but %d were placed", stored, report.GlobalEdges)
	}

	return report, nil
}

func (r *Runner) cleanup() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
	r.cleanups = nil
}
