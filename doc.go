// Package edgeshard provides streaming edge partitioning (vertex-cut ingress)
// for distributed graph processing.
//
// Every machine of a cluster reads part of an edge stream and runs an Ingress.
// For each edge the ingress picks the machine that will own it, remembers
// which machines already hold a replica of each endpoint, and ships the edge
// to its owner through a Transport. Good placements keep the replication
// factor (replicas per vertex) low while balancing edge counts.
//
// # Quick Start
//
// One process simulating four machines:
//
//	group, _ := cluster.NewStaticGroup(4)
//	reducer, _ := cluster.NewLocalReducer(4)
//	stores := make([]edgeshard.EdgeSink, 4)
//	for i := range stores {
//	    stores[i] = graph.NewStore(edgeshard.ProcID(i))
//	}
//	tr := transport.NewLocal(stores)
//
//	cfg := edgeshard.DefaultConfig()
//	ing, err := edgeshard.New(&cfg, group[0], tr,
//	    edgeshard.WithReducer(reducer),
//	    edgeshard.WithBaseIngress(stores[0].(*graph.Store)),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := ing.AddEdge(ctx, 1, 2, nil); err != nil {
//	    return err
//	}
//	stats, err := ing.Finalize(ctx) // collective: every machine calls it
//
// # Strategies
//
//   - random: hash of the canonical edge, no per-vertex state
//   - oblivious: PowerGraph greedy, prefers machines holding both endpoints
//   - hdrf: High-Degree Replicated First, prefers cutting high-degree vertices
//
// Greedy and HDRF both add a balance term so the least loaded machines win
// ties. Config.UseHash and Config.UseRecent tune the replica bookkeeping.
//
// # Architecture
//
// An ingress progresses through a state machine:
//
//	Constructed → Ingesting → Finalizing → Finalized
//
// AddEdge is safe for concurrent use; per-vertex state is kept in cuckoo
// hash tables behind lock stripes. Finalize flushes the transport, sums the
// edge count over the cluster with a Reducer, then finalizes the base
// ingress (typically a graph.Store, or a transport.Receiver wrapping one).
//
// # Deployment
//
// Across processes, use transport.NATS with a transport.Receiver per
// machine and cluster.KVReducer for the collective sum. Processes without a
// preassigned machine ID lease one with cluster.OpenMembership. The
// cmd/ingress-sim binary runs either setup and reports partition quality.
package edgeshard
