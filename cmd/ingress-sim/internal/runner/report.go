package runner

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/arloliu/edgeshard"
	"github.com/arloliu/edgeshard/graph"
)

// MachineReport describes one simulated machine after Finalize.
type MachineReport struct {
	Machine        edgeshard.ProcID
	Decided        uint64 // edges this machine's ingress placed
	Stored         int    // edges delivered to this machine
	Vertices       uint64 // distinct endpoints stored here
	ReplicaEntries int
	DegreeEntries  int
}

// Report is the outcome of one simulation run.
type Report struct {
	Strategy     edgeshard.Strategy
	Mode         string
	GlobalEdges  uint64
	LoadDuration time.Duration
	Duration     time.Duration
	Quality      graph.Quality
	Machines     []MachineReport
}

// Throughput is the ingest rate in edges per second.
func (r *Report) Throughput() float64 {
	if r.LoadDuration <= 0 {
		return 0
	}

	return float64(r.GlobalEdges) / r.LoadDuration.Seconds()
}

// Print writes a human-readable summary to w.
func (r *Report) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "strategy\t%s\n", r.Strategy)
	fmt.Fprintf(tw, "mode\t%s\n", r.Mode)
	fmt.Fprintf(tw, "edges\t%d\n", r.GlobalEdges)
	fmt.Fprintf(tw, "load time\t%v\n", r.LoadDuration.Round(time.Millisecond))
	fmt.Fprintf(tw, "total time\t%v\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "throughput\t%.0f edges/s\n", r.Throughput())
	fmt.Fprintf(tw, "vertices\t%d\n", r.Quality.Vertices)
	fmt.Fprintf(tw, "replication factor\t%.3f\n", r.Quality.ReplicationFactor)
	fmt.Fprintf(tw, "max mirrors\t%d\n", r.Quality.MaxMirrors)
	fmt.Fprintf(tw, "load imbalance\t%.3f\n", r.Quality.LoadImbalance)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "machine\tdecided\tstored\tvertices\treplica entries\tdegree entries")
	for _, m := range r.Machines {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\n",
			m.Machine, m.Decided, m.Stored, m.Vertices, m.ReplicaEntries, m.DegreeEntries)
	}

	return tw.Flush()
}
