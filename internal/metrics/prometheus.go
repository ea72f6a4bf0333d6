package metrics

import (
	"strconv"
	"sync"

	"github.com/arloliu/edgeshard/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered on first use, so constructing one
// that is never written to leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// Ingress metrics
	edgesAssigned    *prometheus.CounterVec
	decisionLatency  *prometheus.HistogramVec
	stateTransitions *prometheus.CounterVec
	finalizeLocal    prometheus.Gauge
	finalizeGlobal   prometheus.Gauge
	finalizeDuration prometheus.Histogram

	// Table metrics
	tableEntries    *prometheus.GaugeVec
	tableStash      *prometheus.GaugeVec
	tableLoadFactor *prometheus.GaugeVec
	tableResizes    *prometheus.GaugeVec

	// Transport metrics
	sends         *prometheus.CounterVec
	receivedEdges prometheus.Counter
	receivedBytes prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "edgeshard" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "edgeshard"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.edgesAssigned = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "ingress",
			Name:      "edges_assigned_total",
			Help:      "Edges placed by this ingress, by strategy and owning machine.",
		}, []string{"strategy", "machine"})

		p.decisionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "ingress",
			Name:      "decision_duration_seconds",
			Help:      "Time spent locking, scoring and updating tables for one edge.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10), // 100ns .. ~26ms
		}, []string{"strategy"})

		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "ingress",
			Name:      "state_transitions_total",
			Help:      "Ingress lifecycle transitions.",
		}, []string{"from", "to"})

		p.finalizeLocal = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "ingress",
			Name:      "finalize_local_edges",
			Help:      "Edges decided by this machine, recorded at finalize.",
		})

		p.finalizeGlobal = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "ingress",
			Name:      "finalize_global_edges",
			Help:      "Edges decided across the cluster, recorded at finalize.",
		})

		p.finalizeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "ingress",
			Name:      "finalize_duration_seconds",
			Help:      "Duration of the collective finalize step.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		})

		p.tableEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "table",
			Name:      "entries",
			Help:      "Live entries in the per-vertex tables.",
		}, []string{"table"})

		p.tableStash = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "table",
			Name:      "stash_entries",
			Help:      "Entries held in cuckoo overflow stashes.",
		}, []string{"table"})

		p.tableLoadFactor = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "table",
			Name:      "load_factor",
			Help:      "Entries over slots plus stash.",
		}, []string{"table"})

		p.tableResizes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "table",
			Name:      "resizes",
			Help:      "Slot array doublings since the table was created.",
		}, []string{"table"})

		p.sends = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transport",
			Name:      "sends_total",
			Help:      "Edge record sends by destination machine and result (success|failure).",
		}, []string{"machine", "result"})

		p.receivedEdges = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transport",
			Name:      "received_edges_total",
			Help:      "Edge records delivered to the local machine.",
		})

		p.receivedBytes = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transport",
			Name:      "received_bytes_total",
			Help:      "Encoded bytes of edge records delivered to the local machine.",
		})

		p.reg.MustRegister(p.edgesAssigned)
		p.reg.MustRegister(p.decisionLatency)
		p.reg.MustRegister(p.stateTransitions)
		p.reg.MustRegister(p.finalizeLocal)
		p.reg.MustRegister(p.finalizeGlobal)
		p.reg.MustRegister(p.finalizeDuration)
		p.reg.MustRegister(p.tableEntries)
		p.reg.MustRegister(p.tableStash)
		p.reg.MustRegister(p.tableLoadFactor)
		p.reg.MustRegister(p.tableResizes)
		p.reg.MustRegister(p.sends)
		p.reg.MustRegister(p.receivedEdges)
		p.reg.MustRegister(p.receivedBytes)
	})
}

// IngressMetrics implementation

// RecordEdgeAssigned counts one placed edge.
func (p *PrometheusCollector) RecordEdgeAssigned(strategy string, machine types.ProcID) {
	p.ensureRegistered()
	p.edgesAssigned.WithLabelValues(strategy, machineLabel(machine)).Inc()
}

// RecordDecisionDuration observes one decision latency in seconds.
func (p *PrometheusCollector) RecordDecisionDuration(strategy string, duration float64) {
	p.ensureRegistered()
	p.decisionLatency.WithLabelValues(strategy).Observe(duration)
}

// RecordStateTransition counts one lifecycle transition.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordFinalize sets the edge totals and observes the finalize duration.
func (p *PrometheusCollector) RecordFinalize(localEdges, globalEdges uint64, duration float64) {
	p.ensureRegistered()
	p.finalizeLocal.Set(float64(localEdges))
	p.finalizeGlobal.Set(float64(globalEdges))
	p.finalizeDuration.Observe(duration)
}

// TableMetrics implementation

// RecordTableStats sets the gauges of one table.
func (p *PrometheusCollector) RecordTableStats(table string, entries, stash int, loadFactor float64) {
	p.ensureRegistered()
	p.tableEntries.WithLabelValues(table).Set(float64(entries))
	p.tableStash.WithLabelValues(table).Set(float64(stash))
	p.tableLoadFactor.WithLabelValues(table).Set(loadFactor)
}

// RecordTableResize sets the resize count of one table.
func (p *PrometheusCollector) RecordTableResize(table string, resizes int) {
	p.ensureRegistered()
	p.tableResizes.WithLabelValues(table).Set(float64(resizes))
}

// TransportMetrics implementation

// RecordSend counts one send attempt.
func (p *PrometheusCollector) RecordSend(machine types.ProcID, success bool) {
	p.ensureRegistered()
	result := "failure"
	if success {
		result = "success"
	}
	p.sends.WithLabelValues(machineLabel(machine), result).Inc()
}

// RecordReceive counts one received record and its encoded size.
func (p *PrometheusCollector) RecordReceive(bytes int) {
	p.ensureRegistered()
	p.receivedEdges.Inc()
	p.receivedBytes.Add(float64(bytes))
}

func machineLabel(machine types.ProcID) string {
	return strconv.FormatUint(uint64(machine), 10)
}
