package decision

import (
	"sync/atomic"

	"github.com/arloliu/edgeshard/types"
)

// LoadVector counts the edges assigned to each machine.
//
// Counters only grow. Reads of several counters are not a consistent
// snapshot when other goroutines are incrementing concurrently.
type LoadVector struct {
	counts []atomic.Uint64
}

// NewLoadVector creates a zeroed load vector for n machines.
func NewLoadVector(n int) *LoadVector {
	return &LoadVector{counts: make([]atomic.Uint64, n)}
}

// Len returns the number of machines.
func (l *LoadVector) Len() int {
	return len(l.counts)
}

// Get returns the load of machine p.
func (l *LoadVector) Get(p types.ProcID) uint64 {
	return l.counts[p].Load()
}

// Inc adds one edge to machine p.
func (l *LoadVector) Inc(p types.ProcID) {
	l.counts[p].Add(1)
}

// MinMax returns the smallest and largest load.
func (l *LoadVector) MinMax() (uint64, uint64) {
	return minMax(l.Snapshot())
}

// Sum returns the total number of assigned edges.
func (l *LoadVector) Sum() uint64 {
	var sum uint64
	for i := range l.counts {
		sum += l.counts[i].Load()
	}

	return sum
}

// Snapshot copies the current loads.
func (l *LoadVector) Snapshot() []uint64 {
	return l.snapshotInto(make([]uint64, len(l.counts)))
}

func (l *LoadVector) snapshotInto(dst []uint64) []uint64 {
	for i := range l.counts {
		dst[i] = l.counts[i].Load()
	}

	return dst
}

func minMax(loads []uint64) (uint64, uint64) {
	if len(loads) == 0 {
		return 0, 0
	}

	lo, hi := loads[0], loads[0]
	for _, v := range loads[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	return lo, hi
}
