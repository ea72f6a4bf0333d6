package graph

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/bits-and-blooms/bitset"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/edgeshard/internal/hash"
	"github.com/arloliu/edgeshard/types"
)

// MirrorIndex maps every vertex to the machines holding a replica of it.
//
// Machines may be added concurrently.
type MirrorIndex struct {
	numMachines int
	mirrors     *xsync.Map[types.VertexID, *mirrorSet]
	all         *roaring64.Bitmap
	allMu       sync.Mutex
}

type mirrorSet struct {
	mu       sync.Mutex
	machines *bitset.BitSet
}

// Quality summarizes a partitioning.
type Quality struct {
	// Vertices is the number of distinct vertices across all machines.
	Vertices int

	// Replicas is the total number of vertex replicas.
	Replicas uint64

	// ReplicationFactor is Replicas / Vertices; 1.0 means no vertex is cut.
	ReplicationFactor float64

	// MaxMirrors is the largest number of machines sharing one vertex.
	MaxMirrors int

	// LoadImbalance is the max machine edge count over the mean.
	LoadImbalance float64
}

// NewMirrorIndex creates an empty index for n machines.
//
// Parameters:
//   - n: Number of machines
//
// Returns:
//   - *MirrorIndex: Empty index
//   - error: ErrNoMachines when n <= 0
func NewMirrorIndex(n int) (*MirrorIndex, error) {
	if n <= 0 {
		return nil, types.ErrNoMachines
	}

	return &MirrorIndex{
		numMachines: n,
		mirrors:     xsync.NewMap[types.VertexID, *mirrorSet](),
		all:         roaring64.New(),
	}, nil
}

// Add records that machine holds a replica of every vertex in vertices.
//
// Parameters:
//   - machine: Machine owning the replicas
//   - vertices: Local vertex set of that machine
//
// Returns:
//   - error: ErrUnknownMachine when machine is out of range
func (m *MirrorIndex) Add(machine types.ProcID, vertices *roaring64.Bitmap) error {
	if !machine.Valid(m.numMachines) {
		return fmt.Errorf("%w: %d of %d", types.ErrUnknownMachine, machine, m.numMachines)
	}

	it := vertices.Iterator()
	for it.HasNext() {
		v := types.VertexID(it.Next())

		set, ok := m.mirrors.Load(v)
		if !ok {
			set, _ = m.mirrors.LoadOrStore(v, &mirrorSet{machines: bitset.New(uint(m.numMachines))}) //nolint:gosec // positive
		}

		set.mu.Lock()
		set.machines.Set(uint(machine))
		set.mu.Unlock()
	}

	m.allMu.Lock()
	m.all.Or(vertices)
	m.allMu.Unlock()

	return nil
}

// AddStore adds the vertex set of a machine's store.
func (m *MirrorIndex) AddStore(s *Store) error {
	return m.Add(s.Machine(), s.Vertices())
}

// Machines returns the machines holding v, in ascending order.
func (m *MirrorIndex) Machines(v types.VertexID) []types.ProcID {
	set, ok := m.mirrors.Load(v)
	if !ok {
		return nil
	}

	set.mu.Lock()
	defer set.mu.Unlock()

	out := make([]types.ProcID, 0, set.machines.Count())
	for i, ok := set.machines.NextSet(0); ok; i, ok = set.machines.NextSet(i + 1) {
		out = append(out, types.ProcID(i)) //nolint:gosec // i < numMachines
	}

	return out
}

// Master picks the machine that owns the master copy of v: one of its
// mirrors, chosen by vertex hash so every machine agrees without talking.
//
// Returns:
//   - types.ProcID: Master machine
//   - bool: false if v is unknown
func (m *MirrorIndex) Master(v types.VertexID) (types.ProcID, bool) {
	machines := m.Machines(v)
	if len(machines) == 0 {
		return types.InvalidProcID, false
	}

	return machines[hash.Vertex(v)%uint64(len(machines))], true
}

// NumVertices returns the number of distinct vertices seen.
func (m *MirrorIndex) NumVertices() int {
	return m.mirrors.Size()
}

// Vertices returns a copy of the global vertex set.
func (m *MirrorIndex) Vertices() *roaring64.Bitmap {
	m.allMu.Lock()
	defer m.allMu.Unlock()

	return m.all.Clone()
}

// Quality computes replication statistics. loads are the per-machine edge
// counts; a nil loads leaves LoadImbalance at 0.
func (m *MirrorIndex) Quality(loads []uint64) Quality {
	var q Quality

	m.mirrors.Range(func(_ types.VertexID, set *mirrorSet) bool {
		set.mu.Lock()
		c := int(set.machines.Count()) //nolint:gosec // bounded by numMachines
		set.mu.Unlock()

		q.Vertices++
		q.Replicas += uint64(c) //nolint:gosec // positive
		q.MaxMirrors = max(q.MaxMirrors, c)

		return true
	})

	if q.Vertices > 0 {
		q.ReplicationFactor = float64(q.Replicas) / float64(q.Vertices)
	}
	q.LoadImbalance = LoadImbalance(loads)

	return q
}

// LoadImbalance returns max(loads) / mean(loads), or 0 when loads are empty
// or all zero.
func LoadImbalance(loads []uint64) float64 {
	if len(loads) == 0 {
		return 0
	}

	var sum, peak uint64
	for _, l := range loads {
		sum += l
		peak = max(peak, l)
	}
	if sum == 0 {
		return 0
	}

	return float64(peak) * float64(len(loads)) / float64(sum)
}
