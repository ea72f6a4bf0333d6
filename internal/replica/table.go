package replica

import (
	"sync"

	"github.com/arloliu/edgeshard/internal/cuckoo"
	"github.com/arloliu/edgeshard/internal/hash"
	"github.com/arloliu/edgeshard/types"
	"github.com/bits-and-blooms/bitset"
)

// DefaultStripes is the stripe count used when none is configured.
const DefaultStripes = 64

// Entry exposes one vertex's state inside Pair.
type Entry struct {
	// Replicas has bit i set when the vertex is known to live on machine i.
	Replicas *bitset.BitSet

	// Degree is the vertex's partial degree. Nil unless the table tracks degrees.
	Degree *uint64
}

// Stats summarizes one of the table's maps across all stripes.
type Stats struct {
	Entries    int
	Capacity   int
	Stash      int
	Resizes    int
	LoadFactor float64
}

type stripe struct {
	mu       sync.Mutex
	replicas *cuckoo.Map[types.VertexID, bitset.BitSet]
	degrees  *cuckoo.Map[types.VertexID, uint64]
}

// Table is the striped replica/degree table.
type Table struct {
	stripes []*stripe
	mask    uint64
	degrees bool
	mapOpts []cuckoo.Option
}

type options struct {
	stripes int
	degrees bool
	mapOpts []cuckoo.Option
}

// Option configures a Table.
type Option func(*options)

// WithStripes sets the number of lock stripes. Rounded up to a power of two;
// 1 serializes every update behind one lock.
func WithStripes(n int) Option {
	return func(o *options) {
		o.stripes = n
	}
}

// WithDegrees enables per-vertex degree tracking.
func WithDegrees() Option {
	return func(o *options) {
		o.degrees = true
	}
}

// WithMapOptions passes options to every underlying cuckoo map.
func WithMapOptions(opts ...cuckoo.Option) Option {
	return func(o *options) {
		o.mapOpts = append(o.mapOpts, opts...)
	}
}

// New creates an empty Table.
//
// Parameters:
//   - opts: Optional configuration (stripes, degree tracking, map tuning)
//
// Returns:
//   - *Table: Empty table
func New(opts ...Option) *Table {
	o := options{stripes: DefaultStripes}
	for _, opt := range opts {
		opt(&o)
	}

	n := 1
	for n < o.stripes {
		n <<= 1
	}

	t := &Table{
		stripes: make([]*stripe, n),
		mask:    uint64(n - 1),
		degrees: o.degrees,
		mapOpts: o.mapOpts,
	}
	for i := range t.stripes {
		t.stripes[i] = t.newStripe()
	}

	return t
}

func (t *Table) newStripe() *stripe {
	s := &stripe{replicas: cuckoo.New[types.VertexID, bitset.BitSet](t.mapOpts...)}
	if t.degrees {
		s.degrees = cuckoo.New[types.VertexID, uint64](t.mapOpts...)
	}

	return s
}

// Stripes returns the number of lock stripes.
func (t *Table) Stripes() int {
	return len(t.stripes)
}

// TracksDegrees reports whether the table keeps per-vertex degrees.
func (t *Table) TracksDegrees() bool {
	return t.degrees
}

func (t *Table) stripeIndex(v types.VertexID) int {
	return int(hash.Vertex(v) & t.mask)
}

// Pair runs fn with exclusive access to the entries of src and dst, creating
// empty entries for vertices seen for the first time.
//
// Both stripes are locked in ascending index order. The pointers handed to fn
// must not escape it. When src == dst both entries alias the same state.
//
// Parameters:
//   - src: Source vertex
//   - dst: Target vertex
//   - fn: Read-modify-write step over both entries
func (t *Table) Pair(src, dst types.VertexID, fn func(src, dst Entry)) {
	si, di := t.stripeIndex(src), t.stripeIndex(dst)
	lo, hi := min(si, di), max(si, di)

	t.stripes[lo].mu.Lock()
	defer t.stripes[lo].mu.Unlock()
	if hi != lo {
		t.stripes[hi].mu.Lock()
		defer t.stripes[hi].mu.Unlock()
	}

	ss, ds := t.stripes[si], t.stripes[di]

	// Creating dst may move src's slot, so make both exist before taking pointers.
	ss.replicas.Ref(src)
	ds.replicas.Ref(dst)
	srcEntry := Entry{Replicas: ss.replicas.Ref(src)}
	dstEntry := Entry{Replicas: ds.replicas.Ref(dst)}

	if t.degrees {
		ss.degrees.Ref(src)
		ds.degrees.Ref(dst)
		srcEntry.Degree = ss.degrees.Ref(src)
		dstEntry.Degree = ds.degrees.Ref(dst)
	}

	fn(srcEntry, dstEntry)
}

// Replicas returns a copy of v's replica vector.
func (t *Table) Replicas(v types.VertexID) (*bitset.BitSet, bool) {
	s := t.stripes[t.stripeIndex(v)]
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.replicas.Get(v)
	if !ok {
		return nil, false
	}

	return b.Clone(), true
}

// Degree returns v's partial degree. Always false when degrees are not tracked.
func (t *Table) Degree(v types.VertexID) (uint64, bool) {
	if !t.degrees {
		return 0, false
	}

	s := t.stripes[t.stripeIndex(v)]
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.degrees.Get(v)
}

// Len returns the number of vertices in the table.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.stripes {
		s.mu.Lock()
		n += s.replicas.Len()
		s.mu.Unlock()
	}

	return n
}

// ReplicaStats summarizes the replica maps.
func (t *Table) ReplicaStats() Stats {
	return t.collect(func(s *stripe) mapStats { return s.replicas })
}

// DegreeStats summarizes the degree maps. Zero when degrees are not tracked.
func (t *Table) DegreeStats() Stats {
	if !t.degrees {
		return Stats{}
	}

	return t.collect(func(s *stripe) mapStats { return s.degrees })
}

type mapStats interface {
	Len() int
	Cap() int
	StashLen() int
	Resizes() int
}

func (t *Table) collect(pick func(*stripe) mapStats) Stats {
	var st Stats
	for _, s := range t.stripes {
		s.mu.Lock()
		m := pick(s)
		st.Entries += m.Len()
		st.Capacity += m.Cap()
		st.Stash += m.StashLen()
		st.Resizes += m.Resizes()
		s.mu.Unlock()
	}
	if slots := st.Capacity + st.Stash; slots > 0 {
		st.LoadFactor = float64(st.Entries) / float64(slots)
	}

	return st
}

// Clear drops every entry and releases storage back to the initial capacity.
func (t *Table) Clear() {
	for _, s := range t.stripes {
		s.mu.Lock()
		s.replicas.Clear()
		if s.degrees != nil {
			s.degrees.Clear()
		}
		s.mu.Unlock()
	}
}
