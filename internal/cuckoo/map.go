package cuckoo

import (
	"maps"
	"math/rand/v2"
	"slices"
)

// numHashes is the number of candidate slots per key.
const numHashes = 3

// hashSeeds are xor'ed into the key before mixing, one per candidate slot.
var hashSeeds = [8]uint64{
	0x6306AA9DFC13C8E7,
	0xA8CD7FBCA2A9FFD4,
	0x40D341EB597ECDDC,
	0x99CFA1168AF8DA7E,
	0x7C55BCC3AF531D42,
	0x1BC49DB0842A21DD,
	0x2181F03B1DEE299F,
	0xD524D92CBFEC63E9,
}

// Key is the set of key types a Map accepts.
type Key interface {
	~uint32 | ~uint64
}

type slot[K Key, V any] struct {
	key  K
	val  V
	used bool
}

// Map is a cuckoo hash map from integer keys to values.
//
// The zero value is not usable; construct with New.
type Map[K Key, V any] struct {
	opts    options
	slots   []slot[K, V]
	mask    uint64
	stash   map[K]*V
	n       int
	resizes int
	rng     *rand.Rand
}

// New creates an empty Map.
//
// Parameters:
//   - opts: Optional configuration (capacity, stash threshold, walk bound, seed)
//
// Returns:
//   - *Map[K, V]: Empty map sized to the initial capacity
func New[K Key, V any](opts ...Option) *Map[K, V] {
	o := buildOptions(opts)

	m := &Map[K, V]{
		opts: o,
		rng:  rand.New(rand.NewPCG(o.seed, o.seed^hashSeeds[7])),
	}
	m.alloc(o.initialCapacity)

	return m
}

// Len returns the number of stored entries.
func (m *Map[K, V]) Len() int {
	return m.n
}

// Cap returns the slot array length (excludes the stash).
func (m *Map[K, V]) Cap() int {
	return len(m.slots)
}

// StashLen returns the number of entries held in the overflow stash.
func (m *Map[K, V]) StashLen() int {
	return len(m.stash)
}

// Resizes returns how many times the slot array has doubled since construction.
func (m *Map[K, V]) Resizes() int {
	return m.resizes
}

// LoadFactor returns Len / (Cap + StashLen).
func (m *Map[K, V]) LoadFactor() float64 {
	return float64(m.n) / float64(len(m.slots)+len(m.stash))
}

// Get returns the value stored under k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	if p := m.find(k); p != nil {
		return *p, true
	}

	var zero V

	return zero, false
}

// Contains reports whether k is stored.
func (m *Map[K, V]) Contains(k K) bool {
	return m.find(k) != nil
}

// Ref returns a pointer to the value under k, inserting a zero value first if
// k is absent.
//
// The pointer stays valid until the next insertion into the map: an insert may
// displace entries between slots or trigger a full rehash.
func (m *Map[K, V]) Ref(k K) *V {
	if p := m.find(k); p != nil {
		return p
	}

	var zero V
	m.insert(k, zero)

	return m.find(k)
}

// Set stores v under k, replacing any previous value.
func (m *Map[K, V]) Set(k K, v V) {
	*m.Ref(k) = v
}

// Erase removes k and reports whether it was present.
func (m *Map[K, V]) Erase(k K) bool {
	for j := range numHashes {
		i := m.index(k, j)
		if m.slots[i].used && m.slots[i].key == k {
			m.slots[i] = slot[K, V]{}
			m.n--

			return true
		}
	}
	if _, ok := m.stash[k]; ok {
		delete(m.stash, k)
		m.n--

		return true
	}

	return false
}

// Clear removes all entries and shrinks the map back to its initial capacity.
func (m *Map[K, V]) Clear() {
	m.alloc(m.opts.initialCapacity)
}

// Reserve grows the slot array so it holds at least n slots.
func (m *Map[K, V]) Reserve(n int) {
	if n <= len(m.slots) {
		return
	}
	m.rebuild(nextPow2(n))
	m.resizes++
}

// Range calls fn for each entry until fn returns false.
//
// fn must not insert into or erase from the map.
func (m *Map[K, V]) Range(fn func(k K, v *V) bool) {
	for i := range m.slots {
		if !m.slots[i].used {
			continue
		}
		if !fn(m.slots[i].key, &m.slots[i].val) {
			return
		}
	}
	for k, p := range m.stash {
		if !fn(k, p) {
			return
		}
	}
}

func (m *Map[K, V]) alloc(capacity int) {
	m.slots = make([]slot[K, V], capacity)
	m.mask = uint64(capacity - 1)
	m.stash = make(map[K]*V)
	m.n = 0
}

func (m *Map[K, V]) index(k K, j int) uint64 {
	return mix(hashSeeds[j]^uint64(k)) & m.mask
}

func (m *Map[K, V]) find(k K) *V {
	for j := range numHashes {
		i := m.index(k, j)
		if m.slots[i].used && m.slots[i].key == k {
			return &m.slots[i].val
		}
	}

	return m.stash[k]
}

// insert adds an absent key.
func (m *Map[K, V]) insert(k K, v V) {
	if len(m.stash) > m.opts.maxStash {
		m.rebuild(len(m.slots) * 2)
		m.resizes++
	}
	m.place(k, v)
	m.n++
}

// place puts k into one of its candidate slots, evicting occupants along a
// bounded random walk. Whatever is left homeless at the end goes to the stash.
func (m *Map[K, V]) place(k K, v V) {
	for range m.opts.maxDisplacements {
		for j := range numHashes {
			i := m.index(k, j)
			if !m.slots[i].used {
				m.slots[i] = slot[K, V]{key: k, val: v, used: true}
				return
			}
		}

		i := m.index(k, m.rng.IntN(numHashes))
		m.slots[i].key, k = k, m.slots[i].key
		m.slots[i].val, v = v, m.slots[i].val
	}

	p := new(V)
	*p = v
	m.stash[k] = p
}

// rebuild rehashes every live entry into a fresh slot array of the given
// capacity, doubling again until the stash fits under its threshold.
func (m *Map[K, V]) rebuild(capacity int) {
	oldSlots, oldStash, n := m.slots, m.stash, m.n
	stashKeys := slices.Sorted(maps.Keys(oldStash))

	for {
		m.alloc(capacity)
		for i := range oldSlots {
			if oldSlots[i].used {
				m.place(oldSlots[i].key, oldSlots[i].val)
			}
		}
		for _, k := range stashKeys {
			m.place(k, *oldStash[k])
		}
		if len(m.stash) <= m.opts.maxStash {
			break
		}
		capacity *= 2
	}

	m.n = n
}

// mix is Bob Jenkins' 64-bit integer mixing function.
func mix(s uint64) uint64 {
	s += s << 12
	s ^= s >> 22
	s += s << 4
	s ^= s >> 9
	s += s << 10
	s ^= s >> 2
	s += s << 7
	s ^= s >> 12

	return s
}
