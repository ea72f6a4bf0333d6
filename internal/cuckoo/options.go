package cuckoo

const (
	// DefaultInitialCapacity is the slot count after construction and Clear.
	DefaultInitialCapacity = 128

	// DefaultMaxStash is the stash size that triggers a resize on the next insert.
	DefaultMaxStash = 8

	// DefaultMaxDisplacements bounds the random walk of a single insert.
	DefaultMaxDisplacements = 100

	minCapacity = 8
)

type options struct {
	initialCapacity  int
	maxStash         int
	maxDisplacements int
	seed             uint64
}

// Option configures a Map.
type Option func(*options)

// WithInitialCapacity sets the baseline slot count. Rounded up to a power of two.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		o.initialCapacity = n
	}
}

// WithMaxStash sets the stash threshold that triggers a resize.
func WithMaxStash(n int) Option {
	return func(o *options) {
		o.maxStash = n
	}
}

// WithMaxDisplacements sets the random-walk bound before falling back to the stash.
func WithMaxDisplacements(n int) Option {
	return func(o *options) {
		o.maxDisplacements = n
	}
}

// WithSeed seeds the random walk. Maps with the same seed and the same
// operation sequence produce the same layout.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

func buildOptions(opts []Option) options {
	o := options{
		initialCapacity:  DefaultInitialCapacity,
		maxStash:         DefaultMaxStash,
		maxDisplacements: DefaultMaxDisplacements,
	}
	for _, opt := range opts {
		opt(&o)
	}

	o.initialCapacity = nextPow2(max(o.initialCapacity, minCapacity))
	if o.maxStash < 0 {
		o.maxStash = 0
	}
	if o.maxDisplacements <= 0 {
		o.maxDisplacements = DefaultMaxDisplacements
	}

	return o
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
