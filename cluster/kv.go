package cluster

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/edgeshard/internal/kvutil"
	"github.com/arloliu/edgeshard/internal/logger"
	"github.com/arloliu/edgeshard/types"
)

const (
	// DefaultReduceBucket is the KV bucket OpenKVReducer uses when none is given.
	DefaultReduceBucket = "edgeshard-reduce"

	// DefaultReduceTTL expires contributions of finished runs.
	DefaultReduceTTL = 10 * time.Minute
)

// KVReducer runs a collective sum through a JetStream KeyValue bucket.
//
// In round r machine p writes its value under "<prefix>.<r>.<p>" and then
// watches "<prefix>.<r>.*" until every machine's key is present. Rounds
// are counted per reducer, so every machine must call AllReduceSum the same
// number of times. The prefix must be unique per run: keys left by an
// earlier run with the same prefix would complete its rounds early.
type KVReducer struct {
	kv          jetstream.KeyValue
	prefix      string
	self        types.ProcID
	numMachines int
	logger      types.Logger

	mu    sync.Mutex
	round uint64
}

var _ types.Reducer = (*KVReducer)(nil)

// KVOption configures a KVReducer.
type KVOption func(*KVReducer)

// WithKVLogger sets a custom logger.
func WithKVLogger(l types.Logger) KVOption {
	return func(r *KVReducer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewKVReducer creates a reducer over an existing bucket.
//
// Parameters:
//   - kv: Bucket shared by every machine
//   - prefix: Run-unique key prefix, no wildcards
//   - cl: Cluster description
//   - opts: Optional WithKVLogger
//
// Returns:
//   - *KVReducer: Reducer for the local machine
//   - error: Error if a collaborator is missing or prefix is invalid
func NewKVReducer(kv jetstream.KeyValue, prefix string, cl types.Cluster, opts ...KVOption) (*KVReducer, error) {
	if kv == nil {
		return nil, fmt.Errorf("%w: bucket is required", types.ErrReduceFailed)
	}
	if cl == nil {
		return nil, types.ErrClusterRequired
	}
	if prefix == "" || strings.ContainsAny(prefix, "*> ") {
		return nil, fmt.Errorf("invalid reduce prefix %q", prefix)
	}

	r := &KVReducer{
		kv:          kv,
		prefix:      prefix,
		self:        cl.ProcID(),
		numMachines: cl.NumMachines(),
		logger:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// OpenKVReducer creates or opens bucket and returns a reducer over it.
//
// Every machine may call this concurrently at startup.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - js: JetStream context
//   - bucket: Bucket name (DefaultReduceBucket when empty)
//   - prefix: Run-unique key prefix
//   - cl: Cluster description
//   - opts: Optional WithKVLogger
//
// Returns:
//   - *KVReducer: Reducer for the local machine
//   - error: Bucket or construction error
func OpenKVReducer(
	ctx context.Context,
	js jetstream.JetStream,
	bucket string,
	prefix string,
	cl types.Cluster,
	opts ...KVOption,
) (*KVReducer, error) {
	if bucket == "" {
		bucket = DefaultReduceBucket
	}

	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "edgeshard collective reductions",
		History:     1,
		TTL:         DefaultReduceTTL,
	}, kvutil.DefaultMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrReduceFailed, err)
	}

	return NewKVReducer(kv, prefix, cl, opts...)
}

// AllReduceSum publishes local for the next round and waits for the sum
// over every machine.
func (r *KVReducer) AllReduceSum(ctx context.Context, local uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	round := r.round
	r.round++

	key := fmt.Sprintf("%s.%d.%d", r.prefix, round, r.self)
	if _, err := r.kv.Put(ctx, key, strconv.AppendUint(nil, local, 10)); err != nil {
		return 0, fmt.Errorf("%w: put %s: %w", types.ErrReduceFailed, key, err)
	}

	values, err := kvutil.Collect(ctx, r.kv, fmt.Sprintf("%s.%d.*", r.prefix, round), r.numMachines)
	if err != nil {
		return 0, fmt.Errorf("%w: round %d: %w", types.ErrReduceFailed, round, err)
	}

	var sum uint64
	for k, v := range values {
		n, err := strconv.ParseUint(string(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: key %s: %w", types.ErrReduceFailed, k, err)
		}
		sum += n
	}

	r.logger.Debug("reduce round complete", "round", round, "machine", r.self, "sum", sum)

	return sum, nil
}
