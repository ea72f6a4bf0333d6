package cluster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/edgeshard/internal/kvutil"
	"github.com/arloliu/edgeshard/internal/logger"
	"github.com/arloliu/edgeshard/internal/natsutil"
	"github.com/arloliu/edgeshard/types"
)

const (
	// DefaultMemberBucket is the KV bucket OpenMembership uses when none is given.
	DefaultMemberBucket = "edgeshard-members"

	// DefaultMemberTTL is the lease of a claimed machine ID.
	DefaultMemberTTL = 30 * time.Second
)

var (
	// ErrNoFreeMachine is returned when every machine ID of the cluster is claimed.
	ErrNoFreeMachine = errors.New("no free machine ID")

	// ErrReleased is returned by Release on a released membership.
	ErrReleased = errors.New("membership already released")
)

// Membership is a machine ID claimed from a KV bucket.
//
// Processes that start without a preassigned ID call ClaimMachine; each
// gets a distinct ProcID in [0, n). The claim is a lease: it is renewed at
// a third of the bucket TTL until Release.
type Membership struct {
	kv          jetstream.KeyValue
	key         string
	self        types.ProcID
	numMachines int
	ttl         time.Duration
	logger      types.Logger

	mu       sync.Mutex
	released bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ types.Cluster = (*Membership)(nil)

// MemberOption configures ClaimMachine.
type MemberOption func(*memberOptions)

type memberOptions struct {
	ttl    time.Duration
	logger types.Logger
}

// WithMemberTTL sets the lease renewal period basis. It should match the
// bucket TTL.
func WithMemberTTL(ttl time.Duration) MemberOption {
	return func(o *memberOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithMemberLogger sets a custom logger.
func WithMemberLogger(l types.Logger) MemberOption {
	return func(o *memberOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// ClaimMachine claims the lowest free machine ID of an n-machine cluster.
//
// IDs are tried in order with an atomic KV create of "<prefix>.<id>", so
// concurrent claimers never get the same ID.
//
// Parameters:
//   - ctx: Context for the claim and the renewal writes
//   - kv: Bucket shared by every process of the run
//   - prefix: Run-unique key prefix, no wildcards
//   - n: Number of machines
//   - opts: Optional WithMemberTTL, WithMemberLogger
//
// Returns:
//   - *Membership: Claimed membership with renewal running
//   - error: ErrNoMachines, ErrNoFreeMachine, context or KV error
func ClaimMachine(
	ctx context.Context,
	kv jetstream.KeyValue,
	prefix string,
	n int,
	opts ...MemberOption,
) (*Membership, error) {
	if n <= 0 {
		return nil, types.ErrNoMachines
	}
	if kv == nil {
		return nil, errors.New("member bucket is required")
	}
	if prefix == "" || strings.ContainsAny(prefix, "*> ") {
		return nil, fmt.Errorf("invalid member prefix %q", prefix)
	}

	o := memberOptions{ttl: DefaultMemberTTL, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	for id := range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := prefix + "." + strconv.Itoa(id)
		_, err := kv.Create(ctx, key, []byte(time.Now().Format(time.RFC3339)))
		if errors.Is(err, jetstream.ErrKeyExists) {
			continue
		}
		if err != nil {
			return nil, natsutil.Classify("claim "+key, err)
		}

		m := &Membership{
			kv:          kv,
			key:         key,
			self:        types.ProcID(id), //nolint:gosec // bounded by n
			numMachines: n,
			ttl:         o.ttl,
			logger:      o.logger,
			stopCh:      make(chan struct{}),
			doneCh:      make(chan struct{}),
		}
		go m.renewLoop(ctx)

		o.logger.Info("machine ID claimed", "machine", id, "machines", n, "key", key)

		return m, nil
	}

	return nil, fmt.Errorf("%w: all %d claimed under %s", ErrNoFreeMachine, n, prefix)
}

// OpenMembership creates or opens bucket and claims a machine ID in it.
//
// Parameters:
//   - ctx: Context for bucket creation and the claim
//   - js: JetStream context
//   - bucket: Bucket name (DefaultMemberBucket when empty)
//   - prefix: Run-unique key prefix
//   - n: Number of machines
//   - opts: Optional WithMemberTTL, WithMemberLogger
//
// Returns:
//   - *Membership: Claimed membership
//   - error: Bucket or claim error
func OpenMembership(
	ctx context.Context,
	js jetstream.JetStream,
	bucket string,
	prefix string,
	n int,
	opts ...MemberOption,
) (*Membership, error) {
	if bucket == "" {
		bucket = DefaultMemberBucket
	}

	o := memberOptions{ttl: DefaultMemberTTL}
	for _, opt := range opts {
		opt(&o)
	}

	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "edgeshard machine ID leases",
		History:     1,
		TTL:         o.ttl,
	}, kvutil.DefaultMaxRetries)
	if err != nil {
		return nil, err
	}

	return ClaimMachine(ctx, kv, prefix, n, opts...)
}

// NumMachines returns the cluster size.
func (m *Membership) NumMachines() int { return m.numMachines }

// ProcID returns the claimed machine ID.
func (m *Membership) ProcID() types.ProcID { return m.self }

func (m *Membership) renewLoop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if _, err := m.kv.Put(ctx, m.key, []byte(time.Now().Format(time.RFC3339))); err != nil {
				m.logger.Warn("failed to renew machine ID", "machine", m.self, "error", err)
			}
		}
	}
}

// Release stops renewal and frees the machine ID for reuse.
//
// Parameters:
//   - ctx: Context for the delete
//
// Returns:
//   - error: ErrReleased on a second call, context or KV error
func (m *Membership) Release(ctx context.Context) error {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return ErrReleased
	}
	m.released = true
	close(m.stopCh)
	m.mu.Unlock()

	select {
	case <-m.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := m.kv.Delete(ctx, m.key); err != nil {
		return natsutil.Classify("release "+m.key, err)
	}
	m.logger.Info("machine ID released", "machine", m.self)

	return nil
}
