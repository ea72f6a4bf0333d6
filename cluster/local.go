package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/arloliu/edgeshard/types"
)

// LocalReducer is a collective sum shared by n in-process parties.
//
// Each party calls AllReduceSum once per round; the n-th call of a round
// releases all callers with the total and opens the next round. A caller
// whose context ends still counts toward its round.
type LocalReducer struct {
	parties int

	mu  sync.Mutex
	cur *localRound
}

type localRound struct {
	sum     uint64
	arrived int
	done    chan struct{}
}

var _ types.Reducer = (*LocalReducer)(nil)

// NewLocalReducer creates a reducer for n parties.
//
// Parameters:
//   - n: Number of parties per round
//
// Returns:
//   - *LocalReducer: Reducer shared by all parties
//   - error: ErrNoMachines when n <= 0
func NewLocalReducer(n int) (*LocalReducer, error) {
	if n <= 0 {
		return nil, types.ErrNoMachines
	}

	return &LocalReducer{parties: n, cur: newLocalRound()}, nil
}

func newLocalRound() *localRound {
	return &localRound{done: make(chan struct{})}
}

// AllReduceSum adds local to the current round and waits for the total.
func (r *LocalReducer) AllReduceSum(ctx context.Context, local uint64) (uint64, error) {
	r.mu.Lock()
	round := r.cur
	round.sum += local
	round.arrived++
	if round.arrived == r.parties {
		close(round.done)
		r.cur = newLocalRound()
	}
	r.mu.Unlock()

	select {
	case <-round.done:
		// sum is final once done is closed.
		return round.sum, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w", types.ErrReduceFailed, ctx.Err())
	}
}
