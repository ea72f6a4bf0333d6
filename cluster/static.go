package cluster

import (
	"fmt"

	"github.com/arloliu/edgeshard/types"
)

// Static is a fixed cluster description.
type Static struct {
	numMachines int
	self        types.ProcID
}

var _ types.Cluster = (*Static)(nil)

// NewStatic describes machine self of an n-machine cluster.
//
// Parameters:
//   - n: Number of machines
//   - self: Local machine, in [0, n)
//
// Returns:
//   - *Static: Cluster description
//   - error: ErrNoMachines or ErrUnknownMachine
func NewStatic(n int, self types.ProcID) (*Static, error) {
	if n <= 0 {
		return nil, types.ErrNoMachines
	}
	if !self.Valid(n) {
		return nil, fmt.Errorf("%w: %d of %d", types.ErrUnknownMachine, self, n)
	}

	return &Static{numMachines: n, self: self}, nil
}

// NewStaticGroup describes every machine of an n-machine cluster, for
// running all machines in one process.
func NewStaticGroup(n int) ([]*Static, error) {
	if n <= 0 {
		return nil, types.ErrNoMachines
	}

	group := make([]*Static, n)
	for i := range group {
		group[i] = &Static{numMachines: n, self: types.ProcID(i)} //nolint:gosec // i < n
	}

	return group, nil
}

// NumMachines returns the cluster size.
func (s *Static) NumMachines() int { return s.numMachines }

// ProcID returns the local machine.
func (s *Static) ProcID() types.ProcID { return s.self }
