package graph

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/arloliu/edgeshard/internal/logger"
	"github.com/arloliu/edgeshard/types"
)

// ErrStoreFinalized is returned when an edge arrives after Finalize.
var ErrStoreFinalized = errors.New("graph store finalized")

// Store accumulates the edges owned by one machine.
//
// AddLocalEdge is safe for concurrent use. Reads are meant for after
// Finalize but are safe at any time.
type Store struct {
	machine types.ProcID
	logger  types.Logger

	mu        sync.RWMutex
	edges     []types.EdgeRecord
	vertices  *roaring64.Bitmap
	finalized bool
}

var (
	_ types.EdgeSink    = (*Store)(nil)
	_ types.BaseIngress = (*Store)(nil)
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets a custom logger.
func WithStoreLogger(l types.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates an empty store for machine.
func NewStore(machine types.ProcID, opts ...StoreOption) *Store {
	s := &Store{
		machine:  machine,
		logger:   logger.NewNop(),
		vertices: roaring64.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// AddLocalEdge stores rec and adds both endpoints to the local vertex set.
//
// The store keeps rec.Data; callers hand over ownership.
func (s *Store) AddLocalEdge(rec types.EdgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return ErrStoreFinalized
	}

	s.edges = append(s.edges, rec)
	s.vertices.Add(uint64(rec.Source))
	s.vertices.Add(uint64(rec.Target))

	return nil
}

// Finalize seals the store. Later edges are rejected.
func (s *Store) Finalize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return types.ErrAlreadyFinalized
	}
	s.finalized = true
	s.edges = slices.Clip(s.edges)
	s.vertices.RunOptimize()

	s.logger.Info("graph store finalized",
		"machine", s.machine,
		"edges", len(s.edges),
		"vertices", s.vertices.GetCardinality(),
	)

	return nil
}

// Machine returns the machine this store belongs to.
func (s *Store) Machine() types.ProcID { return s.machine }

// Finalized reports whether Finalize has completed.
func (s *Store) Finalized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.finalized
}

// NumEdges returns the number of stored edges.
func (s *Store) NumEdges() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.edges)
}

// NumVertices returns the number of distinct local vertices.
func (s *Store) NumVertices() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.vertices.GetCardinality()
}

// HasVertex reports whether v is an endpoint of a local edge.
func (s *Store) HasVertex(v types.VertexID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.vertices.Contains(uint64(v))
}

// Vertices returns a copy of the local vertex set.
func (s *Store) Vertices() *roaring64.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.vertices.Clone()
}

// Edges returns a copy of the stored edge records in arrival order.
func (s *Store) Edges() []types.EdgeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.edges)
}
