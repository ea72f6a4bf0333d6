// Package generator produces synthetic edge streams for the ingress simulator.
package generator

import (
	"fmt"
	"math/rand/v2"

	"github.com/arloliu/edgeshard/cmd/ingress-sim/internal/config"
	"github.com/arloliu/edgeshard/types"
)

// Generator yields one edge per call. Implementations are not safe for
// concurrent use; give each loader its own stream.
type Generator interface {
	Next() (src, dst types.VertexID)
}

// New creates the generator named by cfg.Distribution.
//
// Generators with the same seed and stream yield the same sequence.
//
// Parameters:
//   - cfg: Graph configuration (vertex space, distribution, seed)
//   - stream: Stream number, typically the loader index
//
// Returns:
//   - Generator: Edge generator
//   - error: Unknown distribution or bad parameters
func New(cfg config.GraphConfig, stream uint64) (Generator, error) {
	if cfg.Vertices < 2 {
		return nil, fmt.Errorf("vertex space too small: %d", cfg.Vertices)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, stream))

	switch cfg.Distribution {
	case "uniform":
		return &Uniform{rng: rng, vertices: cfg.Vertices}, nil
	case "powerlaw":
		if cfg.Exponent <= 1 {
			return nil, fmt.Errorf("powerlaw exponent must be > 1, got %v", cfg.Exponent)
		}

		return &PowerLaw{
			rng:      rng,
			zipf:     rand.NewZipf(rng, cfg.Exponent, 1, cfg.Vertices-1),
			vertices: cfg.Vertices,
		}, nil
	default:
		return nil, fmt.Errorf("unknown distribution: %s", cfg.Distribution)
	}
}

// Uniform picks both endpoints uniformly from the vertex space.
type Uniform struct {
	rng      *rand.Rand
	vertices uint64
}

// Next returns an edge without self-loops.
func (g *Uniform) Next() (types.VertexID, types.VertexID) {
	src := g.rng.Uint64N(g.vertices)
	dst := g.rng.Uint64N(g.vertices - 1)
	if dst >= src {
		dst++
	}

	return types.VertexID(src), types.VertexID(dst)
}

// PowerLaw draws sources from a Zipf distribution, so a few hub vertices
// appear in most edges, and targets uniformly.
type PowerLaw struct {
	rng      *rand.Rand
	zipf     *rand.Zipf
	vertices uint64
}

// Next returns an edge without self-loops.
func (g *PowerLaw) Next() (types.VertexID, types.VertexID) {
	src := g.zipf.Uint64()
	dst := g.rng.Uint64N(g.vertices - 1)
	if dst >= src {
		dst++
	}

	return types.VertexID(src), types.VertexID(dst)
}
