package decision

import (
	"fmt"
	"math"

	"github.com/arloliu/edgeshard/internal/hash"
	"github.com/arloliu/edgeshard/types"
	"github.com/bits-and-blooms/bitset"
)

const (
	// balanceEpsilon keeps the balance term finite when all loads are equal.
	balanceEpsilon = 1.0

	// tieTolerance is the score distance under which two machines tie.
	tieTolerance = 1e-5
)

// Policy holds the scoring flags shared by Greedy and HDRF.
type Policy struct {
	// UseHash counts machine (v mod n) as holding a replica of v.
	UseHash bool

	// UseRecent resets both endpoint replica vectors before recording the
	// winner, so only the latest placement is remembered.
	UseRecent bool
}

// Random places the edge by hashing its canonical pair modulo n.
//
// Parameters:
//   - src: Source vertex
//   - dst: Target vertex
//   - n: Number of machines, must be positive
//
// Returns:
//   - types.ProcID: Owning machine in [0, n)
func Random(src, dst types.VertexID, n int) types.ProcID {
	if n <= 0 {
		panic(fmt.Errorf("random placement over %d machines: %w", n, types.ErrNoCandidates))
	}

	return types.ProcID(hash.Edge(src, dst) % uint64(n))
}

// RandomAmong places the edge on candidates[hash(canonical pair) mod len].
func RandomAmong(src, dst types.VertexID, candidates []types.ProcID) types.ProcID {
	if len(candidates) == 0 {
		panic(fmt.Errorf("random placement: %w", types.ErrNoCandidates))
	}

	return candidates[hash.Edge(src, dst)%uint64(len(candidates))]
}

// Greedy scores every machine by load balance plus one point per endpoint it
// already replicates, and places the edge on the best one.
//
// The winner's bit is set in both replica vectors and its load is incremented.
//
// Parameters:
//   - src: Source vertex
//   - dst: Target vertex
//   - srcRep: Replica vector of src, updated in place
//   - dstRep: Replica vector of dst, updated in place
//   - loads: Per-machine load vector, updated in place
//   - p: Scoring flags
//
// Returns:
//   - types.ProcID: Owning machine in [0, loads.Len())
func Greedy(src, dst types.VertexID, srcRep, dstRep *bitset.BitSet, loads *LoadVector, p Policy) types.ProcID {
	return decide(src, dst, srcRep, dstRep, nil, loads, p, greedyBonus)
}

// GreedyAmong is Greedy restricted to the given candidate machines. The
// balance term is still normalized over every machine's load.
//
// Panics with types.ErrNoCandidates when candidates is empty and with
// types.ErrProcOutOfRange when a candidate is not a valid machine.
func GreedyAmong(
	src, dst types.VertexID,
	srcRep, dstRep *bitset.BitSet,
	candidates []types.ProcID,
	loads *LoadVector,
	p Policy,
) types.ProcID {
	if len(candidates) == 0 {
		panic(fmt.Errorf("greedy placement: %w", types.ErrNoCandidates))
	}

	return decide(src, dst, srcRep, dstRep, candidates, loads, p, greedyBonus)
}

// HDRF places the edge by High-Degree Replicated First scoring.
//
// With partial degrees d(src)+1 and d(dst)+1 normalized to fu and fv, a
// machine holding src earns 1+(1-fu) and one holding dst earns 1+(1-fv), plus
// the balance term. Replicating the higher-degree endpoint therefore costs less.
// Both degree counters are incremented after the decision.
//
// Parameters:
//   - src: Source vertex
//   - dst: Target vertex
//   - srcRep: Replica vector of src, updated in place
//   - dstRep: Replica vector of dst, updated in place
//   - srcDeg: Partial degree of src, incremented
//   - dstDeg: Partial degree of dst, incremented
//   - loads: Per-machine load vector, updated in place
//   - p: Scoring flags
//
// Returns:
//   - types.ProcID: Owning machine in [0, loads.Len())
func HDRF(
	src, dst types.VertexID,
	srcRep, dstRep *bitset.BitSet,
	srcDeg, dstDeg *uint64,
	loads *LoadVector,
	p Policy,
) types.ProcID {
	degU := float64(*srcDeg + 1)
	degV := float64(*dstDeg + 1)
	fu := degU / (degU + degV)
	fv := degV / (degU + degV)

	bonus := func(srcHit, dstHit bool) float64 {
		var s float64
		if srcHit {
			s += 1 + (1 - fu)
		}
		if dstHit {
			s += 1 + (1 - fv)
		}

		return s
	}

	winner := decide(src, dst, srcRep, dstRep, nil, loads, p, bonus)
	*srcDeg++
	*dstDeg++

	return winner
}

func greedyBonus(srcHit, dstHit bool) float64 {
	var s float64
	if srcHit {
		s++
	}
	if dstHit {
		s++
	}

	return s
}

// decide scores candidates (all machines when nil), picks the winner by
// canonical-pair hash among ties and records it in the replica vectors and
// load vector.
func decide(
	src, dst types.VertexID,
	srcRep, dstRep *bitset.BitSet,
	candidates []types.ProcID,
	loads *LoadVector,
	p Policy,
	bonus func(srcHit, dstHit bool) float64,
) types.ProcID {
	n := loads.Len()
	if n == 0 {
		panic(fmt.Errorf("placement of edge %d-%d: %w", src, dst, types.ErrNoCandidates))
	}

	cur := loads.snapshotInto(make([]uint64, n))
	lo, hi := minMax(cur)
	denom := balanceEpsilon + float64(hi-lo)

	count := n
	if candidates != nil {
		count = len(candidates)
	}

	scores := make([]float64, count)
	best := math.Inf(-1)
	for j := range count {
		proc := types.ProcID(j)
		if candidates != nil {
			proc = candidates[j]
		}
		if !proc.Valid(n) {
			panic(fmt.Errorf("candidate %d of %d machines: %w", proc, n, types.ErrProcOutOfRange))
		}

		balance := float64(hi-cur[proc]) / denom
		srcHit := srcRep.Test(uint(proc)) || (p.UseHash && uint64(src)%uint64(n) == uint64(proc))
		dstHit := dstRep.Test(uint(proc)) || (p.UseHash && uint64(dst)%uint64(n) == uint64(proc))

		scores[j] = balance + bonus(srcHit, dstHit)
		best = max(best, scores[j])
	}

	tied := make([]types.ProcID, 0, count)
	for j, s := range scores {
		if math.Abs(s-best) < tieTolerance {
			if candidates != nil {
				tied = append(tied, candidates[j])
			} else {
				tied = append(tied, types.ProcID(j))
			}
		}
	}

	winner := tied[hash.Edge(src, dst)%uint64(len(tied))]
	if !winner.Valid(n) {
		panic(fmt.Errorf("winner %d of %d machines: %w", winner, n, types.ErrProcOutOfRange))
	}

	if p.UseRecent {
		srcRep.ClearAll()
		dstRep.ClearAll()
	}
	srcRep.Set(uint(winner))
	dstRep.Set(uint(winner))
	loads.Inc(winner)

	return winner
}
