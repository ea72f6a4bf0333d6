// Package decision implements the edge decision oracle: given an edge, the
// replica vectors of its endpoints and the per-machine load vector, pick the
// machine that will own the edge.
//
// Three families are provided:
//
//   - Random and RandomAmong hash the canonical edge pair onto a machine.
//   - Greedy and GreedyAmong prefer machines that already hold a replica of an
//     endpoint, weighted against load imbalance (PowerGraph oblivious).
//   - HDRF additionally favors replicating the higher-degree endpoint, which
//     keeps low-degree vertices local on power-law graphs.
//
// Ties are always broken by hashing the canonical pair, so a decision is a pure
// function of its inputs and does not depend on edge orientation.
//
// The scorers mutate the replica vectors, the load vector and (for HDRF) the
// degree counters they are handed. Callers serialize access to the per-vertex
// state; the load vector is safe for concurrent use.
package decision
