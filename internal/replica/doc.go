// Package replica holds the per-vertex state the partitioning oracle reads and
// mutates: a replica presence bit vector per vertex and, optionally, the
// vertex's partial degree.
//
// Vertices are spread over power-of-two lock stripes. Pair locks the stripes of
// both endpoints of an edge in a fixed order, so concurrent loaders never
// deadlock and never lose an update to a shared vertex.
package replica
