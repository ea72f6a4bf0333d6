// Package graph holds the per-machine result of edge ingress.
//
// Store is the base ingress of one machine: it accumulates the edge records
// delivered to it and tracks the local vertex set. MirrorIndex combines the
// vertex sets of every machine into the global vertex to machines mapping
// and reports partition quality.
package graph
