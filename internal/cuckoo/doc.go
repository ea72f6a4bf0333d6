// Package cuckoo implements an open-addressing cuckoo hash map for integer keys.
//
// Each key has three candidate slots computed by independent mixing functions.
// Every key value is storable; slots carry their own occupancy flag. When all
// candidates are taken, an occupant is evicted into
// one of its own candidates (a bounded random walk); keys that still cannot be
// placed go into a small overflow stash. The table doubles and fully rehashes
// whenever the stash outgrows its threshold.
//
// A Map is not safe for concurrent use. See internal/replica for the striped,
// lock-protected tables used by the ingress.
package cuckoo
