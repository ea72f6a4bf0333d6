// Package cluster provides cluster descriptions and collective reducers
// for edgeshard ingresses.
//
// Static describes a fixed-size cluster whose machines know their IDs.
// Membership instead leases a free machine ID from a JetStream KeyValue
// bucket, for processes started without one. LocalReducer runs a
// collective sum between goroutines of one process; KVReducer runs it
// between processes through a KeyValue bucket. Both are barriers: a round
// completes only when every machine has contributed.
package cluster
