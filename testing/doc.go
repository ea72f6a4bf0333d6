// Package testing provides test utilities for edgeshard.
//
// It sets up embedded NATS servers for transport and reducer integration
// tests, in the spirit of net/http/httptest.
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - StartEmbeddedNATSCluster: 3-node route-connected NATS cluster
//   - Connect: Extra client connection, one per simulated machine
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewTestLogger: Logger that writes through the test log
//
// Example usage:
//
//	import (
//	    "testing"
//	    shardtest "github.com/arloliu/edgeshard/testing"
//	)
//
//	func TestMyTransport(t *testing.T) {
//	    ns, nc := shardtest.StartEmbeddedNATS(t)
//	    peer := shardtest.Connect(t, ns.ClientURL())
//	    // Use nc and peer as two machines
//	}
package testing
