package testing

import (
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/edgeshard/internal/natsutil"
)

// StartEmbeddedNATS starts an embedded NATS server with JetStream enabled for testing.
//
// The server listens on a random port and stores JetStream data in a
// temporary directory. Server and connection are shut down by t.Cleanup.
//
// Parameters:
//   - tb: Testing context for logging and cleanup
//
// Returns:
//   - *server.Server: The embedded NATS server instance
//   - *nats.Conn: Connected NATS client (closed automatically on test completion)
//
// Example:
//
//	func TestReducer(t *testing.T) {
//	    _, nc := shardtest.StartEmbeddedNATS(t)
//	    kv := shardtest.CreateJetStreamKV(t, nc, "reduce")
//	}
func StartEmbeddedNATS(tb testing.TB) (*server.Server, *nats.Conn) {
	tb.Helper()

	ns, err := natsutil.StartEmbedded(natsutil.EmbeddedOptions{
		Port:      -1,
		JetStream: true,
		StoreDir:  tb.TempDir(),
	})
	if err != nil {
		tb.Fatalf("Failed to start embedded NATS server: %v", err)
	}

	tb.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns, Connect(tb, ns.ClientURL())
}

// Connect opens a client connection closed by t.Cleanup.
//
// Cleanups run in reverse order, so connections opened after the server
// close before it shuts down.
//
// Parameters:
//   - tb: Testing context
//   - serverURL: Client URL of a running server
//
// Returns:
//   - *nats.Conn: Connected NATS client
func Connect(tb testing.TB, serverURL string) *nats.Conn {
	tb.Helper()

	nc, err := nats.Connect(serverURL,
		nats.Timeout(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(3),
	)
	if err != nil {
		tb.Fatalf("Failed to connect to NATS server %s: %v", serverURL, err)
	}
	tb.Cleanup(nc.Close)

	return nc
}

// StartEmbeddedNATSCluster starts a 3-node route-connected NATS cluster.
//
// JetStream is disabled; the cluster carries core pub/sub traffic so
// machines connected to different nodes can exchange edges.
//
// Parameters:
//   - tb: Testing context for logging and cleanup
//
// Returns:
//   - []*server.Server: The 3 server instances, all routed to each other
func StartEmbeddedNATSCluster(tb testing.TB) []*server.Server {
	tb.Helper()

	const clusterSize = 3
	servers := make([]*server.Server, 0, clusterSize)
	clusterPorts := make([]int, 0, clusterSize)

	tb.Cleanup(func() { shutdownServers(servers) })

	for i := range clusterSize {
		ns := startClusterNode(tb, i, clusterPorts)
		servers = append(servers, ns)

		addr := ns.ClusterAddr()
		if addr == nil {
			tb.Fatalf("NATS server %d cluster address not available", i)
		}
		clusterPorts = append(clusterPorts, addr.Port)
	}

	waitForClusterFormation(tb, servers)

	return servers
}

// startClusterNode creates and starts one node routed to the earlier ones.
func startClusterNode(tb testing.TB, index int, routePorts []int) *server.Server {
	tb.Helper()

	opts := &server.Options{
		ServerName: fmt.Sprintf("edgeshard-test-%d", index),
		Host:       "127.0.0.1",
		Port:       -1,
		Cluster: server.ClusterOpts{
			Name: "edgeshard-test",
			Host: "127.0.0.1",
			Port: -1,
		},
		Routes: buildClusterRoutes(routePorts),
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		tb.Fatalf("Failed to create NATS server %d: %v", index, err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		tb.Fatalf("NATS server %d not ready", index)
	}

	return ns
}

func buildClusterRoutes(ports []int) []*url.URL {
	routes := make([]*url.URL, 0, len(ports))
	for _, port := range ports {
		routes = append(routes, &url.URL{Scheme: "nats", Host: fmt.Sprintf("127.0.0.1:%d", port)})
	}

	return routes
}

// waitForClusterFormation waits for all servers to connect to each other.
func waitForClusterFormation(tb testing.TB, servers []*server.Server) {
	tb.Helper()

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			tb.Fatal("Cluster failed to form within timeout")
		case <-ticker.C:
			if isClusterReady(servers) {
				return
			}
		}
	}
}

func isClusterReady(servers []*server.Server) bool {
	for _, s := range servers {
		if s.NumRoutes() < len(servers)-1 {
			return false
		}
	}

	return true
}

func shutdownServers(servers []*server.Server) {
	for _, s := range servers {
		if s != nil {
			s.Shutdown()
			s.WaitForShutdown()
		}
	}
}

// CreateJetStreamKV creates an in-memory JetStream KV bucket for testing.
//
// Parameters:
//   - tb: Testing context
//   - nc: NATS connection (from StartEmbeddedNATS)
//   - bucketName: Name of the KV bucket to create
//
// Returns:
//   - jetstream.KeyValue: The created KV bucket interface
func CreateJetStreamKV(tb testing.TB, nc *nats.Conn, bucketName string) jetstream.KeyValue {
	tb.Helper()

	js, err := jetstream.New(nc)
	if err != nil {
		tb.Fatalf("Failed to get JetStream context: %v", err)
	}

	kv, err := js.CreateKeyValue(tb.Context(), jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: "edgeshard test bucket " + bucketName,
		TTL:         time.Minute,
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
	})
	if err != nil {
		tb.Fatalf("Failed to create KV bucket %s: %v", bucketName, err)
	}

	return kv
}
