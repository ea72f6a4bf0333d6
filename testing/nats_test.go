package testing

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.NotNil(t, ns)
	require.True(t, nc.IsConnected())
	require.True(t, ns.JetStreamEnabled())
}

func TestStartEmbeddedNATS_Parallel(t *testing.T) {
	t.Parallel()

	for range 4 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestStartEmbeddedNATSCluster(t *testing.T) {
	servers := StartEmbeddedNATSCluster(t)
	require.Len(t, servers, 3)

	sub := Connect(t, servers[2].ClientURL())
	pub := Connect(t, servers[0].ClientURL())

	s, err := sub.SubscribeSync("edges.cross")
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	// Route interest propagates asynchronously.
	require.Eventually(t, func() bool {
		if err := pub.Publish("edges.cross", []byte("x")); err != nil {
			return false
		}
		_, err := s.NextMsg(50 * time.Millisecond)

		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCreateJetStreamKV(t *testing.T) {
	_, nc := StartEmbeddedNATS(t)

	kv := CreateJetStreamKV(t, nc, "edgeshard-test")
	require.Equal(t, "edgeshard-test", kv.Bucket())

	_, err := kv.Put(t.Context(), "reduce.0.1", []byte("42"))
	require.NoError(t, err)

	entry, err := kv.Get(t.Context(), "reduce.0.1")
	require.NoError(t, err)
	require.Equal(t, []byte("42"), entry.Value())

	_, err = kv.Get(t.Context(), "missing")
	require.ErrorIs(t, err, jetstream.ErrKeyNotFound)
}
