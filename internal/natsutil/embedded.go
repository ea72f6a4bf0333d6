package natsutil

import (
	"errors"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// ErrServerNotReady is returned when an embedded server does not accept
// connections in time.
var ErrServerNotReady = errors.New("embedded NATS server not ready")

// EmbeddedOptions configures StartEmbedded.
type EmbeddedOptions struct {
	// Port to listen on; -1 picks a random free port.
	Port int

	// JetStream enables JetStream (needed by the KV reducer).
	JetStream bool

	// StoreDir is the JetStream storage directory. Required with JetStream.
	StoreDir string

	// ReadyTimeout bounds the wait for the server to accept connections.
	ReadyTimeout time.Duration
}

// StartEmbedded runs an in-process NATS server on 127.0.0.1.
//
// Parameters:
//   - opts: Server options
//
// Returns:
//   - *server.Server: Running server; the caller shuts it down
//   - error: Creation error or ErrServerNotReady
func StartEmbedded(opts EmbeddedOptions) (*server.Server, error) {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      opts.Port,
		JetStream: opts.JetStream,
		StoreDir:  opts.StoreDir,
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		return nil, err
	}

	go ns.Start()

	if !ns.ReadyForConnections(opts.ReadyTimeout) {
		ns.Shutdown()
		return nil, ErrServerNotReady
	}

	return ns, nil
}
