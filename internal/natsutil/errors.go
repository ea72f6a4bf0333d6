// Package natsutil holds NATS helpers shared by the transport, the KV reducer
// and the simulator.
package natsutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/edgeshard/types"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, connection refused, disconnections, etc.
//
// Kept in internal/natsutil to avoid importing NATS dependencies in types/ package.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, types.ErrConnectivity) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionDraining) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// Classify wraps err with types.ErrConnectivity when it is a connectivity
// failure, so callers can use errors.Is without importing NATS.
//
// Parameters:
//   - op: Operation name for the error message
//   - err: Error to classify, may be nil
//
// Returns:
//   - error: nil, err wrapped with op, or err wrapped with op and ErrConnectivity
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsConnectivityError(err) && !errors.Is(err, types.ErrConnectivity) {
		return fmt.Errorf("%s: %w: %w", op, types.ErrConnectivity, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
