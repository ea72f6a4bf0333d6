// Package kvutil provides utilities for working with NATS JetStream KeyValue stores.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/edgeshard/internal/natsutil"
)

// DefaultMaxRetries is used when EnsureBucket gets a non-positive retry count.
const DefaultMaxRetries = 3

// baseBackoff is the first retry delay; it doubles per attempt.
const baseBackoff = 10 * time.Millisecond

// EnsureBucket creates or opens a KV bucket with retry logic.
//
// Every machine of a cluster calls this with the same configuration at
// startup, so losing the creation race is the normal case and resolves to
// opening the existing bucket.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of attempts (DefaultMaxRetries when <= 0)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Last error after all attempts, classified for connectivity
//
// Example:
//
//	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket: "edgeshard-reduce",
//	    TTL:    10 * time.Minute,
//	}, 3)
func EnsureBucket(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error

	for attempt := range maxRetries {
		kv, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			return kv, nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err = js.KeyValue(ctx, config.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}

		if attempt < maxRetries-1 {
			backoff := baseBackoff << uint(attempt) //nolint:gosec // attempt is bounded by maxRetries
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, natsutil.Classify(
		fmt.Sprintf("ensure KV bucket %s after %d attempts", config.Bucket, maxRetries),
		lastErr,
	)
}
