package kvutil

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/edgeshard/internal/natsutil"
)

// Collect watches keys matching pattern until want distinct keys hold a value.
//
// Values already in the bucket count, so a late watcher still sees keys
// written before it started. Deleted or purged keys are dropped from the result.
//
// Parameters:
//   - ctx: Context bounding the wait
//   - kv: Bucket to watch
//   - pattern: Key pattern, may contain NATS wildcards
//   - want: Number of distinct keys to wait for
//
// Returns:
//   - map[string][]byte: Key to latest value, with exactly want entries
//   - error: Watch failure or context error
func Collect(ctx context.Context, kv jetstream.KeyValue, pattern string, want int) (map[string][]byte, error) {
	values := make(map[string][]byte, want)
	if want <= 0 {
		return values, nil
	}

	watcher, err := kv.Watch(ctx, pattern)
	if err != nil {
		return nil, natsutil.Classify("watch "+pattern, err)
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("collect %s: got %d of %d keys: %w", pattern, len(values), want, ctx.Err())
		case entry, ok := <-watcher.Updates():
			if !ok {
				// The watcher closes its channel when ctx ends.
				if ctx.Err() != nil {
					return nil, fmt.Errorf("collect %s: got %d of %d keys: %w", pattern, len(values), want, ctx.Err())
				}

				return nil, fmt.Errorf("collect %s: watcher closed with %d of %d keys", pattern, len(values), want)
			}
			// nil marks the end of the initial values.
			if entry == nil {
				continue
			}

			switch entry.Operation() {
			case jetstream.KeyValuePut:
				values[entry.Key()] = entry.Value()
			default:
				delete(values, entry.Key())
			}

			if len(values) >= want {
				return values, nil
			}
		}
	}
}
