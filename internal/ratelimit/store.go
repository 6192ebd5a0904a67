package ratelimit

import (
	"context"
	"time"
)

// Store is the keyed blob storage every counter runs against. Implementations
// must treat an expired key as absent. No atomicity or cross-key ordering is
// required: the engine does a plain read-modify-write per check, and two
// concurrent checks for the same key may both read the same prior state.
type Store interface {
	// Get returns the value for key, or ok=false when the key is absent
	// or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
