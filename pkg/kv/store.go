package kv

import "context"

// Store is a durable string-keyed byte store shared by all SDK components.
// A missing key is reported as (nil, nil), not an error, so callers can
// distinguish "no value yet" from a broken backend.
type Store interface {
	// Get returns the value for key, or (nil, nil) if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Reset removes every key owned by this store.
	Reset(ctx context.Context) error
}
