package kv

import (
	"context"
	"encoding/json"
	"log/slog"
)

// JSONStore is a typed JSON layer over a Store that never fails: storage and
// serialization errors are logged and replaced with safe zero values, so a
// broken local store degrades to "no cached state" instead of breaking the
// caller's flow.
type JSONStore struct {
	store  Store
	logger *slog.Logger
}

// NewJSONStore wraps store. A nil logger falls back to slog.Default().
func NewJSONStore(store Store, logger *slog.Logger) *JSONStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONStore{store: store, logger: logger}
}

// Get decodes the value stored under key into v. Returns false when the key
// is absent or the value could not be read or decoded; v is left untouched
// in that case.
func (s *JSONStore) Get(ctx context.Context, key string, v any) bool {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read local state",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return false
	}
	if data == nil {
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.logger.WarnContext(ctx, "failed to decode local state",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// Set encodes v as JSON and stores it under key. Failures are logged and
// swallowed.
func (s *JSONStore) Set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode local state",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return
	}

	if err := s.store.Set(ctx, key, data); err != nil {
		s.logger.WarnContext(ctx, "failed to write local state",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// Delete removes key. Failures are logged and swallowed.
func (s *JSONStore) Delete(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to delete local state",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// Reset clears the underlying store. Failures are logged and swallowed.
func (s *JSONStore) Reset(ctx context.Context) {
	if err := s.store.Reset(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to reset local state",
			slog.String("error", err.Error()))
	}
}
