package credentials

import (
	"context"
	"strings"
	"sync"

	"github.com/purchasekit/purchasekit/pkg/kv"
)

// SubscriptionIDPrefix marks subscription identifiers as issued by the
// payment processor, distinguishing them from checkout-session identifiers.
const SubscriptionIDPrefix = "sub_"

// Persisted state keys, namespaced by the kv backend.
const (
	keyAccessKeys     = "access_keys"
	keySessionID      = "session_id"
	keySubscriptionID = "subscription_id"
)

// Store owns the mapping from session/subscription identifiers to access
// keys, plus the "current" session and subscription pointers. All state is
// persisted through a kv.JSONStore, so storage failures degrade to empty
// lookups instead of errors.
type Store struct {
	mu    sync.Mutex
	state *kv.JSONStore
}

// New creates a credential store over the given persisted state.
func New(state *kv.JSONStore) *Store {
	return &Store{state: state}
}

// IsSubscriptionID reports whether id has the subscription identifier shape.
func IsSubscriptionID(id string) bool {
	return strings.HasPrefix(id, SubscriptionIDPrefix)
}

// StoreKey merges {id: accessKey} into the persisted access-key map. The
// merge reads the current map first so concurrent single-key updates are
// never clobbered by a blind overwrite. Storing a subscription-shaped id
// also moves the subscription pointer to it.
func (s *Store) StoreKey(ctx context.Context, id, accessKey string) {
	if id == "" || accessKey == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make(map[string]string)
	s.state.Get(ctx, keyAccessKeys, &keys)
	keys[id] = accessKey
	s.state.Set(ctx, keyAccessKeys, keys)

	if IsSubscriptionID(id) {
		s.state.Set(ctx, keySubscriptionID, id)
	}
}

// Lookup returns the access key for id. When no key is stored for id it
// falls back to the current session's key: a freshly created subscription
// reuses its originating session's key until the service rotates one in.
// Returns "" when nothing is resolvable.
func (s *Store) Lookup(ctx context.Context, id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make(map[string]string)
	s.state.Get(ctx, keyAccessKeys, &keys)

	if key, ok := keys[id]; ok {
		return key
	}

	var sessionID string
	if s.state.Get(ctx, keySessionID, &sessionID) && sessionID != "" {
		return keys[sessionID]
	}
	return ""
}

// DefaultID returns the identifier to use when the caller supplied none:
// the subscription pointer when set, else the session pointer, else "".
func (s *Store) DefaultID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	if s.state.Get(ctx, keySubscriptionID, &id) && id != "" {
		return id
	}
	if s.state.Get(ctx, keySessionID, &id) && id != "" {
		return id
	}
	return ""
}

// SessionID returns the current checkout-session pointer, or "".
func (s *Store) SessionID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	s.state.Get(ctx, keySessionID, &id)
	return id
}

// SetSessionID records the current checkout-session pointer.
func (s *Store) SetSessionID(ctx context.Context, id string) {
	if id == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Set(ctx, keySessionID, id)
}

// SubscriptionID returns the current subscription pointer, or "".
func (s *Store) SubscriptionID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	s.state.Get(ctx, keySubscriptionID, &id)
	return id
}

// Observe records a subscription identifier seen in a service response.
// The pointer is only set the first time; later observations don't move it.
func (s *Store) Observe(ctx context.Context, id string) {
	if !IsSubscriptionID(id) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current string
	if s.state.Get(ctx, keySubscriptionID, &current) && current != "" {
		return
	}
	s.state.Set(ctx, keySubscriptionID, id)
}

// Reset clears the access-key map and both identity pointers.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Delete(ctx, keyAccessKeys)
	s.state.Delete(ctx, keySessionID)
	s.state.Delete(ctx, keySubscriptionID)
}
