package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/purchasekit/purchasekit/pkg/kv"
)

// DefaultFreshnessWindow is the maximum age at which a cached catalog is
// served without re-fetching.
const DefaultFreshnessWindow = 60 * time.Second

// snapshotKey is the persisted-state key for the cached catalog.
const snapshotKey = "catalog"

// FetchFunc loads the product list from the validation service.
type FetchFunc func(ctx context.Context) ([]Product, error)

// snapshot is the persisted form of a fetched catalog.
type snapshot struct {
	Products  []Product `json:"products"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Cache is a time-boxed product catalog cache. Within the freshness window
// every read, including an explicit Refresh, serves the cached snapshot;
// this shields the validation service from refresh storms caused by rapid
// UI re-renders.
type Cache struct {
	mu     sync.Mutex
	fetch  FetchFunc
	state  *kv.JSONStore
	window time.Duration
	now    func() time.Time
	logger *slog.Logger

	products  []Product
	fetchedAt time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithFreshnessWindow overrides the default 60s freshness window.
func WithFreshnessWindow(window time.Duration) CacheOption {
	return func(c *Cache) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger for cache diagnostics.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache creates a catalog cache around fetch. When state is non-nil the
// last successful snapshot is persisted there and reloaded on construction,
// so a restarted client can serve a still-fresh catalog without a fetch.
func NewCache(fetch FetchFunc, state *kv.JSONStore, opts ...CacheOption) *Cache {
	if fetch == nil {
		panic("catalog: FetchFunc is required")
	}

	c := &Cache{
		fetch:  fetch,
		state:  state,
		window: DefaultFreshnessWindow,
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.state != nil {
		var snap snapshot
		if c.state.Get(context.Background(), snapshotKey, &snap) {
			c.products = snap.Products
			c.fetchedAt = snap.FetchedAt
		}
	}

	return c
}

// Get returns the cached products when the snapshot is still fresh,
// otherwise fetches, stores and returns a new one. Fetch errors propagate
// to the caller uncached; an older snapshot stays available for later calls
// until it ages out.
func (c *Cache) Get(ctx context.Context) ([]Product, error) {
	return c.load(ctx)
}

// Refresh is Get under another name: even an explicit refresh is
// rate-limited to once per freshness window.
func (c *Cache) Refresh(ctx context.Context) ([]Product, error) {
	return c.load(ctx)
}

// Invalidate drops the cached snapshot so the next read fetches.
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products = nil
	c.fetchedAt = time.Time{}
	if c.state != nil {
		c.state.Delete(ctx, snapshotKey)
	}
}

func (c *Cache) load(ctx context.Context) ([]Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.products != nil && now.Sub(c.fetchedAt) < c.window {
		return c.products, nil
	}

	products, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.products = products
	c.fetchedAt = now
	if c.state != nil {
		c.state.Set(ctx, snapshotKey, snapshot{Products: products, FetchedAt: now})
	}

	c.logger.DebugContext(ctx, "catalog refreshed",
		slog.Int("products", len(products)))

	return c.products, nil
}
