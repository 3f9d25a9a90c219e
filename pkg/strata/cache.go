package strata

import (
	"context"
	"time"

	"github.com/strata-go/strata/internal/cache"
)

// Cache is the full cache engine surface. Implementations are safe for
// concurrent use.
type Cache interface {
	// Get reads the value stored under key into dest. Returns
	// ErrCacheMiss when the key is absent from every consulted tier;
	// remote failures degrade to a miss.
	Get(ctx context.Context, key string, dest any, opts ...Option) error

	// Set stores a value under key in the tiers the options select.
	Set(ctx context.Context, key string, value any, opts ...Option) error

	// GetOrSet reads key, and on a miss invokes factory to produce the
	// value, stores it, and returns it. Concurrent misses for the same
	// key share one factory invocation.
	GetOrSet(ctx context.Context, key string, dest any, factory FactoryFunc, opts ...Option) error

	// Delete removes key from the selected tiers. Deleting an absent
	// key is not an error.
	Delete(ctx context.Context, key string, opts ...Option) error

	// DeleteMany removes a batch of keys and reports how many existed
	// in at least one tier.
	DeleteMany(ctx context.Context, keys []string, opts ...Option) (int, error)

	// Contains reports whether key is present without decoding it.
	Contains(ctx context.Context, key string, opts ...Option) (bool, error)

	// GetMany reads a batch of keys and returns the stored frames for
	// those found. Decode each frame with Decode.
	GetMany(ctx context.Context, keys []string, opts ...Option) (map[string][]byte, error)

	// SetMany stores a batch of values in one pass.
	SetMany(ctx context.Context, items map[string]any, opts ...Option) error

	// Invalidate removes the keys the request resolves to, across both
	// tiers, and returns how many keys it removed.
	Invalidate(ctx context.Context, req InvalidateRequest) (int, error)

	// Warm populates a batch of keys through their factories. Failures
	// are isolated per entry.
	Warm(ctx context.Context, entries []WarmEntry) (*WarmResult, error)

	// Flush empties both tiers and all invalidation state.
	Flush(ctx context.Context) error

	// Decode decodes a stored frame, as returned by GetMany, into dest.
	Decode(data []byte, dest any) error

	// Health reports the health of both tiers.
	Health(ctx context.Context) (*HealthMetrics, error)

	// IsHealthy reports whether the cache is functioning. A degraded
	// remote tier does not make the cache unhealthy.
	IsHealthy(ctx context.Context) bool

	// IsRemoteAvailable reports whether the remote tier is connected
	// and not fenced off by the circuit breaker.
	IsRemoteAvailable() bool

	// IsLocalAvailable reports whether the local tier is up.
	IsLocalAvailable() bool

	// Metrics returns a point-in-time metrics snapshot.
	Metrics() MetricsSnapshot

	// Close shuts down the cache, draining background work.
	Close() error

	// CloseWithTimeout shuts down, abandoning background work that
	// outlives the timeout.
	CloseWithTimeout(timeout time.Duration) error
}

// InvalidateRequest names what one invalidation covers: explicit keys,
// every key carrying one of the tags, and *-glob patterns. Cascade
// extends the resolved set with all transitive dependents.
type InvalidateRequest = cache.InvalidateRequest
