// Package strata provides a multi-tier caching engine with a local
// in-process tier and an optional remote Redis-backed tier.
//
// strata offers a unified API for cache operations across both tiers with
// built-in resilience patterns, graceful degradation, tag and dependency
// based invalidation, and pluggable metrics.
//
// # Features
//
//   - Two tiers: in-process LRU with per-entry TTL, and Redis with
//     intelligent promotion between them
//   - Encoding pipeline: JSON serialization, threshold-gated compression
//     (s2 or zstd), optional authenticated encryption
//   - Resilience: circuit breaker, retry with exponential backoff, and
//     bulkhead around every remote call
//   - Cache-aside: GetOrSet collapses concurrent misses into a single
//     factory call
//   - Invalidation: by key, tag, glob pattern, or dependency cascade
//   - Stale-while-revalidate: serve the stale value, refresh in the
//     background
//   - Graceful degradation: remote failures become cache misses, never
//     caller-visible errors
//   - Observability: metrics tracking with StatsD and Prometheus
//     publishers
//
// # Quick Start
//
// Create a cache with default configuration (local tier only):
//
//	c, err := strata.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
// # Cache Operations
//
// Basic set and get operations:
//
//	ctx := context.Background()
//	user := User{ID: "123", Name: "Alice"}
//
//	// Set a value
//	err := c.Set(ctx, "user:123", user)
//
//	// Get a value
//	var cached User
//	err = c.Get(ctx, "user:123", &cached)
//
// Cache-aside with GetOrSet; the factory only runs on a miss, and
// concurrent misses for the same key share one factory call:
//
//	var result User
//	err := c.GetOrSet(ctx, "user:456", &result, func(ctx context.Context) (any, error) {
//	    return fetchUserFromDB(ctx, "456")
//	})
//
// Or use the generic helpers:
//
//	user, err := strata.GetOrSet(ctx, c, "user:456", func(ctx context.Context) (User, error) {
//	    return fetchUserFromDB(ctx, "456")
//	})
//
// # Invalidation
//
// Entries can carry tags and dependencies:
//
//	c.Set(ctx, "user:1", alice, strata.WithTags("users"))
//	c.Set(ctx, "profile:1", profile, strata.WithDependencies("user:1"))
//
//	// Remove every entry tagged "users" and everything that depends on it.
//	c.Invalidate(ctx, strata.InvalidateRequest{Tags: []string{"users"}, Cascade: true})
//
// # Cache Levels
//
// Each operation can target a subset of the tiers:
//
//   - LevelLocalOnly: high-frequency reads, instance-local state
//   - LevelRemoteOnly: shared state across instances
//   - LevelLocalThenRemote: local first with remote fallback (the default)
//
//	c.Set(ctx, "key", value, strata.WithLevel(strata.LevelRemoteOnly))
//
// # Configuration
//
// Load configuration from a JSON file (environment variables override):
//
//	c, err := strata.NewFromFile("config.json")
//
// Or start from the defaults and customize:
//
//	cfg := strata.Config()
//	cfg.Remote.Enabled = true
//	cfg.Remote.Address = "localhost:6379"
//	c, err := strata.NewFromConfig(cfg)
//
// For testing, use the test configuration:
//
//	cfg := strata.TestConfig()
//
// # Health Checks
//
// Check the health of both tiers:
//
//	health, err := c.Health(ctx)
//	if health.Status == strata.HealthStatusHealthy {
//	    fmt.Println("both tiers operational")
//	}
//
// A degraded remote tier never makes the cache unhealthy; reads fall
// back to the local tier and remote failures surface as misses.
//
// # Thread Safety
//
// All operations are safe for concurrent use from multiple goroutines.
package strata
