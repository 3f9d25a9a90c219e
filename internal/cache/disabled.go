package cache

import (
	"context"
	"time"

	"github.com/strata-go/strata/internal/types"
)

// DisabledLocalCache is the local tier when the local tier is turned off:
// every read misses, every write is swallowed.
type DisabledLocalCache struct{}

// NewDisabledLocalCache creates a new disabled local tier.
func NewDisabledLocalCache() *DisabledLocalCache {
	return &DisabledLocalCache{}
}

func (c *DisabledLocalCache) Name() string { return "local-disabled" }

func (c *DisabledLocalCache) IsAvailable() bool { return false }

func (c *DisabledLocalCache) Close() error { return nil }

func (c *DisabledLocalCache) EntryCount() int { return 0 }

func (c *DisabledLocalCache) Size() int64 { return 0 }

func (c *DisabledLocalCache) MaxSize() int64 { return 0 }

func (c *DisabledLocalCache) UsagePercentage() float64 { return 0 }

func (c *DisabledLocalCache) HitRatio() float64 { return 0 }

func (c *DisabledLocalCache) Keys() []string { return nil }

func (c *DisabledLocalCache) Stats() types.LocalCacheStats { return types.LocalCacheStats{} }

func (c *DisabledLocalCache) Get(ctx context.Context, key string) (*types.CacheEntry, error) {
	return nil, types.ErrCacheMiss
}

func (c *DisabledLocalCache) Set(ctx context.Context, entry *types.CacheEntry) error { return nil }

func (c *DisabledLocalCache) ReplaceIfVersion(ctx context.Context, entry *types.CacheEntry, version uint64) bool {
	return false
}

func (c *DisabledLocalCache) Delete(ctx context.Context, key string) error { return nil }

func (c *DisabledLocalCache) DeleteMany(ctx context.Context, keys []string) int { return 0 }

func (c *DisabledLocalCache) DeleteByPattern(ctx context.Context, pattern string) ([]string, error) {
	return nil, nil
}

func (c *DisabledLocalCache) Contains(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (c *DisabledLocalCache) Clear(ctx context.Context) error { return nil }

// DisabledRemoteCache is the remote tier when no remote is configured:
// reads report the tier unavailable, writes are swallowed so the write
// path never branches on configuration.
type DisabledRemoteCache struct{}

// NewDisabledRemoteCache creates a new disabled remote tier.
func NewDisabledRemoteCache() *DisabledRemoteCache {
	return &DisabledRemoteCache{}
}

func (c *DisabledRemoteCache) Name() string { return "remote-disabled" }

func (c *DisabledRemoteCache) IsAvailable() bool { return false }

func (c *DisabledRemoteCache) Close() error { return nil }

func (c *DisabledRemoteCache) PendingWrites() int { return 0 }

func (c *DisabledRemoteCache) DroppedWrites() int64 { return 0 }

func (c *DisabledRemoteCache) LastError() (error, time.Time) { return nil, time.Time{} }

func (c *DisabledRemoteCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, types.ErrRemoteUnavailable
}

func (c *DisabledRemoteCache) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	return nil, 0, types.ErrRemoteUnavailable
}

func (c *DisabledRemoteCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return nil
}

func (c *DisabledRemoteCache) SetAsync(key string, payload []byte, ttl time.Duration) error {
	return nil
}

func (c *DisabledRemoteCache) Delete(ctx context.Context, key string) error { return nil }

func (c *DisabledRemoteCache) DeleteMany(ctx context.Context, keys []string) (int, error) {
	return 0, nil
}

func (c *DisabledRemoteCache) DeleteByPattern(ctx context.Context, pattern string) ([]string, error) {
	return nil, nil
}

func (c *DisabledRemoteCache) Contains(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (c *DisabledRemoteCache) Clear(ctx context.Context) error { return nil }

func (c *DisabledRemoteCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	return make(map[string][]byte), nil
}

func (c *DisabledRemoteCache) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	return nil
}

func (c *DisabledRemoteCache) Ping(ctx context.Context) error {
	return types.ErrRemoteUnavailable
}

var _ types.LocalTier = (*DisabledLocalCache)(nil)
var _ types.RemoteTier = (*DisabledRemoteCache)(nil)
