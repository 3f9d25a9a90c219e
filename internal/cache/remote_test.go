package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-go/strata/internal/config"
	"github.com/strata-go/strata/internal/types"
)

func testRemoteConfig(addr string) config.RemoteConfig {
	return config.RemoteConfig{
		Enabled:          true,
		Address:          addr,
		KeyPrefix:        "test:",
		DefaultTTL:       5 * time.Minute,
		TTLFactor:        2.0,
		DialTimeout:      time.Second,
		CommandTimeout:   time.Second,
		PoolTimeout:      time.Second,
		PoolSize:         5,
		MinIdleConns:     1,
		ScanBatch:        10,
		MaxPendingWrites: 100,
	}
}

// newTestRemote spins up an in-process Redis and a RemoteCache pointed at
// it. Health checking is off by default so availability only changes when
// a test asks for it.
func newTestRemote(t *testing.T, mutate ...func(*config.RemoteConfig)) (*RemoteCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := testRemoteConfig(mr.Addr())
	for _, m := range mutate {
		m(&cfg)
	}

	rc, err := NewRemoteCache(cfg, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = rc.Close()
		mr.Close()
	})

	return rc, mr
}

func TestNewRemoteCache(t *testing.T) {
	t.Run("connects on construction", func(t *testing.T) {
		rc, _ := newTestRemote(t)
		assert.True(t, rc.IsAvailable())
		assert.Equal(t, "remote", rc.Name())
	})

	t.Run("starts degraded when the server is unreachable", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		rc, err := NewRemoteCache(testRemoteConfig(addr), nil)
		require.NoError(t, err)
		defer rc.Close()

		assert.False(t, rc.IsAvailable())

		lastErr, lastTime := rc.LastError()
		assert.Error(t, lastErr)
		assert.False(t, lastTime.IsZero())
	})
}

func TestRemoteCacheGet(t *testing.T) {
	rc, _ := newTestRemote(t)
	ctx := context.Background()

	t.Run("returns cache miss for non-existent key", func(t *testing.T) {
		_, err := rc.Get(ctx, "non-existent-key")
		assert.ErrorIs(t, err, types.ErrCacheMiss)
	})

	t.Run("retrieves previously set payload", func(t *testing.T) {
		payload := []byte(`{"name":"test"}`)

		err := rc.Set(ctx, "get-key", payload, time.Minute)
		require.NoError(t, err)

		got, err := rc.Get(ctx, "get-key")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("returns unavailable when disconnected", func(t *testing.T) {
		rc.connected.Store(false)
		defer rc.connected.Store(true)

		_, err := rc.Get(ctx, "any-key")
		assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
	})
}

func TestRemoteCacheGetWithTTL(t *testing.T) {
	rc, mr := newTestRemote(t)
	ctx := context.Background()

	t.Run("returns payload and remaining TTL", func(t *testing.T) {
		require.NoError(t, rc.Set(ctx, "ttl-key", []byte("value"), time.Minute))

		got, ttl, err := rc.GetWithTTL(ctx, "ttl-key")
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), got)
		assert.Equal(t, 2*time.Minute, ttl)
	})

	t.Run("reports zero TTL for keys without expiry", func(t *testing.T) {
		_ = mr.Set("test:eternal", "value")

		got, ttl, err := rc.GetWithTTL(ctx, "eternal")
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), got)
		assert.Equal(t, time.Duration(0), ttl)
	})

	t.Run("returns cache miss for non-existent key", func(t *testing.T) {
		_, _, err := rc.GetWithTTL(ctx, "nope")
		assert.ErrorIs(t, err, types.ErrCacheMiss)
	})
}

func TestRemoteCacheSet(t *testing.T) {
	rc, mr := newTestRemote(t)
	ctx := context.Background()

	t.Run("stores under the configured prefix", func(t *testing.T) {
		err := rc.Set(ctx, "prefixed", []byte("value"), time.Minute)
		require.NoError(t, err)
		assert.True(t, mr.Exists("test:prefixed"))
	})

	t.Run("overwrites existing payload", func(t *testing.T) {
		require.NoError(t, rc.Set(ctx, "overwrite", []byte("one"), time.Minute))
		require.NoError(t, rc.Set(ctx, "overwrite", []byte("two"), time.Minute))

		got, err := rc.Get(ctx, "overwrite")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got)
	})

	t.Run("stretches the TTL by the configured factor", func(t *testing.T) {
		err := rc.Set(ctx, "stretched", []byte("value"), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, mr.TTL("test:stretched"))
	})

	t.Run("defaults the TTL before stretching it", func(t *testing.T) {
		err := rc.Set(ctx, "defaulted", []byte("value"), 0)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Minute, mr.TTL("test:defaulted"))
	})

	t.Run("entry expires after the stretched TTL", func(t *testing.T) {
		err := rc.Set(ctx, "expiring", []byte("value"), 30*time.Second)
		require.NoError(t, err)

		mr.FastForward(45 * time.Second)
		_, err = rc.Get(ctx, "expiring")
		require.NoError(t, err, "entry should survive its logical TTL")

		mr.FastForward(30 * time.Second)
		_, err = rc.Get(ctx, "expiring")
		assert.ErrorIs(t, err, types.ErrCacheMiss)
	})

	t.Run("returns unavailable when disconnected", func(t *testing.T) {
		rc.connected.Store(false)
		defer rc.connected.Store(true)

		err := rc.Set(ctx, "any-key", []byte("value"), time.Minute)
		assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
	})
}

func TestRemoteCacheSetAsync(t *testing.T) {
	t.Run("write is eventually persisted", func(t *testing.T) {
		rc, mr := newTestRemote(t)

		err := rc.SetAsync("async-key", []byte("async-value"), time.Minute)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			got, err := mr.Get("test:async-key")
			return err == nil && got == "async-value"
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("drops the write once the queue is saturated", func(t *testing.T) {
		// No worker goroutine, so the queue never drains.
		rc := &RemoteCache{
			config:     testRemoteConfig("localhost:0"),
			logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
			writeQueue: make(chan remoteWriteOp, 1),
		}
		rc.connected.Store(true)

		require.NoError(t, rc.SetAsync("first", []byte("a"), time.Minute))

		err := rc.SetAsync("second", []byte("b"), time.Minute)
		assert.ErrorIs(t, err, types.ErrWriteQueueFull)
		assert.Equal(t, 1, rc.PendingWrites())
		assert.Equal(t, int64(1), rc.DroppedWrites())
	})

	t.Run("returns unavailable when disconnected", func(t *testing.T) {
		rc, _ := newTestRemote(t)
		rc.connected.Store(false)

		err := rc.SetAsync("any-key", []byte("value"), time.Minute)
		assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
	})
}

func TestRemoteCacheDelete(t *testing.T) {
	rc, _ := newTestRemote(t)
	ctx := context.Background()

	t.Run("deletes existing key", func(t *testing.T) {
		require.NoError(t, rc.Set(ctx, "doomed", []byte("value"), time.Minute))

		err := rc.Delete(ctx, "doomed")
		require.NoError(t, err)

		_, err = rc.Get(ctx, "doomed")
		assert.ErrorIs(t, err, types.ErrCacheMiss)
	})

	t.Run("deleting non-existent key succeeds", func(t *testing.T) {
		assert.NoError(t, rc.Delete(ctx, "never-existed"))
	})
}

func TestRemoteCacheDeleteMany(t *testing.T) {
	rc, _ := newTestRemote(t)
	ctx := context.Background()

	t.Run("reports how many keys existed", func(t *testing.T) {
		require.NoError(t, rc.Set(ctx, "dm-1", []byte("a"), time.Minute))
		require.NoError(t, rc.Set(ctx, "dm-2", []byte("b"), time.Minute))

		removed, err := rc.DeleteMany(ctx, []string{"dm-1", "dm-2", "dm-missing"})
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
	})

	t.Run("empty key list is a no-op", func(t *testing.T) {
		removed, err := rc.DeleteMany(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, removed)
	})
}

func TestRemoteCacheDeleteByPattern(t *testing.T) {
	t.Run("deletes matching keys and returns them unprefixed", func(t *testing.T) {
		rc, _ := newTestRemote(t)
		ctx := context.Background()

		for _, key := range []string{"user:1", "user:2", "session:abc"} {
			require.NoError(t, rc.Set(ctx, key, []byte("value"), time.Minute))
		}

		removed, err := rc.DeleteByPattern(ctx, "user:*")
		require.NoError(t, err)

		sort.Strings(removed)
		assert.Equal(t, []string{"user:1", "user:2"}, removed)

		exists, err := rc.Contains(ctx, "session:abc")
		require.NoError(t, err)
		assert.True(t, exists, "non-matching key should survive")
	})

	t.Run("walks the scan cursor across batches", func(t *testing.T) {
		rc, _ := newTestRemote(t)
		ctx := context.Background()

		for i := 0; i < 25; i++ {
			key := fmt.Sprintf("bulk:%02d", i)
			require.NoError(t, rc.Set(ctx, key, []byte("value"), time.Minute))
		}

		removed, err := rc.DeleteByPattern(ctx, "bulk:*")
		require.NoError(t, err)
		assert.Len(t, removed, 25)

		exists, err := rc.Contains(ctx, "bulk:00")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestRemoteCacheContains(t *testing.T) {
	rc, _ := newTestRemote(t)
	ctx := context.Background()

	t.Run("returns true for existing key", func(t *testing.T) {
		require.NoError(t, rc.Set(ctx, "present", []byte("value"), time.Minute))

		exists, err := rc.Contains(ctx, "present")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("returns false for non-existent key", func(t *testing.T) {
		exists, err := rc.Contains(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestRemoteCacheClear(t *testing.T) {
	rc, _ := newTestRemote(t)
	ctx := context.Background()

	t.Run("clears all entries under the prefix", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			key := fmt.Sprintf("clear-%d", i)
			require.NoError(t, rc.Set(ctx, key, []byte("value"), time.Minute))
		}

		require.NoError(t, rc.Clear(ctx))

		for i := 0; i < 10; i++ {
			key := fmt.Sprintf("clear-%d", i)
			_, err := rc.Get(ctx, key)
			assert.ErrorIs(t, err, types.ErrCacheMiss)
		}
	})
}

func TestRemoteCacheGetMany(t *testing.T) {
	rc, _ := newTestRemote(t)
	ctx := context.Background()

	t.Run("returns all found keys", func(t *testing.T) {
		items := map[string][]byte{
			"mget-1": []byte("value1"),
			"mget-2": []byte("value2"),
			"mget-3": []byte("value3"),
		}
		for k, v := range items {
			require.NoError(t, rc.Set(ctx, k, v, time.Minute))
		}

		results, err := rc.GetMany(ctx, []string{"mget-1", "mget-2", "mget-3", "mget-missing"})
		require.NoError(t, err)

		assert.Len(t, results, 3)
		assert.Equal(t, []byte("value1"), results["mget-1"])
		assert.Equal(t, []byte("value2"), results["mget-2"])
		assert.Equal(t, []byte("value3"), results["mget-3"])
		_, exists := results["mget-missing"]
		assert.False(t, exists)
	})

	t.Run("returns empty map for empty keys", func(t *testing.T) {
		results, err := rc.GetMany(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestRemoteCacheSetMany(t *testing.T) {
	rc, mr := newTestRemote(t)
	ctx := context.Background()

	t.Run("sets multiple keys with one stretched TTL", func(t *testing.T) {
		items := map[string][]byte{
			"mset-1": []byte("value1"),
			"mset-2": []byte("value2"),
			"mset-3": []byte("value3"),
		}

		err := rc.SetMany(ctx, items, time.Minute)
		require.NoError(t, err)

		for k, v := range items {
			got, err := rc.Get(ctx, k)
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
		assert.Equal(t, 2*time.Minute, mr.TTL("test:mset-1"))
	})

	t.Run("empty map succeeds", func(t *testing.T) {
		assert.NoError(t, rc.SetMany(ctx, map[string][]byte{}, time.Minute))
	})
}

func TestRemoteCachePing(t *testing.T) {
	t.Run("succeeds and restores availability", func(t *testing.T) {
		rc, _ := newTestRemote(t)
		ctx := context.Background()

		rc.connected.Store(false)
		require.NoError(t, rc.Ping(ctx))
		assert.True(t, rc.IsAvailable())
	})

	t.Run("failure marks the tier unavailable", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)

		rc, err := NewRemoteCache(testRemoteConfig(mr.Addr()), nil)
		require.NoError(t, err)
		defer rc.Close()

		mr.Close()

		err = rc.Ping(context.Background())
		assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
		assert.False(t, rc.IsAvailable())
	})
}

func TestRemoteCacheErrorTracking(t *testing.T) {
	t.Run("transport failures are normalized", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)

		rc, err := NewRemoteCache(testRemoteConfig(mr.Addr()), nil)
		require.NoError(t, err)
		defer rc.Close()

		mr.Close()

		_, err = rc.Get(context.Background(), "some-key")
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
		assert.NotErrorIs(t, err, types.ErrCacheMiss)

		var cacheErr *types.CacheError
		require.True(t, errors.As(err, &cacheErr))
		assert.Equal(t, "Get", cacheErr.Op)
		assert.Equal(t, "remote", cacheErr.Tier)
	})

	t.Run("disconnects after repeated transport failures", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)

		rc, err := NewRemoteCache(testRemoteConfig(mr.Addr()), nil)
		require.NoError(t, err)
		defer rc.Close()

		mr.Close()

		for i := 0; i < disconnectErrorThreshold; i++ {
			_, _ = rc.Get(context.Background(), "some-key")
		}
		assert.False(t, rc.IsAvailable())

		lastErr, lastTime := rc.LastError()
		assert.Error(t, lastErr)
		assert.False(t, lastTime.IsZero())
	})
}

func TestRemoteCacheHealthCheck(t *testing.T) {
	t.Run("worker restores availability", func(t *testing.T) {
		rc, _ := newTestRemote(t, func(cfg *config.RemoteConfig) {
			cfg.HealthCheckInterval = 20 * time.Millisecond
		})

		rc.connected.Store(false)

		require.Eventually(t, func() bool {
			return rc.IsAvailable()
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("manual check restores connection after recovery", func(t *testing.T) {
		rc, _ := newTestRemote(t)

		rc.connected.Store(false)
		assert.False(t, rc.IsAvailable())

		rc.performHealthCheck()
		assert.True(t, rc.IsAvailable())
	})
}

func TestRemoteCacheClose(t *testing.T) {
	t.Run("drains queued writes before closing", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		rc, err := NewRemoteCache(testRemoteConfig(mr.Addr()), nil)
		require.NoError(t, err)

		require.NoError(t, rc.SetAsync("drained", []byte("value"), time.Minute))
		require.NoError(t, rc.Close())

		got, err := mr.Get("test:drained")
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		rc, err := NewRemoteCache(testRemoteConfig(mr.Addr()), nil)
		require.NoError(t, err)

		assert.NoError(t, rc.Close())
		assert.NoError(t, rc.Close())
	})

	t.Run("operations fail after close", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		rc, err := NewRemoteCache(testRemoteConfig(mr.Addr()), nil)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		_, err = rc.Get(context.Background(), "any-key")
		assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
	})
}

func TestRemoteCacheConcurrency(t *testing.T) {
	rc, _ := newTestRemote(t)
	ctx := context.Background()

	t.Run("handles concurrent reads and writes", func(t *testing.T) {
		require.NoError(t, rc.Set(ctx, "concurrent-key", []byte("initial"), time.Minute))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					if j%2 == 0 {
						_, _ = rc.Get(ctx, "concurrent-key")
					} else {
						_ = rc.Set(ctx, "concurrent-key", []byte("updated"), time.Minute)
					}
				}
			}()
		}
		wg.Wait()

		_, err := rc.Get(ctx, "concurrent-key")
		assert.NoError(t, err)
	})
}
