package cache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/strata-go/strata/internal/config"
	"github.com/strata-go/strata/internal/types"
)

func testLocalConfig() config.LocalConfig {
	return config.LocalConfig{
		Enabled:      true,
		MaxEntries:   1000,
		MaxSizeMB:    16,
		MaxEntrySize: 1024 * 1024,
		DefaultTTL:   1 * time.Minute,
		// Tests drive the sweep directly; 0 keeps the goroutine out.
		CleanupInterval: 0,
	}
}

func testClock() *types.FakeClock {
	return types.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
}

func newLocalEntry(key string, value []byte, expiresAt time.Time) *types.CacheEntry {
	return &types.CacheEntry{Key: key, Value: value, ExpiresAt: expiresAt}
}

func TestNewLocalCache(t *testing.T) {
	t.Run("creates with nil logger and clock", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), nil, nil, nil)
		defer cache.Close()

		if cache == nil {
			t.Fatal("NewLocalCache() returned nil")
		}
	})

	t.Run("creates with custom logger", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), slog.Default(), nil)
		defer cache.Close()

		if cache == nil {
			t.Fatal("NewLocalCache() returned nil")
		}
	})
}

func TestLocalCacheName(t *testing.T) {
	cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)
	defer cache.Close()

	if name := cache.Name(); name != "local" {
		t.Errorf("Name() = %s, want local", name)
	}
}

func TestLocalCacheIsAvailable(t *testing.T) {
	cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)

	t.Run("available when open", func(t *testing.T) {
		if !cache.IsAvailable() {
			t.Error("IsAvailable() = false, want true")
		}
	})

	t.Run("unavailable when closed", func(t *testing.T) {
		cache.Close()
		if cache.IsAvailable() {
			t.Error("IsAvailable() = true, want false after close")
		}
	})
}

func TestLocalCacheGet(t *testing.T) {
	ctx := context.Background()

	t.Run("returns miss for non-existent key", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)
		defer cache.Close()

		_, err := cache.Get(ctx, "non-existent")
		if !errors.Is(err, types.ErrCacheMiss) {
			t.Errorf("Get() error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("returns entry for existing key", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		value := []byte("test value")
		_ = cache.Set(ctx, newLocalEntry("key1", value, clock.Now().Add(time.Minute)))

		got, err := cache.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get() error = %v, want nil", err)
		}
		if string(got.Value) != string(value) {
			t.Errorf("Get() value = %s, want %s", got.Value, value)
		}
	})

	t.Run("returns error when closed", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)
		cache.Close()

		_, err := cache.Get(ctx, "key")
		if !errors.Is(err, types.ErrClosed) {
			t.Errorf("Get() error = %v, want ErrClosed", err)
		}
	})

	t.Run("expired entry is a miss and removed on the spot", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value"), clock.Now().Add(10*time.Second)))

		clock.Advance(11 * time.Second)

		_, err := cache.Get(ctx, "key1")
		if !errors.Is(err, types.ErrCacheMiss) {
			t.Errorf("Get() error = %v, want ErrCacheMiss", err)
		}
		if count := cache.EntryCount(); count != 0 {
			t.Errorf("EntryCount() = %d, want 0 after expired read", count)
		}

		stats := cache.Stats()
		if stats.Expirations != 1 {
			t.Errorf("Expirations = %d, want 1", stats.Expirations)
		}
		if stats.Misses != 1 {
			t.Errorf("Misses = %d, want 1", stats.Misses)
		}
	})

	t.Run("returned entry is a snapshot", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value"), clock.Now().Add(time.Minute)))

		first, _ := cache.Get(ctx, "key1")
		second, _ := cache.Get(ctx, "key1")

		if second.AccessCount != first.AccessCount+1 {
			t.Errorf("AccessCount = %d, want %d", second.AccessCount, first.AccessCount+1)
		}
	})

	t.Run("tracks hits and misses", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value"), clock.Now().Add(time.Minute)))

		_, _ = cache.Get(ctx, "key1")       // hit
		_, _ = cache.Get(ctx, "key1")       // hit
		_, _ = cache.Get(ctx, "non-exist")  // miss
		_, _ = cache.Get(ctx, "non-exist2") // miss

		stats := cache.Stats()
		if stats.Hits != 2 {
			t.Errorf("Hits = %d, want 2", stats.Hits)
		}
		if stats.Misses != 2 {
			t.Errorf("Misses = %d, want 2", stats.Misses)
		}
	})
}

func TestLocalCacheSet(t *testing.T) {
	ctx := context.Background()

	t.Run("stores entry", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		err := cache.Set(ctx, newLocalEntry("key1", []byte("value1"), clock.Now().Add(time.Minute)))
		if err != nil {
			t.Fatalf("Set() error = %v, want nil", err)
		}

		got, err := cache.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got.Value) != "value1" {
			t.Errorf("Get() value = %s, want value1", got.Value)
		}
	})

	t.Run("overwrites existing entry", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value1"), clock.Now().Add(time.Minute)))
		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value2"), clock.Now().Add(time.Minute)))

		got, _ := cache.Get(ctx, "key1")
		if string(got.Value) != "value2" {
			t.Errorf("Get() value = %s, want value2", got.Value)
		}
		if count := cache.EntryCount(); count != 1 {
			t.Errorf("EntryCount() = %d, want 1", count)
		}
	})

	t.Run("applies default TTL when entry has none", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		_ = cache.Set(ctx, &types.CacheEntry{Key: "key1", Value: []byte("value")})

		clock.Advance(59 * time.Second)
		if _, err := cache.Get(ctx, "key1"); err != nil {
			t.Errorf("Get() before default TTL error = %v, want nil", err)
		}

		clock.Advance(2 * time.Second)
		if _, err := cache.Get(ctx, "key1"); !errors.Is(err, types.ErrCacheMiss) {
			t.Errorf("Get() after default TTL error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("skips entries over the entry size limit", func(t *testing.T) {
		clock := testClock()
		cfg := testLocalConfig()
		cfg.MaxEntrySize = 64
		cache := NewLocalCache(cfg, clock, nil, nil)
		defer cache.Close()

		big := make([]byte, 128)
		err := cache.Set(ctx, newLocalEntry("big", big, clock.Now().Add(time.Minute)))
		if err != nil {
			t.Fatalf("Set() error = %v, want nil", err)
		}

		if _, err := cache.Get(ctx, "big"); !errors.Is(err, types.ErrCacheMiss) {
			t.Errorf("oversize entry should not be stored, Get() error = %v", err)
		}
	})

	t.Run("returns error when closed", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)
		cache.Close()

		err := cache.Set(ctx, newLocalEntry("key", []byte("value"), time.Now().Add(time.Minute)))
		if !errors.Is(err, types.ErrClosed) {
			t.Errorf("Set() error = %v, want ErrClosed", err)
		}
	})

	t.Run("tracks set count", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		exp := clock.Now().Add(time.Minute)
		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value1"), exp))
		_ = cache.Set(ctx, newLocalEntry("key2", []byte("value2"), exp))
		_ = cache.Set(ctx, newLocalEntry("key3", []byte("value3"), exp))

		stats := cache.Stats()
		if stats.Sets != 3 {
			t.Errorf("Sets = %d, want 3", stats.Sets)
		}
	})
}

func TestLocalCacheLRUEviction(t *testing.T) {
	ctx := context.Background()

	t.Run("evicts least recently used at the entry cap", func(t *testing.T) {
		clock := testClock()
		cfg := testLocalConfig()
		cfg.MaxEntries = 3
		cache := NewLocalCache(cfg, clock, nil, nil)
		defer cache.Close()

		exp := clock.Now().Add(time.Minute)
		_ = cache.Set(ctx, newLocalEntry("a", []byte("1"), exp))
		_ = cache.Set(ctx, newLocalEntry("b", []byte("2"), exp))
		_ = cache.Set(ctx, newLocalEntry("c", []byte("3"), exp))

		// Touch a so b becomes the oldest.
		_, _ = cache.Get(ctx, "a")

		_ = cache.Set(ctx, newLocalEntry("d", []byte("4"), exp))

		if ok, _ := cache.Contains(ctx, "b"); ok {
			t.Error("b should have been evicted")
		}
		for _, key := range []string{"a", "c", "d"} {
			if ok, _ := cache.Contains(ctx, key); !ok {
				t.Errorf("%s should have survived eviction", key)
			}
		}

		stats := cache.Stats()
		if stats.Evictions != 1 {
			t.Errorf("Evictions = %d, want 1", stats.Evictions)
		}
	})

	t.Run("evicts to fit the byte budget", func(t *testing.T) {
		clock := testClock()
		cfg := testLocalConfig()
		cfg.MaxEntries = 0
		cfg.MaxSizeMB = 1
		cache := NewLocalCache(cfg, clock, nil, nil)
		defer cache.Close()

		exp := clock.Now().Add(time.Minute)
		val := make([]byte, 400*1024)
		_ = cache.Set(ctx, newLocalEntry("a", val, exp))
		_ = cache.Set(ctx, newLocalEntry("b", val, exp))
		_ = cache.Set(ctx, newLocalEntry("c", val, exp))

		if ok, _ := cache.Contains(ctx, "a"); ok {
			t.Error("a should have been evicted to fit c")
		}
		for _, key := range []string{"b", "c"} {
			if ok, _ := cache.Contains(ctx, key); !ok {
				t.Errorf("%s should still be present", key)
			}
		}

		if max := cache.MaxSize(); cache.Size() > max {
			t.Errorf("Size() = %d exceeds MaxSize() = %d", cache.Size(), max)
		}
	})

	t.Run("reports evictions through the removal hook", func(t *testing.T) {
		clock := testClock()
		cfg := testLocalConfig()
		cfg.MaxEntries = 2

		var mu sync.Mutex
		var evictedTotal int
		cache := NewLocalCache(cfg, clock, nil, func(evicted, expired int) {
			mu.Lock()
			evictedTotal += evicted
			mu.Unlock()
		})
		defer cache.Close()

		exp := clock.Now().Add(time.Minute)
		_ = cache.Set(ctx, newLocalEntry("a", []byte("1"), exp))
		_ = cache.Set(ctx, newLocalEntry("b", []byte("2"), exp))
		_ = cache.Set(ctx, newLocalEntry("c", []byte("3"), exp))

		mu.Lock()
		defer mu.Unlock()
		if evictedTotal != 1 {
			t.Errorf("hook evicted total = %d, want 1", evictedTotal)
		}
	})
}

func TestLocalCacheDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes existing key", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value1"), clock.Now().Add(time.Minute)))

		if err := cache.Delete(ctx, "key1"); err != nil {
			t.Errorf("Delete() error = %v, want nil", err)
		}

		_, err := cache.Get(ctx, "key1")
		if !errors.Is(err, types.ErrCacheMiss) {
			t.Errorf("Get() after delete error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("no error for non-existent key", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)
		defer cache.Close()

		if err := cache.Delete(ctx, "non-existent"); err != nil {
			t.Errorf("Delete() error = %v, want nil", err)
		}
	})

	t.Run("returns error when closed", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)
		cache.Close()

		if err := cache.Delete(ctx, "key"); !errors.Is(err, types.ErrClosed) {
			t.Errorf("Delete() error = %v, want ErrClosed", err)
		}
	})

	t.Run("counts only actual removals", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value1"), clock.Now().Add(time.Minute)))
		_ = cache.Delete(ctx, "key1")
		_ = cache.Delete(ctx, "key2") // non-existent

		stats := cache.Stats()
		if stats.Deletes != 1 {
			t.Errorf("Deletes = %d, want 1", stats.Deletes)
		}
	})
}

func TestLocalCacheDeleteMany(t *testing.T) {
	ctx := context.Background()

	t.Run("removes batch and reports count", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		exp := clock.Now().Add(time.Minute)
		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value1"), exp))
		_ = cache.Set(ctx, newLocalEntry("key2", []byte("value2"), exp))

		removed := cache.DeleteMany(ctx, []string{"key1", "key2", "key3"})
		if removed != 2 {
			t.Errorf("DeleteMany() = %d, want 2", removed)
		}
		if count := cache.EntryCount(); count != 0 {
			t.Errorf("EntryCount() = %d, want 0", count)
		}
	})

	t.Run("returns zero when closed", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)
		cache.Close()

		if removed := cache.DeleteMany(ctx, []string{"key"}); removed != 0 {
			t.Errorf("DeleteMany() = %d, want 0", removed)
		}
	})
}

func TestLocalCacheContains(t *testing.T) {
	ctx := context.Background()

	t.Run("returns true for existing key", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value1"), clock.Now().Add(time.Minute)))

		exists, err := cache.Contains(ctx, "key1")
		if err != nil {
			t.Errorf("Contains() error = %v, want nil", err)
		}
		if !exists {
			t.Error("Contains() = false, want true")
		}
	})

	t.Run("returns false for non-existent key", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)
		defer cache.Close()

		exists, err := cache.Contains(ctx, "non-existent")
		if err != nil {
			t.Errorf("Contains() error = %v, want nil", err)
		}
		if exists {
			t.Error("Contains() = true, want false")
		}
	})

	t.Run("expired entry counts as absent without removal", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value1"), clock.Now().Add(10*time.Second)))
		clock.Advance(11 * time.Second)

		exists, _ := cache.Contains(ctx, "key1")
		if exists {
			t.Error("Contains() = true for expired entry, want false")
		}
		if count := cache.EntryCount(); count != 1 {
			t.Errorf("EntryCount() = %d, want 1 (sweep removes it, not Contains)", count)
		}
	})

	t.Run("returns error when closed", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)
		cache.Close()

		_, err := cache.Contains(ctx, "key")
		if !errors.Is(err, types.ErrClosed) {
			t.Errorf("Contains() error = %v, want ErrClosed", err)
		}
	})
}

func TestLocalCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes matching keys and returns them", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		exp := clock.Now().Add(time.Minute)
		_ = cache.Set(ctx, newLocalEntry("user:1", []byte("data1"), exp))
		_ = cache.Set(ctx, newLocalEntry("user:2", []byte("data2"), exp))
		_ = cache.Set(ctx, newLocalEntry("session:1", []byte("sess1"), exp))

		removed, err := cache.DeleteByPattern(ctx, "user:*")
		if err != nil {
			t.Fatalf("DeleteByPattern() error = %v, want nil", err)
		}

		sort.Strings(removed)
		want := []string{"user:1", "user:2"}
		if len(removed) != len(want) || removed[0] != want[0] || removed[1] != want[1] {
			t.Errorf("DeleteByPattern() = %v, want %v", removed, want)
		}

		if _, err := cache.Get(ctx, "session:1"); err != nil {
			t.Error("session:1 should still exist")
		}
	})

	t.Run("returns error when closed", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)
		cache.Close()

		_, err := cache.DeleteByPattern(ctx, "*")
		if !errors.Is(err, types.ErrClosed) {
			t.Errorf("DeleteByPattern() error = %v, want ErrClosed", err)
		}
	})
}

func TestLocalCacheKeys(t *testing.T) {
	ctx := context.Background()
	clock := testClock()
	cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
	defer cache.Close()

	_ = cache.Set(ctx, newLocalEntry("short", []byte("v"), clock.Now().Add(10*time.Second)))
	_ = cache.Set(ctx, newLocalEntry("long", []byte("v"), clock.Now().Add(100*time.Second)))

	clock.Advance(11 * time.Second)

	keys := cache.Keys()
	if len(keys) != 1 || keys[0] != "long" {
		t.Errorf("Keys() = %v, want [long]", keys)
	}
}

func TestLocalCacheClear(t *testing.T) {
	ctx := context.Background()

	t.Run("removes all entries", func(t *testing.T) {
		clock := testClock()
		cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
		defer cache.Close()

		exp := clock.Now().Add(time.Minute)
		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value1"), exp))
		_ = cache.Set(ctx, newLocalEntry("key2", []byte("value2"), exp))

		if err := cache.Clear(ctx); err != nil {
			t.Errorf("Clear() error = %v, want nil", err)
		}
		if count := cache.EntryCount(); count != 0 {
			t.Errorf("EntryCount() after Clear = %d, want 0", count)
		}
		if size := cache.Size(); size != 0 {
			t.Errorf("Size() after Clear = %d, want 0", size)
		}
	})

	t.Run("returns error when closed", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)
		cache.Close()

		if err := cache.Clear(ctx); !errors.Is(err, types.ErrClosed) {
			t.Errorf("Clear() error = %v, want ErrClosed", err)
		}
	})
}

func TestLocalCacheSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("removes expired entries", func(t *testing.T) {
		clock := testClock()

		var mu sync.Mutex
		var expiredTotal int
		cache := NewLocalCache(testLocalConfig(), clock, nil, func(evicted, expired int) {
			mu.Lock()
			expiredTotal += expired
			mu.Unlock()
		})
		defer cache.Close()

		_ = cache.Set(ctx, newLocalEntry("old1", []byte("v"), clock.Now().Add(5*time.Second)))
		_ = cache.Set(ctx, newLocalEntry("old2", []byte("v"), clock.Now().Add(5*time.Second)))
		_ = cache.Set(ctx, newLocalEntry("fresh", []byte("v"), clock.Now().Add(time.Hour)))

		clock.Advance(6 * time.Second)
		cache.sweepExpired()

		if count := cache.EntryCount(); count != 1 {
			t.Errorf("EntryCount() after sweep = %d, want 1", count)
		}

		stats := cache.Stats()
		if stats.Expirations != 2 {
			t.Errorf("Expirations = %d, want 2", stats.Expirations)
		}

		mu.Lock()
		defer mu.Unlock()
		if expiredTotal != 2 {
			t.Errorf("hook expired total = %d, want 2", expiredTotal)
		}
	})

	t.Run("close stops the sweep goroutine", func(t *testing.T) {
		cfg := testLocalConfig()
		cfg.CleanupInterval = 5 * time.Millisecond
		cache := NewLocalCache(cfg, nil, nil, nil)

		time.Sleep(15 * time.Millisecond)

		done := make(chan struct{})
		go func() {
			cache.Close()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Close() did not return, sweep goroutine stuck")
		}
	})
}

func TestLocalCacheClose(t *testing.T) {
	t.Run("closes successfully", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)

		if err := cache.Close(); err != nil {
			t.Errorf("Close() error = %v, want nil", err)
		}
	})

	t.Run("double close is safe", func(t *testing.T) {
		cache := NewLocalCache(testLocalConfig(), testClock(), nil, nil)

		cache.Close()
		if err := cache.Close(); err != nil {
			t.Errorf("second Close() error = %v, want nil", err)
		}
	})
}

func TestLocalCacheStats(t *testing.T) {
	ctx := context.Background()
	clock := testClock()
	cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
	defer cache.Close()

	exp := clock.Now().Add(time.Minute)
	_ = cache.Set(ctx, newLocalEntry("key1", []byte("value1"), exp))
	_ = cache.Set(ctx, newLocalEntry("key2", []byte("value2"), exp))
	_, _ = cache.Get(ctx, "key1")         // hit
	_, _ = cache.Get(ctx, "key1")         // hit
	_, _ = cache.Get(ctx, "non-existent") // miss
	_ = cache.Delete(ctx, "key1")

	stats := cache.Stats()
	if stats.Sets != 2 {
		t.Errorf("Sets = %d, want 2", stats.Sets)
	}
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Deletes != 1 {
		t.Errorf("Deletes = %d, want 1", stats.Deletes)
	}
}

func TestLocalCacheSizeAccounting(t *testing.T) {
	ctx := context.Background()
	clock := testClock()
	cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
	defer cache.Close()

	if size := cache.Size(); size != 0 {
		t.Errorf("initial Size() = %d, want 0", size)
	}

	exp := clock.Now().Add(time.Minute)
	_ = cache.Set(ctx, newLocalEntry("key1", make([]byte, 100), exp))

	want := int64(len("key1") + 100)
	if size := cache.Size(); size != want {
		t.Errorf("Size() = %d, want %d", size, want)
	}

	_ = cache.Delete(ctx, "key1")
	if size := cache.Size(); size != 0 {
		t.Errorf("Size() after delete = %d, want 0", size)
	}
}

func TestLocalCacheMaxSize(t *testing.T) {
	cfg := testLocalConfig()
	cfg.MaxSizeMB = 32
	cache := NewLocalCache(cfg, testClock(), nil, nil)
	defer cache.Close()

	expected := int64(32 * 1024 * 1024)
	if maxSize := cache.MaxSize(); maxSize != expected {
		t.Errorf("MaxSize() = %d, want %d", maxSize, expected)
	}
}

func TestLocalCacheHitRatio(t *testing.T) {
	ctx := context.Background()
	clock := testClock()
	cache := NewLocalCache(testLocalConfig(), clock, nil, nil)
	defer cache.Close()

	t.Run("returns 0 when no operations", func(t *testing.T) {
		if ratio := cache.HitRatio(); ratio != 0 {
			t.Errorf("initial HitRatio() = %f, want 0", ratio)
		}
	})

	t.Run("calculates correctly", func(t *testing.T) {
		_ = cache.Set(ctx, newLocalEntry("key1", []byte("value1"), clock.Now().Add(time.Minute)))

		_, _ = cache.Get(ctx, "key1")         // hit
		_, _ = cache.Get(ctx, "key1")         // hit
		_, _ = cache.Get(ctx, "key1")         // hit
		_, _ = cache.Get(ctx, "non-existent") // miss

		ratio := cache.HitRatio()
		if ratio < 0.74 || ratio > 0.76 {
			t.Errorf("HitRatio() = %f, want ~0.75", ratio)
		}
	})
}

func TestLocalCacheConcurrency(t *testing.T) {
	ctx := context.Background()
	clock := testClock()
	cfg := testLocalConfig()
	cfg.MaxEntries = 100
	cache := NewLocalCache(cfg, clock, nil, nil)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%26))
			_ = cache.Set(ctx, newLocalEntry(key, []byte("value"), clock.Now().Add(time.Minute)))
		}(i)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%26))
			_, _ = cache.Get(ctx, key)
		}(i)
		go func(n int) {
			defer wg.Done()
			if n%10 == 0 {
				_, _ = cache.DeleteByPattern(ctx, "a*")
			}
			_ = cache.Keys()
		}(i)
	}
	wg.Wait()

	if count := cache.EntryCount(); count > 26 {
		t.Errorf("EntryCount() = %d, want <= 26", count)
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		key      string
		pattern  string
		expected bool
	}{
		// Wildcard all
		{"anything", "*", true},
		{"", "*", true},

		// Prefix patterns
		{"user:123", "user:*", true},
		{"user:", "user:*", true},
		{"session:123", "user:*", false},

		// Suffix patterns
		{"key:session", "*:session", true},
		{":session", "*:session", true},
		{"key:data", "*:session", false},

		// Middle wildcard patterns
		{"user:123:session", "user:*:session", true},
		{"user::session", "user:*:session", true},
		{"session:123:data", "user:*:session", false},

		// Exact match
		{"user:123", "user:123", true},
		{"user:123", "user:124", false},
	}

	for _, tt := range tests {
		t.Run(tt.key+"_"+tt.pattern, func(t *testing.T) {
			result := matchPattern(tt.key, tt.pattern)
			if result != tt.expected {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.key, tt.pattern, result, tt.expected)
			}
		})
	}
}
