package cache

import (
	"container/list"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strata-go/strata/internal/config"
	"github.com/strata-go/strata/internal/types"
)

// localEntry wraps a stored entry with its recency-list node and the size
// charged against the byte budget.
type localEntry struct {
	entry   *types.CacheEntry
	element *list.Element
	size    int64
}

// LocalCache implements the in-process tier: a map plus a doubly-linked
// recency list (front = most recently used) guarded by one mutex. Every
// entry carries an absolute expiry; expired entries are misses and are
// removed on read or by the background sweep.
type LocalCache struct {
	config config.LocalConfig
	logger *slog.Logger
	clock  types.Clock

	// onRemove is invoked outside the lock after capacity evictions or
	// expirations, with how many entries each removed.
	onRemove func(evicted, expired int)

	mu        sync.Mutex
	entries   map[string]*localEntry
	recency   *list.List
	sizeBytes int64

	hits        atomic.Int64
	misses      atomic.Int64
	sets        atomic.Int64
	deletes     atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64

	closed atomic.Bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewLocalCache creates the local tier. clock defaults to the wall clock
// and onRemove may be nil.
func NewLocalCache(cfg config.LocalConfig, clock types.Clock, logger *slog.Logger, onRemove func(evicted, expired int)) *LocalCache {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.SystemClock()
	}

	c := &LocalCache{
		config:   cfg,
		logger:   logger.With("component", "local-cache"),
		clock:    clock,
		onRemove: onRemove,
		entries:  make(map[string]*localEntry),
		recency:  list.New(),
		stopCh:   make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop()
	}

	return c
}

// Name returns the tier name.
func (c *LocalCache) Name() string {
	return "local"
}

// IsAvailable returns true if the cache is not closed.
func (c *LocalCache) IsAvailable() bool {
	return !c.closed.Load()
}

// Get retrieves an entry. Expired entries are removed on the spot and
// reported as a miss. The returned entry is a snapshot; its Value is the
// stored frame and must be treated as read-only.
func (c *LocalCache) Get(ctx context.Context, key string) (*types.CacheEntry, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	now := c.clock.Now()

	c.mu.Lock()
	le, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, types.ErrCacheMiss
	}

	if le.entry.IsExpired(now) {
		c.removeLocked(le)
		c.mu.Unlock()
		c.misses.Add(1)
		c.expirations.Add(1)
		c.notifyRemove(0, 1)
		return nil, types.ErrCacheMiss
	}

	c.recency.MoveToFront(le.element)
	le.entry.LastAccessed = now
	le.entry.AccessCount++
	snapshot := *le.entry
	c.mu.Unlock()

	c.hits.Add(1)
	return &snapshot, nil
}

// Contains reports whether a live entry exists for the key. Expired
// entries count as absent but are left for the sweep; Contains never
// touches recency or stats.
func (c *LocalCache) Contains(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}

	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	le, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return !le.entry.IsExpired(now), nil
}

// Set stores an entry, evicting from the least-recently-used end until
// both the entry and byte budgets admit it. An entry with no expiry gets
// the configured default TTL. Entries larger than MaxEntrySize are
// skipped.
func (c *LocalCache) Set(ctx context.Context, entry *types.CacheEntry) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	now := c.clock.Now()
	size := int64(len(entry.Key)) + int64(len(entry.Value))

	if c.config.MaxEntrySize > 0 && size > int64(c.config.MaxEntrySize) {
		c.logger.Warn("Entry too large for local tier, skipping",
			"key", entry.Key,
			"size", size,
			"max_entry_size", c.config.MaxEntrySize,
		)
		return nil
	}

	maxBytes := c.MaxSize()
	if maxBytes > 0 && size > maxBytes {
		c.logger.Warn("Entry exceeds local tier capacity, skipping",
			"key", entry.Key,
			"size", size,
			"max_bytes", maxBytes,
		)
		return nil
	}

	stored := *entry
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = now.Add(c.config.DefaultTTL)
	}
	stored.LastAccessed = now
	stored.SizeBytes = size

	var evicted int

	c.mu.Lock()
	if existing, ok := c.entries[entry.Key]; ok {
		c.removeLocked(existing)
	}

	for c.overBudgetLocked(size) && c.recency.Len() > 0 {
		oldest := c.recency.Back()
		c.removeLocked(oldest.Value.(*localEntry))
		evicted++
	}

	le := &localEntry{entry: &stored, size: size}
	le.element = c.recency.PushFront(le)
	c.entries[stored.Key] = le
	c.sizeBytes += size
	c.mu.Unlock()

	c.sets.Add(1)
	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		c.notifyRemove(evicted, 0)
	}
	return nil
}

// overBudgetLocked reports whether admitting size more bytes would break
// either cap. Caller holds the lock.
func (c *LocalCache) overBudgetLocked(size int64) bool {
	if c.config.MaxEntries > 0 && len(c.entries) >= c.config.MaxEntries {
		return true
	}
	if maxBytes := c.MaxSize(); maxBytes > 0 && c.sizeBytes+size > maxBytes {
		return true
	}
	return false
}

// ReplaceIfVersion atomically replaces the entry stored under entry.Key,
// but only if the current entry is live and still at the given version.
// It returns false when the key is absent, expired, or was rewritten
// since the version was captured, leaving the store untouched. Admission
// and eviction rules match Set.
func (c *LocalCache) ReplaceIfVersion(ctx context.Context, entry *types.CacheEntry, version uint64) bool {
	if c.closed.Load() {
		return false
	}

	now := c.clock.Now()
	size := int64(len(entry.Key)) + int64(len(entry.Value))

	if c.config.MaxEntrySize > 0 && size > int64(c.config.MaxEntrySize) {
		return false
	}
	maxBytes := c.MaxSize()
	if maxBytes > 0 && size > maxBytes {
		return false
	}

	stored := *entry
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = now.Add(c.config.DefaultTTL)
	}
	stored.LastAccessed = now
	stored.SizeBytes = size

	var evicted int

	c.mu.Lock()
	existing, ok := c.entries[entry.Key]
	if !ok || existing.entry.IsExpired(now) || existing.entry.Version != version {
		c.mu.Unlock()
		return false
	}
	c.removeLocked(existing)

	for c.overBudgetLocked(size) && c.recency.Len() > 0 {
		oldest := c.recency.Back()
		c.removeLocked(oldest.Value.(*localEntry))
		evicted++
	}

	le := &localEntry{entry: &stored, size: size}
	le.element = c.recency.PushFront(le)
	c.entries[stored.Key] = le
	c.sizeBytes += size
	c.mu.Unlock()

	c.sets.Add(1)
	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		c.notifyRemove(evicted, 0)
	}
	return true
}

// Delete removes an entry. Deleting an absent key is not an error.
func (c *LocalCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	c.mu.Lock()
	le, ok := c.entries[key]
	if ok {
		c.removeLocked(le)
	}
	c.mu.Unlock()

	if ok {
		c.deletes.Add(1)
	}
	return nil
}

// DeleteMany removes a batch of keys and returns how many existed.
func (c *LocalCache) DeleteMany(ctx context.Context, keys []string) int {
	if c.closed.Load() {
		return 0
	}

	removed := 0
	c.mu.Lock()
	for _, key := range keys {
		if le, ok := c.entries[key]; ok {
			c.removeLocked(le)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.deletes.Add(int64(removed))
	}
	return removed
}

// DeleteByPattern removes every key matching a *-wildcard pattern and
// returns the removed keys.
func (c *LocalCache) DeleteByPattern(ctx context.Context, pattern string) ([]string, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	var removed []string

	c.mu.Lock()
	for key, le := range c.entries {
		if matchPattern(key, pattern) {
			c.removeLocked(le)
			removed = append(removed, key)
		}
	}
	c.mu.Unlock()

	if len(removed) > 0 {
		c.deletes.Add(int64(len(removed)))
	}

	c.logger.Debug("Deleted entries by pattern",
		"pattern", pattern,
		"deleted", len(removed),
	)
	return removed, nil
}

// Keys returns a snapshot of the live (non-expired) keys.
func (c *LocalCache) Keys() []string {
	if c.closed.Load() {
		return nil
	}

	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key, le := range c.entries {
		if !le.entry.IsExpired(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Clear removes all entries.
func (c *LocalCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	c.mu.Lock()
	c.entries = make(map[string]*localEntry)
	c.recency.Init()
	c.sizeBytes = 0
	c.mu.Unlock()

	return nil
}

// Close stops the sweep goroutine and drops all entries. Safe to call
// more than once.
func (c *LocalCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.stopCh)
	c.wg.Wait()

	c.mu.Lock()
	c.entries = make(map[string]*localEntry)
	c.recency.Init()
	c.sizeBytes = 0
	c.mu.Unlock()

	return nil
}

// Stats returns local tier counters.
func (c *LocalCache) Stats() types.LocalCacheStats {
	return types.LocalCacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Deletes:     c.deletes.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
}

// EntryCount returns the number of stored entries, expired included.
func (c *LocalCache) EntryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Size returns the bytes currently charged against the budget.
func (c *LocalCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sizeBytes
}

// MaxSize returns the byte budget, or 0 when unbounded.
func (c *LocalCache) MaxSize() int64 {
	return int64(c.config.MaxSizeMB) * 1024 * 1024
}

// UsagePercentage returns the byte budget usage as a percentage.
func (c *LocalCache) UsagePercentage() float64 {
	maxBytes := c.MaxSize()
	if maxBytes == 0 {
		return 0
	}
	return float64(c.Size()) / float64(maxBytes) * 100
}

// HitRatio returns the cache hit ratio.
func (c *LocalCache) HitRatio() float64 {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// removeLocked unlinks an entry from the map, the recency list, and the
// byte accounting. Caller holds the lock.
func (c *LocalCache) removeLocked(le *localEntry) {
	c.recency.Remove(le.element)
	delete(c.entries, le.entry.Key)
	c.sizeBytes -= le.size
}

func (c *LocalCache) notifyRemove(evicted, expired int) {
	if c.onRemove != nil {
		c.onRemove(evicted, expired)
	}
}

func (c *LocalCache) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.stopCh:
			return
		}
	}
}

// sweepExpired removes every expired entry. Runs on the cleanup interval;
// collects under the lock, notifies outside it.
func (c *LocalCache) sweepExpired() {
	now := c.clock.Now()

	c.mu.Lock()
	var expired []*localEntry
	for _, le := range c.entries {
		if le.entry.IsExpired(now) {
			expired = append(expired, le)
		}
	}
	for _, le := range expired {
		c.removeLocked(le)
	}
	c.mu.Unlock()

	if len(expired) > 0 {
		c.expirations.Add(int64(len(expired)))
		c.notifyRemove(0, len(expired))
		c.logger.Debug("Swept expired entries", "count", len(expired))
	}
}

// matchPattern matches keys against *-wildcard globs: "*", "prefix*",
// "*suffix", "pre*post", or an exact key.
func matchPattern(key, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") && strings.Count(pattern, "*") == 1 {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}

	if strings.HasPrefix(pattern, "*") && strings.Count(pattern, "*") == 1 {
		return strings.HasSuffix(key, strings.TrimPrefix(pattern, "*"))
	}

	if strings.Contains(pattern, "*") {
		parts := strings.Split(pattern, "*")
		if len(parts) == 2 {
			return strings.HasPrefix(key, parts[0]) && strings.HasSuffix(key, parts[1])
		}
	}

	return key == pattern
}

var _ types.LocalTier = (*LocalCache)(nil)
