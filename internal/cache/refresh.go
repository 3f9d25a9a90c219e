package cache

import (
	"context"
	"sync"

	"github.com/strata-go/strata/internal/types"
)

// refreshEntry is one registered factory: enough to re-produce a key in
// the background with the options it was originally written under.
type refreshEntry struct {
	factory types.FactoryFunc
	options *types.CacheOptions
}

// refreshRegistry remembers which keys have a known factory and which
// are mid-refresh. Factories are registered by GetOrSet and Warm when
// the refresh option is set, overwritten on re-register, and dropped
// when the key is deleted or invalidated. A key whose entry simply
// expires keeps its registration; the next GetOrSet overwrites it.
type refreshRegistry struct {
	mu       sync.Mutex
	entries  map[string]refreshEntry
	inFlight map[string]struct{}
}

func newRefreshRegistry() *refreshRegistry {
	return &refreshRegistry{
		entries:  make(map[string]refreshEntry),
		inFlight: make(map[string]struct{}),
	}
}

func (r *refreshRegistry) register(key string, factory types.FactoryFunc, options *types.CacheOptions) {
	copied := *options
	r.mu.Lock()
	r.entries[key] = refreshEntry{factory: factory, options: &copied}
	r.mu.Unlock()
}

func (r *refreshRegistry) lookup(key string) (refreshEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	re, ok := r.entries[key]
	return re, ok
}

// forget drops a key's registration. A refresh already running for the
// key will fail its version fence, so the in-flight mark can go too.
func (r *refreshRegistry) forget(key string) {
	r.mu.Lock()
	delete(r.entries, key)
	delete(r.inFlight, key)
	r.mu.Unlock()
}

func (r *refreshRegistry) clear() {
	r.mu.Lock()
	r.entries = make(map[string]refreshEntry)
	r.inFlight = make(map[string]struct{})
	r.mu.Unlock()
}

// tryAcquire marks a key as mid-refresh. At most one refresh per key
// runs at a time; a second attempt before release fails.
func (r *refreshRegistry) tryAcquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[key]; busy {
		return false
	}
	r.inFlight[key] = struct{}{}
	return true
}

func (r *refreshRegistry) release(key string) {
	r.mu.Lock()
	delete(r.inFlight, key)
	r.mu.Unlock()
}

func (r *refreshRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// maybeScheduleRefresh schedules a background refresh after a local hit
// whose age has crossed the configured fraction of its TTL, provided a
// factory is still known for the key and no refresh for it is already
// running. The aging hit is served immediately either way; only the
// refresh happens in the background.
func (c *Coordinator) maybeScheduleRefresh(key string, entry *types.CacheEntry) {
	if !c.config.Refresh.Enabled {
		return
	}

	ttl := entry.ExpiresAt.Sub(entry.CreatedAt)
	if ttl <= 0 {
		return
	}
	age := c.clock.Now().Sub(entry.CreatedAt)
	if float64(age) < c.config.Refresh.Ratio*float64(ttl) {
		return
	}

	re, ok := c.refresh.lookup(key)
	if !ok {
		return
	}
	if !c.refresh.tryAcquire(key) {
		return
	}

	version := entry.Version
	timeout := c.config.Refresh.Timeout
	if timeout <= 0 {
		timeout = DefaultBackgroundOpTimeout
	}

	started := c.runBackground(timeout, func(ctx context.Context) {
		defer c.refresh.release(key)
		c.runRefresh(ctx, key, re, version)
	})
	if !started {
		c.refresh.release(key)
	}
}

// runRefresh re-invokes the key's factory and swaps the result in behind
// a version fence: if the entry was rewritten or removed while the
// factory ran, the result is discarded rather than clobbering newer
// data. The remote write happens only after the fence admits the local
// one.
func (c *Coordinator) runRefresh(ctx context.Context, key string, re refreshEntry, version uint64) {
	value, err := re.factory(ctx)
	if err != nil {
		c.recorder.RecordRefresh(key, false)
		c.logger.Debug("Background refresh factory failed", "key", key, "error", err)
		return
	}

	payload, flags, err := c.codec.Encode(value)
	if err != nil {
		c.recorder.RecordRefresh(key, false)
		c.logger.Debug("Background refresh encode failed", "key", key, "error", err)
		return
	}

	now := c.clock.Now()
	options := re.options
	entry := &types.CacheEntry{
		Key:          key,
		Value:        payload,
		CreatedAt:    now,
		ExpiresAt:    now.Add(options.TTL),
		Compressed:   flags.Compressed,
		Encrypted:    flags.Encrypted,
		Tags:         options.Tags,
		Dependencies: options.Dependencies,
		Version:      c.nextVersion(),
	}

	if !c.local.ReplaceIfVersion(ctx, entry, version) {
		c.recorder.RecordRefresh(key, false)
		c.logger.Debug("Background refresh discarded, entry changed while refreshing", "key", key)
		return
	}

	if c.useRemote(options) {
		if err := c.writeRemote(ctx, key, payload, options); err != nil {
			c.recorder.RecordDegraded("Refresh")
			c.logger.Debug("Background refresh remote write failed", "key", key, "error", err)
		}
	}

	c.recorder.RecordRefresh(key, true)
}
