package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/strata-go/strata/internal/codec"
	"github.com/strata-go/strata/internal/config"
	"github.com/strata-go/strata/internal/graph"
	"github.com/strata-go/strata/internal/metrics"
	"github.com/strata-go/strata/internal/resilience"
	"github.com/strata-go/strata/internal/types"
)

// DefaultShutdownTimeout bounds how long Close waits for background
// operations and in-flight factory calls before abandoning them.
const DefaultShutdownTimeout = 30 * time.Second

// DefaultBackgroundOpTimeout is the per-operation timeout for background
// work such as async deletes and tier promotion.
const DefaultBackgroundOpTimeout = 5 * time.Second

// Coordinator is the engine behind the public API. It owns both tiers,
// the codec, the resilience policy, the invalidation graph, and the
// single-flight group, and enforces the tier protocol: reads go local
// first, writes go local first, remote failures degrade to misses
// instead of surfacing.
type Coordinator struct {
	local  types.LocalTier
	remote types.RemoteTier
	codec  types.Codec
	policy *resilience.Policy
	graph  *graph.Graph

	config       *config.Config
	recorder     types.MetricsRecorder
	logger       *slog.Logger
	keyValidator *types.KeyValidator
	clock        types.Clock
	refresh      *refreshRegistry

	// ownedCodec is set when the coordinator built the codec itself and
	// is therefore responsible for closing it.
	ownedCodec *codec.Codec

	// remoteEnabled is false when configuration or options turned the
	// remote tier off; the disabled stub stays wired for stats and
	// health but no operation is routed to it.
	remoteEnabled bool

	// version stamps every write so a stale refresh result can detect
	// that it lost a race. Monotonic per coordinator instance.
	version atomic.Uint64

	sfGroup        singleflight.Group
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	bgWg           sync.WaitGroup
	bgMu           sync.Mutex
	closed         atomic.Bool
}

// NewCoordinator creates a coordinator from configuration. opts may be
// nil. The remote tier starting disconnected is not an error; the
// coordinator runs degraded until the health check restores it.
func NewCoordinator(cfg *config.Config, opts *types.CoordinatorOptions) (*Coordinator, error) {
	logger := slog.Default()
	if opts != nil && opts.Logger != nil {
		logger = slog.New(slogAdapter{logger: opts.Logger})
	}
	logger = logger.With("component", "cache-coordinator")

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	c := &Coordinator{
		config:         cfg,
		logger:         logger,
		clock:          types.SystemClock(),
		graph:          graph.New(),
		refresh:        newRefreshRegistry(),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	var serializer types.Serializer = codec.NewJSONSerializer()

	if opts != nil {
		if opts.Serializer != nil {
			serializer = opts.Serializer
		}
		if opts.Metrics != nil {
			c.recorder = opts.Metrics
		}
		if opts.Clock != nil {
			c.clock = opts.Clock
		}
		if opts.RemoteAddress != "" {
			cfg.Remote.Address = opts.RemoteAddress
		}
		if !opts.RemotePassword.IsEmpty() {
			cfg.Remote.Password = opts.RemotePassword
		}
		if opts.RemoteDB != 0 {
			cfg.Remote.DB = opts.RemoteDB
		}
		if opts.DisableRemote {
			cfg.Remote.Enabled = false
		}
		if opts.DisableResilience {
			cfg.CircuitBreaker.Enabled = false
			cfg.Retry.Enabled = false
			cfg.Bulkhead.Enabled = false
		}
	}

	if c.recorder == nil {
		c.recorder = metrics.NewTracker()
	}

	if opts != nil && opts.Codec != nil {
		c.codec = opts.Codec
	} else {
		cd, err := codec.New(cfg.Codec, serializer)
		if err != nil {
			shutdownCancel()
			return nil, fmt.Errorf("building codec: %w", err)
		}
		c.codec = cd
		c.ownedCodec = cd
	}

	if cfg.KeyValidation.Enabled {
		c.keyValidator = types.NewKeyValidator(cfg.KeyValidation.ToTypesConfig())
	}

	if cfg.Local.Enabled {
		recorder := c.recorder
		c.local = NewLocalCache(cfg.Local, c.clock, logger, func(evicted, expired int) {
			if evicted > 0 {
				recorder.RecordEviction(metrics.TierLocal, evicted)
			}
			if expired > 0 {
				recorder.RecordExpiration(metrics.TierLocal, expired)
			}
		})
	} else {
		c.local = NewDisabledLocalCache()
	}

	if cfg.Remote.Enabled {
		remote, err := NewRemoteCache(cfg.Remote, logger)
		if err != nil {
			logger.Warn("Failed to create remote tier, running local-only", "error", err)
			c.remote = NewDisabledRemoteCache()
		} else {
			c.remote = remote
			c.remoteEnabled = true
		}
	} else {
		c.remote = NewDisabledRemoteCache()
	}

	c.policy = resilience.NewPolicy(cfg)
	c.policy.SetOnCircuitStateChange(func(from, to resilience.State) {
		logger.Info("Circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
		c.recorder.RecordCircuitBreakerStateChange(from.String(), to.String())
	})

	return c, nil
}

// Get reads a value into dest. Reads consult the local tier first; a
// remote hit is decoded, promoted into the local tier with its remaining
// TTL capped at the local default, and returned. Remote and circuit
// failures are reported as a miss, never surfaced. A frame that fails to
// decode is evicted from both tiers and reported as a miss.
func (c *Coordinator) Get(ctx context.Context, key string, dest any, opts ...types.Option) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	if err := c.validateKey(key); err != nil {
		return err
	}

	start := time.Now()
	options := c.applyDefaults(opts...)

	if options.Level.IncludesLocal() && !options.SkipLocal {
		if entry, err := c.local.Get(ctx, key); err == nil {
			if decErr := c.codec.Decode(entry.Value, dest); decErr != nil {
				return c.dropCorrupt(ctx, "Get", key, decErr)
			}
			c.recorder.RecordHit(metrics.TierLocal, key, time.Since(start))
			c.maybeScheduleRefresh(key, entry)
			return nil
		}
	}

	if !c.useRemote(options) {
		c.recorder.RecordMiss(metrics.TierLocal, key, time.Since(start))
		return types.ErrCacheMiss
	}

	payload, err := c.fetchRemote(ctx, key)
	if err != nil {
		if !types.IsCacheMiss(err) {
			c.recorder.RecordError(metrics.TierRemote, "Get", err)
			c.recorder.RecordDegraded("Get")
			c.logger.Debug("Remote read failed, degrading to miss", "key", key, "error", err)
		}
		c.recorder.RecordMiss(metrics.TierRemote, key, time.Since(start))
		return types.ErrCacheMiss
	}

	if decErr := c.codec.Decode(payload.data, dest); decErr != nil {
		return c.dropCorrupt(ctx, "Get", key, decErr)
	}

	if options.Level.IncludesLocal() && !options.SkipLocal {
		c.promote(ctx, key, payload)
	}

	c.recorder.RecordHit(metrics.TierRemote, key, time.Since(start))
	return nil
}

// remotePayload is one remote read result: the stored frame plus the
// key's remaining TTL, zero when the store reported none.
type remotePayload struct {
	data []byte
	ttl  time.Duration
}

// fetchRemote reads one key through the resilience policy. A genuine
// miss must not count as a failure against the circuit breaker, so the
// closure reports it as a nil result rather than an error.
func (c *Coordinator) fetchRemote(ctx context.Context, key string) (*remotePayload, error) {
	if !c.remote.IsAvailable() {
		return nil, types.ErrRemoteUnavailable
	}

	result, err := c.policy.ExecuteWithResult(ctx, func(ctx context.Context) (any, error) {
		data, ttl, err := c.remote.GetWithTTL(ctx, key)
		if err != nil {
			if types.IsCacheMiss(err) {
				return (*remotePayload)(nil), nil
			}
			return nil, err
		}
		return &remotePayload{data: data, ttl: ttl}, nil
	})
	if err != nil {
		return nil, err
	}

	payload, ok := result.(*remotePayload)
	if !ok {
		return nil, fmt.Errorf("unexpected remote result type %T", result)
	}
	if payload == nil {
		return nil, types.ErrCacheMiss
	}
	return payload, nil
}

// promote copies a remote hit into the local tier, carrying over the
// remaining remote TTL capped at the local default so the local copy
// never outlives the remote one.
func (c *Coordinator) promote(ctx context.Context, key string, payload *remotePayload) {
	ttl := c.config.Local.DefaultTTL
	if payload.ttl > 0 && payload.ttl < ttl {
		ttl = payload.ttl
	}

	now := c.clock.Now()
	entry := &types.CacheEntry{
		Key:       key,
		Value:     payload.data,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Version:   c.nextVersion(),
	}
	if err := c.local.Set(ctx, entry); err != nil {
		c.logger.Debug("Failed to promote remote hit into local tier", "key", key, "error", err)
	}
}

// dropCorrupt handles a frame that failed integrity or deserialization
// on read: evict it from both tiers so the next read repopulates, then
// report a miss.
func (c *Coordinator) dropCorrupt(ctx context.Context, op, key string, decErr error) error {
	c.logger.Warn("Dropping undecodable cache entry",
		"op", op,
		"key", key,
		"error", decErr,
	)
	c.recorder.RecordError("codec", op, decErr)

	if err := c.local.Delete(ctx, key); err != nil {
		c.logger.Debug("Failed to evict corrupt entry from local tier", "key", key, "error", err)
	}
	if c.remoteEnabled {
		c.runBackground(DefaultBackgroundOpTimeout, func(ctx context.Context) {
			if err := c.remote.Delete(ctx, key); err != nil {
				c.logger.Debug("Failed to evict corrupt entry from remote tier", "key", key, "error", err)
			}
		})
	}
	c.graph.Remove(key)
	c.refresh.forget(key)

	return types.ErrCacheMiss
}

// Set encodes value once and writes it through the configured tiers,
// local first, so the local tier can never be the stale survivor of a
// partial write. Tags and dependencies are registered in the
// invalidation graph. With the default level a remote failure is logged
// and counted but not surfaced; remote-only writes surface it.
func (c *Coordinator) Set(ctx context.Context, key string, value any, opts ...types.Option) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	if err := c.validateKey(key); err != nil {
		return err
	}

	start := time.Now()
	options := c.applyDefaults(opts...)

	payload, flags, err := c.codec.Encode(value)
	if err != nil {
		c.recorder.RecordError("codec", "Set", err)
		return err
	}

	err = c.storeEncoded(ctx, key, payload, flags, options)
	c.recorder.RecordSet(options.Level.String(), key, len(payload), time.Since(start))
	return err
}

// storeEncoded writes an already-encoded frame through the tiers the
// options select, local first, and registers the key's graph edges.
func (c *Coordinator) storeEncoded(ctx context.Context, key string, payload []byte, flags types.CodecFlags, options *types.CacheOptions) error {
	now := c.clock.Now()

	if options.Level.IncludesLocal() && !options.SkipLocal {
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
		if err := c.local.Set(ctx, entry); err != nil {
			return err
		}
	}

	if c.useRemote(options) {
		if err := c.writeRemote(ctx, key, payload, options); err != nil {
			if options.Level == types.LevelRemoteOnly {
				return err
			}
			c.recorder.RecordError(metrics.TierRemote, "Set", err)
			c.recorder.RecordDegraded("Set")
			c.logger.Warn("Remote write failed, local tier holds the only copy", "key", key, "error", err)
		}
	}

	c.registerEdges(key, options)
	return nil
}

func (c *Coordinator) writeRemote(ctx context.Context, key string, payload []byte, options *types.CacheOptions) error {
	if options.FireAndForget {
		return c.remote.SetAsync(key, payload, options.TTL)
	}
	if !c.remote.IsAvailable() {
		return types.ErrRemoteUnavailable
	}
	return c.policy.Execute(ctx, func(ctx context.Context) error {
		return c.remote.Set(ctx, key, payload, options.TTL)
	})
}

// registerEdges records the key's tags and parents in the invalidation
// graph. Dependencies name the keys this entry was derived from, so the
// edge runs parent -> key.
func (c *Coordinator) registerEdges(key string, options *types.CacheOptions) {
	if len(options.Tags) > 0 {
		c.graph.RegisterTags(key, options.Tags)
	}
	for _, parent := range options.Dependencies {
		c.graph.RegisterDependencies(parent, []string{key})
	}
}

// GetOrSet reads the key and, on a miss, invokes factory exactly once no
// matter how many callers miss concurrently; every waiter receives the
// single outcome. The flight runs on the coordinator's own context, so
// one waiter's cancellation never aborts a flight other waiters share; a
// cancelled waiter just stops waiting. Factory failures are wrapped in
// FactoryError, delivered to every waiter, and nothing is cached.
func (c *Coordinator) GetOrSet(ctx context.Context, key string, dest any, factory types.FactoryFunc, opts ...types.Option) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	if err := c.validateKey(key); err != nil {
		return err
	}
	if factory == nil {
		return fmt.Errorf("cache: GetOrSet requires a factory for key %q", key)
	}

	err := c.Get(ctx, key, dest, opts...)
	if err == nil {
		return nil
	}
	if !types.IsCacheMiss(err) {
		return err
	}

	options := c.applyDefaults(opts...)

	ch := c.sfGroup.DoChan(key, func() (any, error) {
		return c.runFlight(key, factory, options)
	})

	select {
	case <-ctx.Done():
		// The flight keeps running for the remaining waiters.
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		payload, ok := res.Val.([]byte)
		if !ok {
			return fmt.Errorf("unexpected flight result type %T", res.Val)
		}
		if decErr := c.codec.Decode(payload, dest); decErr != nil {
			return c.dropCorrupt(ctx, "GetOrSet", key, decErr)
		}
		return nil
	}
}

// runFlight produces and stores the value for one single-flight miss,
// returning the encoded frame every waiter decodes into its own dest.
func (c *Coordinator) runFlight(key string, factory types.FactoryFunc, options *types.CacheOptions) (any, error) {
	if !c.beginBackground() {
		return nil, types.ErrClosed
	}
	defer c.endBackground()

	ctx := c.shutdownCtx
	start := time.Now()

	// A racing writer may have filled the key between the caller's miss
	// and this flight starting.
	if payload, ok := c.lookupEncoded(ctx, key, options); ok {
		return payload, nil
	}

	value, err := factory(ctx)
	if err != nil {
		return nil, types.NewFactoryError(key, err)
	}

	payload, flags, err := c.codec.Encode(value)
	if err != nil {
		c.recorder.RecordError("codec", "GetOrSet", err)
		return nil, err
	}

	// The factory result is still served to every waiter even if
	// caching it fails.
	if err := c.storeEncoded(ctx, key, payload, flags, options); err != nil {
		c.logger.Warn("Failed to store factory result", "key", key, "error", err)
	}
	c.recorder.RecordSet(options.Level.String(), key, len(payload), time.Since(start))

	if c.config.Refresh.Enabled && options.Refresh {
		c.refresh.register(key, factory, options)
	}

	return payload, nil
}

// lookupEncoded fetches the stored frame for a key without decoding it.
// Remote failures count as absence.
func (c *Coordinator) lookupEncoded(ctx context.Context, key string, options *types.CacheOptions) ([]byte, bool) {
	if options.Level.IncludesLocal() && !options.SkipLocal {
		if entry, err := c.local.Get(ctx, key); err == nil {
			return entry.Value, true
		}
	}
	if c.useRemote(options) {
		if payload, err := c.fetchRemote(ctx, key); err == nil {
			return payload.data, true
		}
	}
	return nil, false
}

// Delete removes a key from the tiers the options select, along with its
// graph edges and any registered refresh factory. Deleting an absent key
// is not an error.
func (c *Coordinator) Delete(ctx context.Context, key string, opts ...types.Option) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	if err := c.validateKey(key); err != nil {
		return err
	}

	start := time.Now()
	options := c.applyDefaults(opts...)

	var errs []error
	if options.Level.IncludesLocal() {
		if err := c.local.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if c.useRemote(options) {
		if err := c.remote.Delete(ctx, key); err != nil {
			if types.IsRemoteUnavailable(err) {
				c.recorder.RecordDegraded("Delete")
			}
			errs = append(errs, err)
		}
	}

	c.graph.Remove(key)
	c.refresh.forget(key)
	c.recorder.RecordDelete(options.Level.String(), key, time.Since(start))

	return errors.Join(errs...)
}

// DeleteMany removes a batch of keys from the selected tiers and returns
// how many existed in at least one of them.
func (c *Coordinator) DeleteMany(ctx context.Context, keys []string, opts ...types.Option) (int, error) {
	if c.closed.Load() {
		return 0, types.ErrClosed
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.validateKeys(keys); err != nil {
		return 0, err
	}

	start := time.Now()
	options := c.applyDefaults(opts...)

	var removed int
	var errs []error

	if options.Level.IncludesLocal() {
		removed = c.local.DeleteMany(ctx, keys)
	}
	if c.useRemote(options) {
		n, err := c.remote.DeleteMany(ctx, keys)
		if err != nil {
			if types.IsRemoteUnavailable(err) {
				c.recorder.RecordDegraded("DeleteMany")
			}
			errs = append(errs, err)
		}
		if n > removed {
			removed = n
		}
	}

	for _, key := range keys {
		c.graph.Remove(key)
		c.refresh.forget(key)
	}
	c.recorder.RecordDelete(options.Level.String(), "", time.Since(start))

	return removed, errors.Join(errs...)
}

// InvalidateRequest names what one invalidation covers: explicit keys,
// every key carrying one of the tags, and *-glob patterns expanded
// against both tiers. Cascade extends the resolved set with all
// transitive dependents.
type InvalidateRequest struct {
	Keys     []string
	Tags     []string
	Patterns []string
	Cascade  bool
}

// Invalidate resolves the request through the invalidation graph and
// removes the resulting key set from both tiers, returning how many keys
// it removed. Pattern matches are expanded against live tier contents
// first so they cascade like explicit keys. A remote failure leaves the
// remote copies behind and is returned after the local work is done.
func (c *Coordinator) Invalidate(ctx context.Context, req InvalidateRequest) (int, error) {
	if c.closed.Load() {
		return 0, types.ErrClosed
	}
	if err := c.validateKeys(req.Keys); err != nil {
		return 0, err
	}

	start := time.Now()

	var errs []error
	seeds := make([]string, 0, len(req.Keys))
	seeds = append(seeds, req.Keys...)

	for _, pattern := range req.Patterns {
		matched, err := c.local.DeleteByPattern(ctx, pattern)
		if err != nil {
			errs = append(errs, err)
		}
		seeds = append(seeds, matched...)

		if c.remoteEnabled {
			removed, err := c.remote.DeleteByPattern(ctx, pattern)
			if err != nil {
				if types.IsRemoteUnavailable(err) {
					c.recorder.RecordDegraded("Invalidate")
				}
				errs = append(errs, err)
			}
			seeds = append(seeds, removed...)
		}
	}

	keys := c.graph.Resolve(graph.Request{Keys: seeds, Tags: req.Tags, Cascade: req.Cascade})
	if len(keys) == 0 {
		return 0, errors.Join(errs...)
	}

	c.local.DeleteMany(ctx, keys)
	if c.remoteEnabled {
		if _, err := c.remote.DeleteMany(ctx, keys); err != nil {
			if types.IsRemoteUnavailable(err) {
				c.recorder.RecordDegraded("Invalidate")
			}
			errs = append(errs, err)
		}
	}

	for _, key := range keys {
		c.graph.Remove(key)
		c.refresh.forget(key)
	}

	c.recorder.RecordDelete("invalidate", "", time.Since(start))
	c.logger.Debug("Invalidated cache keys",
		"count", len(keys),
		"tags", len(req.Tags),
		"patterns", len(req.Patterns),
		"cascade", req.Cascade,
	)

	return len(keys), errors.Join(errs...)
}

// Contains reports whether a live entry exists in any selected tier
// without touching recency or hit statistics. Remote failures count as
// absence, consistent with Get degrading to a miss.
func (c *Coordinator) Contains(ctx context.Context, key string, opts ...types.Option) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}
	if err := c.validateKey(key); err != nil {
		return false, err
	}

	options := c.applyDefaults(opts...)

	if options.Level.IncludesLocal() && !options.SkipLocal {
		if exists, err := c.local.Contains(ctx, key); err == nil && exists {
			return true, nil
		}
	}

	if c.useRemote(options) {
		exists, err := c.remote.Contains(ctx, key)
		if err != nil {
			c.recorder.RecordDegraded("Contains")
			c.logger.Debug("Remote contains check failed", "key", key, "error", err)
			return false, nil
		}
		return exists, nil
	}

	return false, nil
}

// GetMany reads a batch of keys and returns the stored frames for those
// found, local hits first, then one batched remote read for the rest.
// Remote hits are promoted into the local tier in the background. The
// values are encoded frames; decode each with Decode.
func (c *Coordinator) GetMany(ctx context.Context, keys []string, opts ...types.Option) (map[string][]byte, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	if err := c.validateKeys(keys); err != nil {
		return nil, err
	}

	options := c.applyDefaults(opts...)
	results := make(map[string][]byte)
	var missing []string

	if options.Level.IncludesLocal() && !options.SkipLocal {
		for _, key := range keys {
			if entry, err := c.local.Get(ctx, key); err == nil {
				results[key] = entry.Value
			} else {
				missing = append(missing, key)
			}
		}
	} else {
		missing = keys
	}

	if len(missing) > 0 && c.useRemote(options) && c.remote.IsAvailable() {
		remoteResults, err := c.remote.GetMany(ctx, missing)
		if err != nil {
			c.recorder.RecordDegraded("GetMany")
			c.logger.Debug("Remote batch read failed, degrading to local results", "error", err)
			return results, nil
		}
		for key, payload := range remoteResults {
			results[key] = payload
			if options.Level.IncludesLocal() && !options.SkipLocal {
				c.runBackground(DefaultBackgroundOpTimeout, func(ctx context.Context) {
					c.promote(ctx, key, &remotePayload{data: payload})
				})
			}
		}
	}

	return results, nil
}

// SetMany encodes and writes a batch, local tier entry by entry, remote
// tier in one pipelined call. Any encode failure aborts the batch before
// anything is written.
func (c *Coordinator) SetMany(ctx context.Context, items map[string]any, opts ...types.Option) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	if len(items) == 0 {
		return nil
	}

	options := c.applyDefaults(opts...)
	start := time.Now()

	encoded := make(map[string][]byte, len(items))
	flagsByKey := make(map[string]types.CodecFlags, len(items))
	for key, value := range items {
		if err := c.validateKey(key); err != nil {
			return err
		}
		payload, flags, err := c.codec.Encode(value)
		if err != nil {
			c.recorder.RecordError("codec", "SetMany", err)
			return fmt.Errorf("encoding %q: %w", key, err)
		}
		encoded[key] = payload
		flagsByKey[key] = flags
	}

	now := c.clock.Now()
	if options.Level.IncludesLocal() && !options.SkipLocal {
		for key, payload := range encoded {
			flags := flagsByKey[key]
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
			if err := c.local.Set(ctx, entry); err != nil {
				return err
			}
		}
	}

	var remoteErr error
	if c.useRemote(options) {
		if options.FireAndForget {
			for key, payload := range encoded {
				if err := c.remote.SetAsync(key, payload, options.TTL); err != nil {
					remoteErr = err
				}
			}
		} else if c.remote.IsAvailable() {
			remoteErr = c.policy.Execute(ctx, func(ctx context.Context) error {
				return c.remote.SetMany(ctx, encoded, options.TTL)
			})
		} else {
			remoteErr = types.ErrRemoteUnavailable
		}

		if remoteErr != nil {
			if options.Level == types.LevelRemoteOnly {
				return remoteErr
			}
			c.recorder.RecordError(metrics.TierRemote, "SetMany", remoteErr)
			c.recorder.RecordDegraded("SetMany")
			c.logger.Warn("Remote batch write failed, local tier holds the only copies", "error", remoteErr)
		}
	}

	for key := range encoded {
		c.registerEdges(key, options)
	}
	c.recorder.RecordSet(options.Level.String(), "", len(encoded), time.Since(start))

	return nil
}

// Warm populates the cache from a batch of factories with bounded
// concurrency. Failures are isolated per entry: one failed factory never
// aborts the rest of the batch. The batch context applies to every
// factory call.
func (c *Coordinator) Warm(ctx context.Context, entries []types.WarmEntry) (*types.WarmResult, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	result := &types.WarmResult{Errors: make(map[string]error)}
	if len(entries) == 0 {
		return result, nil
	}

	concurrency := c.config.Defaults.WarmConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, entry := range entries {
		g.Go(func() error {
			err := c.warmOne(ctx, entry)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors[entry.Key] = err
			} else {
				result.Succeeded++
			}
			return nil
		})
	}

	_ = g.Wait()

	c.logger.Info("Cache warm completed",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return result, nil
}

func (c *Coordinator) warmOne(ctx context.Context, entry types.WarmEntry) error {
	if err := c.validateKey(entry.Key); err != nil {
		return err
	}
	if entry.Factory == nil {
		return fmt.Errorf("cache: warm entry %q has no factory", entry.Key)
	}

	options := types.DefaultOptions()
	if entry.Options != nil {
		copied := *entry.Options
		options = &copied
	}
	c.fillDefaults(options)

	value, err := entry.Factory(ctx)
	if err != nil {
		return types.NewFactoryError(entry.Key, err)
	}

	payload, flags, err := c.codec.Encode(value)
	if err != nil {
		return err
	}

	if err := c.storeEncoded(ctx, entry.Key, payload, flags, options); err != nil {
		return err
	}

	if c.config.Refresh.Enabled && options.Refresh {
		c.refresh.register(entry.Key, entry.Factory, options)
	}
	return nil
}

// Flush empties both tiers, the invalidation graph, and the refresh
// registry.
func (c *Coordinator) Flush(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	var errs []error
	if err := c.local.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	if c.remoteEnabled {
		if err := c.remote.Clear(ctx); err != nil {
			if types.IsRemoteUnavailable(err) {
				c.recorder.RecordDegraded("Flush")
			}
			errs = append(errs, err)
		}
	}

	c.graph.Clear()
	c.refresh.clear()

	c.logger.Info("Cache flushed")
	return errors.Join(errs...)
}

// Decode decodes a stored frame, as returned by GetMany, into dest.
func (c *Coordinator) Decode(data []byte, dest any) error {
	return c.codec.Decode(data, dest)
}

// Health reports the state of both tiers. Overall status is unhealthy
// only when the local tier is down, and degraded when the remote tier is
// enabled but unreachable or fenced off by the circuit breaker; a
// configuration that never enabled the remote tier is healthy on its
// own.
func (c *Coordinator) Health(ctx context.Context) (*types.HealthMetrics, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	stats := c.local.Stats()
	var snap types.MetricsSnapshot
	if s, ok := c.recorder.(interface{ Snapshot() types.MetricsSnapshot }); ok {
		snap = s.Snapshot()
	}

	localAvailable := c.local.IsAvailable()
	remoteAvailable := c.remote.IsAvailable()
	circuitOpen := c.policy.IsCircuitOpen()

	localStatus := types.HealthStatusHealthy
	if !localAvailable {
		localStatus = types.HealthStatusUnhealthy
	}

	remoteStatus := types.HealthStatusHealthy
	if c.remoteEnabled {
		switch {
		case !remoteAvailable:
			remoteStatus = types.HealthStatusUnhealthy
		case circuitOpen:
			remoteStatus = types.HealthStatusDegraded
		}
	}

	status := types.HealthStatusHealthy
	switch {
	case !localAvailable:
		status = types.HealthStatusUnhealthy
	case c.remoteEnabled && remoteStatus != types.HealthStatusHealthy:
		status = types.HealthStatusDegraded
	}

	health := &types.HealthMetrics{
		Timestamp: time.Now(),
		Status:    status,
		Local: types.LocalHealthMetrics{
			Status:          localStatus,
			Available:       localAvailable,
			EntryCount:      c.local.EntryCount(),
			SizeBytes:       c.local.Size(),
			MaxSizeBytes:    c.local.MaxSize(),
			UsagePercentage: c.local.UsagePercentage(),
			HitCount:        stats.Hits,
			MissCount:       stats.Misses,
			HitRatio:        c.local.HitRatio(),
			EvictionCount:   stats.Evictions,
		},
		Remote: types.RemoteHealthMetrics{
			Status:              remoteStatus,
			Available:           remoteAvailable && !circuitOpen,
			Connected:           remoteAvailable,
			CircuitBreakerState: c.policy.CircuitState().String(),
			PendingWrites:       c.remote.PendingWrites(),
			DroppedWrites:       c.remote.DroppedWrites(),
			HitCount:            snap.RemoteHits,
			MissCount:           snap.RemoteMisses,
			HitRatio:            snap.RemoteHitRatio(),
		},
	}

	if lastErr, at := c.remote.LastError(); lastErr != nil {
		health.Remote.LastError = lastErr.Error()
		health.Remote.LastErrorTime = at
	}

	return health, nil
}

// IsHealthy reports whether the cache is functioning, meaning the local
// tier is up; a degraded remote tier does not make the cache unhealthy.
func (c *Coordinator) IsHealthy(ctx context.Context) bool {
	return c.local.IsAvailable()
}

// IsRemoteAvailable reports whether the remote tier is connected and not
// fenced off by the circuit breaker.
func (c *Coordinator) IsRemoteAvailable() bool {
	return c.remote.IsAvailable() && !c.policy.IsCircuitOpen()
}

// IsLocalAvailable reports whether the local tier is up.
func (c *Coordinator) IsLocalAvailable() bool {
	return c.local.IsAvailable()
}

// Logger exposes the coordinator's logger so surrounding components
// (metric publishers, mainly) share the same sink.
func (c *Coordinator) Logger() *slog.Logger {
	return c.logger
}

// Metrics returns a point-in-time snapshot: the recorder's counters and
// latency digests overlaid with live tier gauges and resilience state.
func (c *Coordinator) Metrics() types.MetricsSnapshot {
	snap := types.MetricsSnapshot{Timestamp: time.Now()}
	if s, ok := c.recorder.(interface{ Snapshot() types.MetricsSnapshot }); ok {
		snap = s.Snapshot()
	}

	snap.LocalEntries = int64(c.local.EntryCount())
	snap.LocalSizeBytes = c.local.Size()
	snap.LocalMaxBytes = c.local.MaxSize()
	snap.LocalUsageRatio = c.local.UsagePercentage() / 100

	stats := c.local.Stats()
	snap.LocalEvictions = stats.Evictions
	snap.LocalExpirations = stats.Expirations

	snap.RemoteConnected = c.remote.IsAvailable()
	snap.RemotePendingWrites = c.remote.PendingWrites()
	snap.RemoteDroppedWrites = c.remote.DroppedWrites()
	snap.CircuitBreakerState = c.policy.CircuitState().String()

	retries, _, _ := c.policy.RetryStats()
	snap.RetryCount = retries
	_, _, rejected := c.policy.BulkheadStats()
	snap.BulkheadRejected = rejected

	return snap
}

// PublisherHealth condenses the current state into the view handed to
// metric publishers each publish interval.
func (c *Coordinator) PublisherHealth() *types.PublisherHealthMetrics {
	snap := c.Metrics()
	return &types.PublisherHealthMetrics{
		LocalUsedBytes:       snap.LocalSizeBytes,
		LocalLimitBytes:      snap.LocalMaxBytes,
		LocalUsagePercentage: snap.LocalUsageRatio * 100,
		TotalEntries:         snap.LocalEntries,
		HitRatio:             snap.TotalHitRatio(),
		AverageLatencyMs:     snap.AvgLatencyMs,
		RemoteConnected:      snap.RemoteConnected,
		CircuitBreakerState:  snap.CircuitBreakerState,
	}
}

// Close shuts down with the default timeout.
func (c *Coordinator) Close() error {
	return c.CloseWithTimeout(DefaultShutdownTimeout)
}

// CloseWithTimeout drains in-flight factory calls and background
// operations, then closes the tiers. Work still running when the timeout
// expires is abandoned and ErrShutdownTimeout is included in the result;
// the tiers are closed regardless.
func (c *Coordinator) CloseWithTimeout(timeout time.Duration) error {
	// Holding bgMu while flipping closed synchronizes with
	// beginBackground so no Add lands after Wait starts.
	c.bgMu.Lock()
	if c.closed.Swap(true) {
		c.bgMu.Unlock()
		return nil
	}
	c.shutdownCancel()
	c.bgMu.Unlock()

	c.logger.Info("Closing cache, draining background operations", "timeout", timeout)

	done := make(chan struct{})
	go func() {
		c.bgWg.Wait()
		close(done)
	}()

	var timedOut bool
	select {
	case <-done:
	case <-time.After(timeout):
		c.logger.Warn("Shutdown timeout exceeded, abandoning remaining work", "timeout", timeout)
		timedOut = true
	}

	c.refresh.clear()

	var errs []error
	if timedOut {
		errs = append(errs, types.ErrShutdownTimeout)
	}
	if err := c.local.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.remote.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.ownedCodec != nil {
		c.ownedCodec.Close()
	}

	return errors.Join(errs...)
}

// beginBackground registers one unit of tracked background work. It
// returns false when the coordinator is closed and the work must not
// start.
func (c *Coordinator) beginBackground() bool {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()
	if c.closed.Load() {
		return false
	}
	c.bgWg.Add(1)
	return true
}

func (c *Coordinator) endBackground() {
	c.bgWg.Done()
}

// runBackground executes fn on a goroutine tracked for shutdown, with a
// context derived from the shutdown context and bounded by timeout. It
// reports whether the work was started.
func (c *Coordinator) runBackground(timeout time.Duration, fn func(ctx context.Context)) bool {
	if !c.beginBackground() {
		return false
	}
	go func() {
		defer c.endBackground()
		ctx, cancel := context.WithTimeout(c.shutdownCtx, timeout)
		defer cancel()
		fn(ctx)
	}()
	return true
}

func (c *Coordinator) useRemote(options *types.CacheOptions) bool {
	return options.Level.IncludesRemote() && c.remoteEnabled
}

func (c *Coordinator) nextVersion() uint64 {
	return c.version.Add(1)
}

func (c *Coordinator) validateKey(key string) error {
	if c.keyValidator == nil {
		return nil
	}
	return c.keyValidator.Validate(key)
}

func (c *Coordinator) validateKeys(keys []string) error {
	if c.keyValidator == nil {
		return nil
	}
	for _, key := range keys {
		if err := c.keyValidator.Validate(key); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) applyDefaults(opts ...types.Option) *types.CacheOptions {
	options := types.ApplyOptions(opts...)
	c.fillDefaults(options)
	return options
}

// fillDefaults fills zero option fields from the configured defaults.
func (c *Coordinator) fillDefaults(options *types.CacheOptions) {
	if options.TTL == 0 {
		options.TTL = c.config.Defaults.TTL
	}
	if options.Level == 0 {
		options.Level = parseCacheLevel(c.config.Defaults.Level)
	}
	if c.config.Defaults.FireAndForget && !options.FireAndForget {
		options.FireAndForget = true
	}
}

func parseCacheLevel(s string) types.CacheLevel {
	switch s {
	case "local-only":
		return types.LevelLocalOnly
	case "remote-only":
		return types.LevelRemoteOnly
	case "local-then-remote":
		return types.LevelLocalThenRemote
	default:
		return types.LevelLocalThenRemote
	}
}

// slogAdapter bridges a caller-supplied types.Logger into slog so
// internals can keep using structured logging regardless of what the
// embedding application logs with.
type slogAdapter struct {
	attrs  []slog.Attr
	logger types.Logger
	group  string
}

func (a slogAdapter) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

//nolint:gocritic // slog.Handler requires Record by value
func (a slogAdapter) Handle(ctx context.Context, r slog.Record) error {
	args := make([]any, 0, (len(a.attrs)+r.NumAttrs())*2)

	for _, attr := range a.attrs {
		key := attr.Key
		if a.group != "" {
			key = a.group + "." + key
		}
		args = append(args, key, attr.Value.Any())
	}

	r.Attrs(func(attr slog.Attr) bool {
		key := attr.Key
		if a.group != "" {
			key = a.group + "." + key
		}
		args = append(args, key, attr.Value.Any())
		return true
	})

	switch r.Level {
	case slog.LevelDebug:
		a.logger.Debug(r.Message, args...)
	case slog.LevelInfo:
		a.logger.Info(r.Message, args...)
	case slog.LevelWarn:
		a.logger.Warn(r.Message, args...)
	case slog.LevelError:
		a.logger.Error(r.Message, args...)
	}
	return nil
}

func (a slogAdapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(a.attrs), len(a.attrs)+len(attrs))
	copy(newAttrs, a.attrs)
	newAttrs = append(newAttrs, attrs...)
	return slogAdapter{
		logger: a.logger,
		attrs:  newAttrs,
		group:  a.group,
	}
}

func (a slogAdapter) WithGroup(name string) slog.Handler {
	newGroup := name
	if a.group != "" {
		newGroup = a.group + "." + name
	}
	return slogAdapter{
		logger: a.logger,
		attrs:  a.attrs,
		group:  newGroup,
	}
}
