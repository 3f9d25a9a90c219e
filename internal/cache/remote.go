package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strata-go/strata/internal/config"
	"github.com/strata-go/strata/internal/types"
)

const (
	disconnectErrorThreshold = 5
	fallbackCommandTimeout   = 2 * time.Second
)

// RemoteCache adapts a Redis client to the remote tier contract. It only
// ever sees encoded frames; decoding happens in the coordinator. Every
// command is time-boxed with the configured command timeout, and every
// transport failure is normalized to a CacheError wrapping
// ErrRemoteUnavailable so callers never match on driver error types.
type RemoteCache struct {
	client *redis.Client
	config config.RemoteConfig
	logger *slog.Logger

	mu            sync.RWMutex
	connected     atomic.Bool
	lastError     error
	lastErrorTime time.Time
	errorCount    atomic.Int64

	writeQueue    chan remoteWriteOp
	pendingWrites atomic.Int32
	droppedWrites atomic.Int64
	closed        atomic.Bool
	stopCh        chan struct{}
	wg            sync.WaitGroup

	healthCheckStopCh chan struct{}
	healthCheckWg     sync.WaitGroup
}

type remoteWriteOp struct {
	key     string
	payload []byte
	ttl     time.Duration
}

// NewRemoteCache connects to Redis. A failed initial ping does not fail
// construction; the tier starts unavailable and the health check brings
// it back.
func NewRemoteCache(cfg config.RemoteConfig, logger *slog.Logger) (*RemoteCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.CommandTimeout,
		WriteTimeout: cfg.CommandTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}

	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		}
		if cfg.TLSSkipVerify {
			logger.Warn("TLS certificate verification is disabled - this is insecure for production use")
		}
	}

	client := redis.NewClient(opts)

	rc := &RemoteCache{
		client:            client,
		config:            cfg,
		logger:            logger.With("component", "remote-cache"),
		writeQueue:        make(chan remoteWriteOp, cfg.MaxPendingWrites),
		stopCh:            make(chan struct{}),
		healthCheckStopCh: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		rc.logger.Warn("Remote tier initial connection failed", "error", err)
		rc.setError(err)
		// Start degraded rather than failing construction
	} else {
		rc.connected.Store(true)
		rc.logger.Info("Remote tier connected", "address", cfg.Address)
	}

	rc.wg.Add(1)
	go rc.asyncWriteWorker()

	if cfg.HealthCheckInterval > 0 {
		rc.healthCheckWg.Add(1)
		go rc.healthCheckWorker()
	}

	return rc, nil
}

// Name returns the tier name.
func (c *RemoteCache) Name() string {
	return "remote"
}

// IsAvailable returns true while the connection is believed healthy.
func (c *RemoteCache) IsAvailable() bool {
	return c.connected.Load()
}

func (c *RemoteCache) prefixKey(key string) string {
	return c.config.KeyPrefix + key
}

func (c *RemoteCache) stripPrefix(key string) string {
	return strings.TrimPrefix(key, c.config.KeyPrefix)
}

// opCtx derives a command-scoped context so one slow call cannot hold a
// caller past the command timeout.
func (c *RemoteCache) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.config.CommandTimeout
	if timeout <= 0 {
		timeout = fallbackCommandTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// remoteError records the failure and normalizes it. Deadline hits travel
// the same path so they count as failures for the circuit breaker.
func (c *RemoteCache) remoteError(op, key string, err error) error {
	c.handleError(err)
	return types.NewCacheError(op, key, "remote", fmt.Errorf("%w: %v", types.ErrRemoteUnavailable, err))
}

// scaleTTL stretches a TTL by the configured factor so remote entries
// outlive their local copies and can re-populate them.
func (c *RemoteCache) scaleTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	if f := c.config.TTLFactor; f > 1 {
		return time.Duration(float64(ttl) * f)
	}
	return ttl
}

// Get retrieves an encoded frame. An absent key is ErrCacheMiss.
func (c *RemoteCache) Get(ctx context.Context, key string) ([]byte, error) {
	if !c.connected.Load() {
		return nil, types.ErrRemoteUnavailable
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	data, err := c.client.Get(opCtx, c.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, types.ErrCacheMiss
		}
		return nil, c.remoteError("Get", key, err)
	}

	c.clearError()
	return data, nil
}

// GetWithTTL retrieves an encoded frame together with its remaining TTL
// in one round trip. A zero TTL means the server reported no expiry.
func (c *RemoteCache) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	if !c.connected.Load() {
		return nil, 0, types.ErrRemoteUnavailable
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	pipe := c.client.Pipeline()
	getCmd := pipe.Get(opCtx, c.prefixKey(key))
	ttlCmd := pipe.PTTL(opCtx, c.prefixKey(key))

	if _, err := pipe.Exec(opCtx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, c.remoteError("GetWithTTL", key, err)
	}

	data, err := getCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, types.ErrCacheMiss
		}
		return nil, 0, c.remoteError("GetWithTTL", key, err)
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		// -1 is "no expiry"; -2 means the key vanished between the two
		// commands, in which case the payload still came back whole.
		ttl = 0
	}

	c.clearError()
	return data, ttl, nil
}

// Set stores an encoded frame with the TTL stretched by TTLFactor.
func (c *RemoteCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if !c.connected.Load() {
		return types.ErrRemoteUnavailable
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	if err := c.client.Set(opCtx, c.prefixKey(key), payload, c.scaleTTL(ttl)).Err(); err != nil {
		return c.remoteError("Set", key, err)
	}

	c.clearError()
	return nil
}

// SetAsync queues a fire-and-forget write. Returns ErrWriteQueueFull when
// the queue is saturated; the write is dropped, never blocked on.
func (c *RemoteCache) SetAsync(key string, payload []byte, ttl time.Duration) error {
	if !c.connected.Load() {
		return types.ErrRemoteUnavailable
	}

	op := remoteWriteOp{key: c.prefixKey(key), payload: payload, ttl: c.scaleTTL(ttl)}

	select {
	case c.writeQueue <- op:
		c.pendingWrites.Add(1)
		return nil
	default:
		c.droppedWrites.Add(1)
		c.logger.Warn("Write queue full, dropping SET",
			"key", key,
			"dropped_total", c.droppedWrites.Load(),
		)
		return types.ErrWriteQueueFull
	}
}

func (c *RemoteCache) asyncWriteWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			// Drain what's already queued before exiting
			for {
				select {
				case op := <-c.writeQueue:
					c.executeWrite(op)
				default:
					return
				}
			}
		case op := <-c.writeQueue:
			c.executeWrite(op)
		}
	}
}

func (c *RemoteCache) executeWrite(op remoteWriteOp) {
	defer c.pendingWrites.Add(-1)

	ctx, cancel := c.opCtx(context.Background())
	defer cancel()

	if err := c.client.Set(ctx, op.key, op.payload, op.ttl).Err(); err != nil {
		c.handleError(err)
		c.logger.Debug("Async SET failed", "key", op.key, "error", err)
	} else {
		c.clearError()
	}
}

func (c *RemoteCache) healthCheckWorker() {
	defer c.healthCheckWg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.healthCheckStopCh:
			return
		case <-ticker.C:
			c.performHealthCheck()
		}
	}
}

func (c *RemoteCache) performHealthCheck() {
	wasConnected := c.connected.Load()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.DialTimeout)
	defer cancel()

	err := c.client.Ping(ctx).Err()
	if err != nil {
		if wasConnected {
			c.logger.Warn("Remote tier health check failed", "error", err)
			c.setError(err)
		}
		return
	}

	if !wasConnected {
		c.connected.Store(true)
		c.errorCount.Store(0)
		c.logger.Info("Remote tier connection restored via health check")
	}
}

// Delete removes a key. Deleting an absent key is not an error.
func (c *RemoteCache) Delete(ctx context.Context, key string) error {
	if !c.connected.Load() {
		return types.ErrRemoteUnavailable
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	if err := c.client.Del(opCtx, c.prefixKey(key)).Err(); err != nil {
		return c.remoteError("Delete", key, err)
	}

	c.clearError()
	return nil
}

// DeleteMany removes a batch of keys and returns how many existed.
func (c *RemoteCache) DeleteMany(ctx context.Context, keys []string) (int, error) {
	if !c.connected.Load() {
		return 0, types.ErrRemoteUnavailable
	}
	if len(keys) == 0 {
		return 0, nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.prefixKey(key)
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	removed, err := c.client.Del(opCtx, prefixed...).Result()
	if err != nil {
		return 0, c.remoteError("DeleteMany", "", err)
	}

	c.clearError()
	return int(removed), nil
}

// DeleteByPattern scans for keys matching the pattern in ScanBatch-sized
// chunks, deletes each chunk, and returns the removed keys (without the
// key prefix). On a mid-scan failure the keys already removed are still
// returned alongside the error.
func (c *RemoteCache) DeleteByPattern(ctx context.Context, pattern string) ([]string, error) {
	if !c.connected.Load() {
		return nil, types.ErrRemoteUnavailable
	}

	batch := c.config.ScanBatch
	if batch <= 0 {
		batch = 100
	}

	fullPattern := c.prefixKey(pattern)
	var removed []string
	var cursor uint64

	for {
		opCtx, cancel := c.opCtx(ctx)
		keys, nextCursor, err := c.client.Scan(opCtx, cursor, fullPattern, int64(batch)).Result()
		if err != nil {
			cancel()
			return removed, c.remoteError("DeleteByPattern", pattern, err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(opCtx, keys...).Err(); err != nil {
				cancel()
				return removed, c.remoteError("DeleteByPattern", pattern, err)
			}
			for _, key := range keys {
				removed = append(removed, c.stripPrefix(key))
			}
		}
		cancel()

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("Deleted keys by pattern", "pattern", pattern, "deleted", len(removed))
	c.clearError()
	return removed, nil
}

// Contains reports whether a key exists.
func (c *RemoteCache) Contains(ctx context.Context, key string) (bool, error) {
	if !c.connected.Load() {
		return false, types.ErrRemoteUnavailable
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	exists, err := c.client.Exists(opCtx, c.prefixKey(key)).Result()
	if err != nil {
		return false, c.remoteError("Contains", key, err)
	}

	c.clearError()
	return exists > 0, nil
}

// Clear removes every key under the configured prefix.
func (c *RemoteCache) Clear(ctx context.Context) error {
	_, err := c.DeleteByPattern(ctx, "*")
	return err
}

// GetMany fetches a batch of frames with one MGET. Absent keys are simply
// missing from the result map.
func (c *RemoteCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if !c.connected.Load() {
		return nil, types.ErrRemoteUnavailable
	}
	if len(keys) == 0 {
		return make(map[string][]byte), nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.prefixKey(key)
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	results, err := c.client.MGet(opCtx, prefixed...).Result()
	if err != nil {
		return nil, c.remoteError("GetMany", "", err)
	}

	found := make(map[string][]byte, len(keys))
	for i, result := range results {
		if result == nil {
			continue
		}
		if str, ok := result.(string); ok {
			found[keys[i]] = []byte(str)
		}
	}

	c.clearError()
	return found, nil
}

// SetMany stores a batch of frames through one pipeline, all with the
// same stretched TTL.
func (c *RemoteCache) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if !c.connected.Load() {
		return types.ErrRemoteUnavailable
	}
	if len(items) == 0 {
		return nil
	}

	scaled := c.scaleTTL(ttl)

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	pipe := c.client.Pipeline()
	for key, payload := range items {
		pipe.Set(opCtx, c.prefixKey(key), payload, scaled)
	}

	if _, err := pipe.Exec(opCtx); err != nil {
		return c.remoteError("SetMany", "", err)
	}

	c.clearError()
	return nil
}

// Ping probes the connection and doubles as the manual reconnect: a
// successful probe restores availability.
func (c *RemoteCache) Ping(ctx context.Context) error {
	opCtx, cancel := c.opCtx(ctx)
	defer cancel()

	if err := c.client.Ping(opCtx).Err(); err != nil {
		c.setError(err)
		return types.NewCacheError("Ping", "", "remote", fmt.Errorf("%w: %v", types.ErrRemoteUnavailable, err))
	}

	if c.connected.CompareAndSwap(false, true) {
		c.errorCount.Store(0)
		c.logger.Info("Remote tier connection restored")
	}
	return nil
}

// Close stops the health check and the write worker (draining queued
// writes), then closes the client.
func (c *RemoteCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.connected.Store(false)

	close(c.healthCheckStopCh)
	c.healthCheckWg.Wait()

	close(c.stopCh)
	c.wg.Wait()

	return c.client.Close()
}

// PendingWrites returns how many async writes are queued.
func (c *RemoteCache) PendingWrites() int {
	return int(c.pendingWrites.Load())
}

// DroppedWrites returns how many async writes were dropped at the queue.
func (c *RemoteCache) DroppedWrites() int64 {
	return c.droppedWrites.Load()
}

// LastError returns the most recent transport failure and when it
// happened.
func (c *RemoteCache) LastError() (error, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError, c.lastErrorTime
}

func (c *RemoteCache) handleError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastError = err
	c.lastErrorTime = time.Now()
	count := c.errorCount.Add(1)

	if count >= disconnectErrorThreshold {
		if c.connected.CompareAndSwap(true, false) {
			c.logger.Warn("Remote tier marked as disconnected after errors",
				"error_count", count,
				"last_error", err,
			)
		}
	}
}

func (c *RemoteCache) clearError() {
	if c.errorCount.Swap(0) > 0 {
		if c.connected.CompareAndSwap(false, true) {
			c.logger.Info("Remote tier connection restored")
		}
	}
}

func (c *RemoteCache) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = err
	c.lastErrorTime = time.Now()
	c.connected.Store(false)
}

var _ types.RemoteTier = (*RemoteCache)(nil)
