package types

import (
	"context"
	"time"
)

type CacheInfo interface {
	Name() string
	IsAvailable() bool
}

// EntryReader reads whole entries with their bookkeeping. The local tier
// implements this; a miss or an expired entry returns ErrCacheMiss.
type EntryReader interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Contains(ctx context.Context, key string) (bool, error)
}

// EntryWriter mutates whole entries. ReplaceIfVersion is the compare-and
// -swap a background refresh needs: it stores the new entry only if the
// key still exists at the expected version, so a result computed against
// stale state is discarded instead of clobbering a concurrent write.
type EntryWriter interface {
	Set(ctx context.Context, entry *CacheEntry) error
	ReplaceIfVersion(ctx context.Context, entry *CacheEntry, version uint64) bool
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) int
}

// PayloadReader reads encoded frames. The remote tier implements this; it
// never sees decoded values. GetWithTTL also reports the key's remaining
// TTL so a promotion into the local tier can carry it over; zero means
// the store reported no expiry.
type PayloadReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error)
	Contains(ctx context.Context, key string) (bool, error)
}

type PayloadWriter interface {
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) (int, error)
}

// PatternDeleter removes every key matching a *-wildcard glob and reports
// which keys were removed.
type PatternDeleter interface {
	DeleteByPattern(ctx context.Context, pattern string) ([]string, error)
}

// AsyncWriter queues a write without waiting for it. Saturation drops the
// write with ErrWriteQueueFull rather than blocking.
type AsyncWriter interface {
	SetAsync(key string, payload []byte, ttl time.Duration) error
}

type CacheClearer interface {
	Clear(ctx context.Context) error
}

type CacheCloser interface {
	Close() error
}

type BatchReader interface {
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
}

type BatchWriter interface {
	SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error
}

type LocalStatsProvider interface {
	Stats() LocalCacheStats
	EntryCount() int
	Size() int64
	MaxSize() int64
	UsagePercentage() float64
	HitRatio() float64
}

type RemoteStatsProvider interface {
	PendingWrites() int
	DroppedWrites() int64
	LastError() (error, time.Time)
}

// LocalTier is the in-process store: bounded, LRU-evicting, per-entry TTL.
type LocalTier interface {
	CacheInfo
	EntryReader
	EntryWriter
	PatternDeleter
	CacheClearer
	CacheCloser
	LocalStatsProvider
	Keys() []string
}

// RemoteTier is the shared network store behind the codec.
type RemoteTier interface {
	CacheInfo
	PayloadReader
	PayloadWriter
	AsyncWriter
	PatternDeleter
	CacheClearer
	CacheCloser
	BatchReader
	BatchWriter
	RemoteStatsProvider
	Ping(ctx context.Context) error
}

// Serializer is the innermost codec stage: value bytes, nothing else.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// CodecFlags records what the codec did to a frame.
type CodecFlags struct {
	Compressed bool
	Encrypted  bool
}

// Codec turns values into self-describing frames and back: serialize,
// compress past a size threshold, then optionally seal with authenticated
// encryption. Decode of a tampered frame fails with ErrIntegrity.
type Codec interface {
	Encode(v any) ([]byte, CodecFlags, error)
	Decode(data []byte, dest any) error
}

type MetricsRecorder interface {
	RecordHit(tier string, key string, latency time.Duration)
	RecordMiss(tier string, key string, latency time.Duration)
	RecordSet(tier string, key string, size int, latency time.Duration)
	RecordDelete(tier string, key string, latency time.Duration)
	RecordEviction(tier string, count int)
	RecordExpiration(tier string, count int)
	RecordError(tier string, operation string, err error)
	RecordCircuitBreakerStateChange(from, to string)
	RecordRefresh(key string, ok bool)
	RecordDegraded(operation string)
}

// Publisher forwards metrics to an external sink (StatsD, Prometheus,
// structured logs). Implementations must be safe for concurrent use and
// must never block the caller on sink errors.
type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text, alertType string, tags ...string)
	PublishHealthMetrics(m *PublisherHealthMetrics)
	Close() error
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
