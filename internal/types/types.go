// Package types provides shared types for the strata cache engine.
// This package breaks import cycles between pkg/strata and internal/cache.
package types

import (
	"context"
	"time"
)

type CacheLevel int

const (
	LevelLocalOnly CacheLevel = iota + 1
	LevelRemoteOnly
	LevelLocalThenRemote
)

func (l CacheLevel) String() string {
	switch l {
	case LevelLocalOnly:
		return "local-only"
	case LevelRemoteOnly:
		return "remote-only"
	case LevelLocalThenRemote:
		return "local-then-remote"
	default:
		return "unknown"
	}
}

func (l CacheLevel) IncludesLocal() bool {
	return l == LevelLocalOnly || l == LevelLocalThenRemote
}

func (l CacheLevel) IncludesRemote() bool {
	return l == LevelRemoteOnly || l == LevelLocalThenRemote
}

// CacheOptions carries the per-operation knobs. Zero values mean "use the
// coordinator defaults".
type CacheOptions struct {
	TTL           time.Duration
	Level         CacheLevel
	Tags          []string
	Dependencies  []string
	Refresh       bool
	FireAndForget bool
	SkipLocal     bool
}

// DefaultOptions returns an empty option set. Zero fields are filled in
// from the configured defaults by the coordinator.
func DefaultOptions() *CacheOptions {
	return &CacheOptions{}
}

// CacheEntry is one stored value plus its bookkeeping. Each tier holds its
// own copy; entries are never shared by reference across tiers. Value holds
// the codec-encoded frame, not the caller's raw value.
type CacheEntry struct {
	Key          string
	Value        []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastAccessed time.Time
	AccessCount  int64
	SizeBytes    int64
	Compressed   bool
	Encrypted    bool
	Tags         []string
	Dependencies []string
	Version      uint64
}

// IsExpired reports whether the entry is logically absent at the given
// instant. Entries always carry a concrete ExpiresAt; a zero ExpiresAt is
// treated as already expired rather than immortal.
func (e *CacheEntry) IsExpired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(e.ExpiresAt)
}

// TTLRemaining returns the time until expiry at the given instant, or zero
// if the entry has expired.
func (e *CacheEntry) TTLRemaining(now time.Time) time.Duration {
	if e.IsExpired(now) {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}

// Age returns how long ago the entry was written.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

type LocalCacheStats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Deletes     int64
	Evictions   int64
	Expirations int64
}

// WarmEntry is one unit of work for Coordinator.Warm: a key plus the
// factory that produces its value.
type WarmEntry struct {
	Key     string
	Factory FactoryFunc
	Options *CacheOptions
}

// WarmResult aggregates the outcome of a Warm batch. Failures are isolated
// per entry; Errors maps each failed key to its factory error.
type WarmResult struct {
	Succeeded int
	Failed    int
	Errors    map[string]error
}

// FactoryFunc produces a value for a key on a cache miss. Single-flight
// misses and background refreshes invoke it on a coordinator-owned
// context, never a caller's, so one waiter's cancellation aborts neither
// a shared flight nor a refresh; Warm invokes it with the batch context.
type FactoryFunc func(ctx context.Context) (any, error)
