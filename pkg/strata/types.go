package strata

import (
	"github.com/strata-go/strata/internal/types"
)

type (
	// CacheLevel specifies which cache tiers an operation uses.
	CacheLevel = types.CacheLevel
	// CacheEntry represents a cached value with its metadata.
	CacheEntry = types.CacheEntry
	// CacheOptions contains per-operation options.
	CacheOptions = types.CacheOptions
	// LocalCacheStats contains statistics about the local tier.
	LocalCacheStats = types.LocalCacheStats
	// Serializer converts values to and from bytes.
	Serializer = types.Serializer
	// Codec is the full encode/decode pipeline applied to stored values.
	Codec = types.Codec
	// MetricsRecorder receives cache operation metrics.
	MetricsRecorder = types.MetricsRecorder
	// Logger provides logging operations.
	Logger = types.Logger
	// Clock abstracts time, mainly for tests.
	Clock = types.Clock
	// FactoryFunc produces a value for a key on a cache miss.
	FactoryFunc = types.FactoryFunc
	// WarmEntry is one key in a Warm batch.
	WarmEntry = types.WarmEntry
	// WarmResult aggregates the outcome of a Warm batch.
	WarmResult = types.WarmResult
	// Publisher forwards metrics to an external sink.
	Publisher = types.Publisher
	// PublisherHealthMetrics is the condensed health view handed to
	// publishers on each publish interval.
	PublisherHealthMetrics = types.PublisherHealthMetrics
)

const (
	// LevelLocalOnly uses only the in-process tier.
	LevelLocalOnly = types.LevelLocalOnly
	// LevelRemoteOnly uses only the remote tier.
	LevelRemoteOnly = types.LevelRemoteOnly
	// LevelLocalThenRemote checks the local tier first, then the remote.
	LevelLocalThenRemote = types.LevelLocalThenRemote
)

// DefaultOptions returns an empty option set; zero fields take the
// configured defaults.
func DefaultOptions() *CacheOptions {
	return types.DefaultOptions()
}
