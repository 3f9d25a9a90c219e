package strata

import (
	"time"

	"github.com/strata-go/strata/internal/types"
)

type (
	// Option customizes a single cache operation.
	Option = types.Option
	// CoordinatorOptions carries construction-time overrides.
	CoordinatorOptions = types.CoordinatorOptions
)

// ApplyOptions folds a list of options into a CacheOptions value.
func ApplyOptions(opts ...Option) *CacheOptions {
	return types.ApplyOptions(opts...)
}

// WithTTL sets the entry's time to live.
func WithTTL(ttl time.Duration) Option {
	return func(o *CacheOptions) {
		o.TTL = ttl
	}
}

// WithLevel selects which tiers the operation uses.
func WithLevel(level CacheLevel) Option {
	return func(o *CacheOptions) {
		o.Level = level
	}
}

// WithTags attaches tags to the entry so it can be invalidated as a
// group.
func WithTags(tags ...string) Option {
	return func(o *CacheOptions) {
		o.Tags = tags
	}
}

// WithDependencies marks the entry as derived from the given parent
// keys; a cascading invalidation of a parent removes it too.
func WithDependencies(keys ...string) Option {
	return func(o *CacheOptions) {
		o.Dependencies = keys
	}
}

// WithRefresh opts the entry into stale-while-revalidate: once it ages
// past the configured ratio of its TTL, a hit serves the stale value
// and triggers a background refresh through the entry's factory.
func WithRefresh() Option {
	return func(o *CacheOptions) {
		o.Refresh = true
	}
}

// WithFireAndForget queues the remote write instead of waiting for it.
func WithFireAndForget() Option {
	return func(o *CacheOptions) {
		o.FireAndForget = true
	}
}

// WithoutLocal skips the local tier for this operation.
func WithoutLocal() Option {
	return func(o *CacheOptions) {
		o.SkipLocal = true
	}
}

// WithLocalOnly restricts the operation to the local tier.
func WithLocalOnly() Option {
	return func(o *CacheOptions) {
		o.Level = LevelLocalOnly
	}
}

// WithRemoteOnly restricts the operation to the remote tier.
func WithRemoteOnly() Option {
	return func(o *CacheOptions) {
		o.Level = LevelRemoteOnly
	}
}

// CoordinatorOption customizes cache construction.
type CoordinatorOption func(*CoordinatorOptions)

// WithLogger sets the structured logger.
func WithLogger(logger Logger) CoordinatorOption {
	return func(o *CoordinatorOptions) {
		o.Logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) CoordinatorOption {
	return func(o *CoordinatorOptions) {
		o.Metrics = metrics
	}
}

// WithPublisher adds a custom metrics sink to the publish loop. The
// cache takes ownership of the publisher and closes it on Close.
// Publishing runs even when no sink is enabled in config.
func WithPublisher(publisher Publisher) CoordinatorOption {
	return func(o *CoordinatorOptions) {
		o.Publisher = publisher
	}
}

// WithSerializer overrides the innermost codec stage.
func WithSerializer(serializer Serializer) CoordinatorOption {
	return func(o *CoordinatorOptions) {
		o.Serializer = serializer
	}
}

// WithCodec overrides the whole encode/decode pipeline.
func WithCodec(codec Codec) CoordinatorOption {
	return func(o *CoordinatorOptions) {
		o.Codec = codec
	}
}

// WithClock overrides the wall clock, mainly for tests.
func WithClock(clock Clock) CoordinatorOption {
	return func(o *CoordinatorOptions) {
		o.Clock = clock
	}
}

// WithRemoteAddress overrides the remote tier address.
func WithRemoteAddress(addr string) CoordinatorOption {
	return func(o *CoordinatorOptions) {
		o.RemoteAddress = addr
	}
}

// WithRemotePassword overrides the remote tier password.
func WithRemotePassword(password string) CoordinatorOption {
	return func(o *CoordinatorOptions) {
		o.RemotePassword = types.NewSecretString(password)
	}
}

// WithRemoteDB overrides the remote tier database number.
func WithRemoteDB(db int) CoordinatorOption {
	return func(o *CoordinatorOptions) {
		o.RemoteDB = db
	}
}

// WithoutRemote disables the remote tier entirely.
func WithoutRemote() CoordinatorOption {
	return func(o *CoordinatorOptions) {
		o.DisableRemote = true
	}
}

// WithoutResilience disables the circuit breaker, retry, and bulkhead.
func WithoutResilience() CoordinatorOption {
	return func(o *CoordinatorOptions) {
		o.DisableResilience = true
	}
}
