package types

// Option is a functional option for configuring cache operations.
type Option func(*CacheOptions)

// ApplyOptions applies functional options to create CacheOptions.
func ApplyOptions(opts ...Option) *CacheOptions {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// CoordinatorOptions holds constructor-time overrides for the coordinator.
type CoordinatorOptions struct {
	// Logger is the structured logger to use.
	Logger Logger

	// Metrics is the metrics recorder.
	Metrics MetricsRecorder

	// Publisher is an additional metrics sink included in the publish
	// loop alongside any sinks enabled in config. The cache takes
	// ownership and closes it on Close.
	Publisher Publisher

	// Codec overrides the configured encode/decode pipeline.
	Codec Codec

	// Serializer overrides only the innermost codec stage.
	Serializer Serializer

	// Clock overrides the wall clock, mainly for tests.
	Clock Clock

	// RemoteAddress overrides the remote tier address from config.
	RemoteAddress string

	// RemotePassword overrides the remote tier password from config.
	// Uses SecretString to prevent accidental logging of sensitive values.
	RemotePassword SecretString

	// RemoteDB overrides the remote tier database from config.
	RemoteDB int

	// DisableRemote disables the remote tier entirely.
	DisableRemote bool

	// DisableResilience disables circuit breaker, retry, and bulkhead.
	DisableResilience bool
}
