// Package config provides configuration management for strata.
package config

import (
	"time"

	"github.com/strata-go/strata/internal/types"
)

// SecretString is a string type that redacts its value when marshaled to JSON.
type SecretString = types.SecretString

// NewSecretString creates a new SecretString with the provided value.
func NewSecretString(value string) SecretString {
	return types.NewSecretString(value)
}

// Config contains all configuration for the strata cache coordinator.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	Remote         RemoteConfig         `json:"remote"`
	Metrics        MetricsConfig        `json:"metrics"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	Defaults       DefaultsConfig       `json:"defaults"`
	Local          LocalConfig          `json:"local"`
	Codec          CodecConfig          `json:"codec"`
	Refresh        RefreshConfig        `json:"refresh"`
	Retry          RetryConfig          `json:"retry"`
	Bulkhead       BulkheadConfig       `json:"bulkhead"`
	KeyValidation  KeyValidationConfig  `json:"keyValidation"`
}

// KeyValidationConfig contains configuration for cache key validation.
type KeyValidationConfig struct {
	ReservedPatterns  []string `json:"reservedPatterns"`
	MaxKeyLength      int      `json:"maxKeyLength"`
	Enabled           bool     `json:"enabled"`
	AllowEmpty        bool     `json:"allowEmpty"`
	AllowControlChars bool     `json:"allowControlChars"`
	AllowWhitespace   bool     `json:"allowWhitespace"`
}

// ToTypesConfig converts this config to a types.KeyValidationConfig.
func (c KeyValidationConfig) ToTypesConfig() types.KeyValidationConfig {
	return types.KeyValidationConfig{
		MaxKeyLength:      c.MaxKeyLength,
		AllowEmpty:        c.AllowEmpty,
		AllowControlChars: c.AllowControlChars,
		AllowWhitespace:   c.AllowWhitespace,
		ReservedPatterns:  c.ReservedPatterns,
	}
}

// LocalConfig contains configuration for the local (in-process) tier.
type LocalConfig struct {
	DefaultTTL      time.Duration `json:"defaultTTL"`
	CleanupInterval time.Duration `json:"cleanupInterval"`
	MaxEntries      int           `json:"maxEntries"`
	MaxSizeMB       int           `json:"maxSizeMB"`
	MaxEntrySize    int           `json:"maxEntrySize"`
	Enabled         bool          `json:"enabled"`
}

// RemoteConfig contains configuration for the remote (networked) tier.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RemoteConfig struct {
	DefaultTTL          time.Duration `json:"defaultTTL"`
	DialTimeout         time.Duration `json:"dialTimeout"`
	CommandTimeout      time.Duration `json:"commandTimeout"`
	PoolTimeout         time.Duration `json:"poolTimeout"`
	HealthCheckInterval time.Duration `json:"healthCheckInterval"`
	Password            SecretString  `json:"password"`
	Address             string        `json:"address"`
	KeyPrefix           string        `json:"keyPrefix"`
	// TTLFactor stretches every remote TTL relative to the local one so
	// the remote tier outlives local evictions and can re-populate them.
	// Must be >= 1.
	TTLFactor        float64 `json:"ttlFactor"`
	DB               int     `json:"db"`
	PoolSize         int     `json:"poolSize"`
	MinIdleConns     int     `json:"minIdleConns"`
	ScanBatch        int     `json:"scanBatch"`
	MaxPendingWrites int     `json:"maxPendingWrites"`
	Enabled          bool    `json:"enabled"`
	EnableTLS        bool    `json:"enableTLS"`
	TLSSkipVerify    bool    `json:"tlsSkipVerify"`
}

// CodecConfig controls the encode pipeline between values and stored frames.
type CodecConfig struct {
	// CompressionThreshold is the serialized size in bytes at which
	// compression kicks in. Zero disables compression entirely.
	CompressionThreshold int              `json:"compressionThreshold"`
	Compression          string           `json:"compression"` // "s2", "zstd", or "none"
	Encryption           EncryptionConfig `json:"encryption"`
}

// EncryptionConfig controls authenticated encryption of stored frames.
type EncryptionConfig struct {
	Key     SecretString `json:"key"`
	Enabled bool         `json:"enabled"`
}

// RefreshConfig controls stale-while-revalidate behavior.
type RefreshConfig struct {
	// Ratio is the fraction of an entry's TTL after which a hit is
	// considered stale and a background refresh is scheduled.
	Ratio   float64       `json:"ratio"`
	Timeout time.Duration `json:"timeout"`
	Enabled bool          `json:"enabled"`
}

// DefaultsConfig contains default values for cache operations.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DefaultsConfig struct {
	TTL   time.Duration `json:"ttl"`
	Level string        `json:"level"`
	// WarmConcurrency bounds how many factories a Warm batch runs at once.
	WarmConcurrency int `json:"warmConcurrency"`
	// FireAndForget enables async remote writes. When true, SET operations
	// are queued and may be dropped if the queue is full.
	FireAndForget bool `json:"fireAndForget"`
}

// CircuitBreakerConfig contains configuration for the circuit breaker pattern.
type CircuitBreakerConfig struct {
	Enabled             bool          `json:"enabled"`
	FailureThreshold    int           `json:"failureThreshold"`
	SuccessThreshold    int           `json:"successThreshold"`
	OpenDuration        time.Duration `json:"openDuration"`
	HalfOpenMaxRequests int           `json:"halfOpenMaxRequests"`
}

// RetryConfig contains configuration for the retry pattern.
type RetryConfig struct {
	InitialBackoff time.Duration `json:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff"`
	Multiplier     float64       `json:"multiplier"`
	MaxAttempts    int           `json:"maxAttempts"`
	Enabled        bool          `json:"enabled"`
	Jitter         bool          `json:"jitter"`
}

// BulkheadConfig contains configuration for the bulkhead pattern.
type BulkheadConfig struct {
	Enabled        bool          `json:"enabled"`
	MaxConcurrent  int           `json:"maxConcurrent"`
	MaxQueue       int           `json:"maxQueue"`
	AcquireTimeout time.Duration `json:"acquireTimeout"`
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	PublishInterval time.Duration    `json:"publishInterval"`
	DataDog         DataDogConfig    `json:"datadog"`
	Prometheus      PrometheusConfig `json:"prometheus"`
	Enabled         bool             `json:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags"`
	AgentHost string   `json:"agentHost"`
	Prefix    string   `json:"prefix"`
	Port      int      `json:"port"`
	Enabled   bool     `json:"enabled"`
}

// PrometheusConfig contains configuration for Prometheus metrics publishing.
type PrometheusConfig struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}
