package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Local: LocalConfig{
			Enabled:         true,
			MaxEntries:      100_000,
			MaxSizeMB:       256,
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: 10 * time.Second,
			MaxEntrySize:    10 * 1024 * 1024, // 10MB
		},
		Remote: RemoteConfig{
			Enabled:             false,
			Address:             "localhost:6379",
			Password:            SecretString{},
			DB:                  0,
			KeyPrefix:           "strata:",
			DefaultTTL:          15 * time.Minute,
			TTLFactor:           2.0,
			PoolSize:            100,
			MinIdleConns:        10,
			DialTimeout:         5 * time.Second,
			CommandTimeout:      3 * time.Second,
			PoolTimeout:         4 * time.Second,
			ScanBatch:           100,
			MaxPendingWrites:    500,
			EnableTLS:           false,
			TLSSkipVerify:       false,
			HealthCheckInterval: 5 * time.Second,
		},
		Codec: CodecConfig{
			CompressionThreshold: 1024,
			Compression:          "s2",
			Encryption: EncryptionConfig{
				Enabled: false,
			},
		},
		Refresh: RefreshConfig{
			Enabled: false,
			Ratio:   0.8,
			Timeout: 10 * time.Second,
		},
		Defaults: DefaultsConfig{
			TTL:             5 * time.Minute,
			Level:           "local-then-remote",
			WarmConcurrency: 8,
			FireAndForget:   false,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             true,
			FailureThreshold:    5,
			SuccessThreshold:    1,
			OpenDuration:        30 * time.Second,
			HalfOpenMaxRequests: 1,
		},
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    2,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
			Jitter:         true,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        true,
			MaxConcurrent:  100,
			MaxQueue:       50,
			AcquireTimeout: 100 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			PublishInterval: 10 * time.Second,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "strata",
				Tags:      []string{},
			},
			Prometheus: PrometheusConfig{
				Enabled:   false,
				Namespace: "strata",
			},
		},
		KeyValidation: KeyValidationConfig{
			Enabled:           true,
			MaxKeyLength:      1024,
			AllowEmpty:        false,
			AllowControlChars: false,
			AllowWhitespace:   true,
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests.
func ForTesting() *Config {
	return &Config{
		Local: LocalConfig{
			Enabled:         true,
			MaxEntries:      1024,
			MaxSizeMB:       16,
			DefaultTTL:      1 * time.Minute,
			CleanupInterval: 1 * time.Second,
			MaxEntrySize:    1024 * 1024, // 1MB
		},
		Remote: RemoteConfig{
			Enabled:             false, // Disabled for unit tests
			Address:             "localhost:6379",
			KeyPrefix:           "test:",
			DefaultTTL:          1 * time.Minute,
			TTLFactor:           1.0,
			PoolSize:            10,
			MinIdleConns:        1,
			DialTimeout:         1 * time.Second,
			CommandTimeout:      1 * time.Second,
			PoolTimeout:         1 * time.Second,
			ScanBatch:           10,
			MaxPendingWrites:    50,
			HealthCheckInterval: 0,
		},
		Codec: CodecConfig{
			CompressionThreshold: 256,
			Compression:          "s2",
		},
		Refresh: RefreshConfig{
			Enabled: false,
			Ratio:   0.8,
			Timeout: 1 * time.Second,
		},
		Defaults: DefaultsConfig{
			TTL:             1 * time.Minute,
			Level:           "local-only",
			WarmConcurrency: 4,
			FireAndForget:   false,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             false,
			FailureThreshold:    3,
			SuccessThreshold:    1,
			OpenDuration:        1 * time.Second,
			HalfOpenMaxRequests: 1,
		},
		Retry: RetryConfig{
			Enabled:        false,
			MaxAttempts:    1,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
			Multiplier:     2.0,
			Jitter:         false,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        false,
			MaxConcurrent:  10,
			MaxQueue:       5,
			AcquireTimeout: 50 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:         false,
			PublishInterval: 1 * time.Second,
		},
		KeyValidation: KeyValidationConfig{
			Enabled:           true,
			MaxKeyLength:      1024,
			AllowEmpty:        false,
			AllowControlChars: false,
			AllowWhitespace:   true,
		},
	}
}

// ForTestingWithRemote returns a test config with the remote tier enabled.
func ForTestingWithRemote(addr string) *Config {
	cfg := ForTesting()
	cfg.Remote.Enabled = true
	cfg.Remote.Address = addr
	cfg.Defaults.Level = "local-then-remote"
	return cfg
}
