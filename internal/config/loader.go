package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load loads configuration from a JSON file.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, use defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STRATA_LOCAL_ENABLED"); v != "" {
		cfg.Local.Enabled = parseBool(v)
	}
	if v := os.Getenv("STRATA_LOCAL_MAX_ENTRIES"); v != "" {
		cfg.Local.MaxEntries = parseInt(v, cfg.Local.MaxEntries)
	}
	if v := os.Getenv("STRATA_LOCAL_MAX_SIZE_MB"); v != "" {
		cfg.Local.MaxSizeMB = parseInt(v, cfg.Local.MaxSizeMB)
	}
	if v := os.Getenv("STRATA_LOCAL_DEFAULT_TTL"); v != "" {
		cfg.Local.DefaultTTL = parseDuration(v, cfg.Local.DefaultTTL)
	}

	if v := os.Getenv("STRATA_REMOTE_ENABLED"); v != "" {
		cfg.Remote.Enabled = parseBool(v)
	}
	if v := os.Getenv("STRATA_REMOTE_ADDRESS"); v != "" {
		cfg.Remote.Address = v
	}
	if v := os.Getenv("STRATA_REMOTE_PASSWORD"); v != "" {
		cfg.Remote.Password = NewSecretString(v)
	}
	if v := os.Getenv("STRATA_REMOTE_DB"); v != "" {
		cfg.Remote.DB = parseInt(v, cfg.Remote.DB)
	}
	if v := os.Getenv("STRATA_REMOTE_KEY_PREFIX"); v != "" {
		cfg.Remote.KeyPrefix = v
	}
	if v := os.Getenv("STRATA_REMOTE_DEFAULT_TTL"); v != "" {
		cfg.Remote.DefaultTTL = parseDuration(v, cfg.Remote.DefaultTTL)
	}
	if v := os.Getenv("STRATA_REMOTE_POOL_SIZE"); v != "" {
		cfg.Remote.PoolSize = parseInt(v, cfg.Remote.PoolSize)
	}
	if v := os.Getenv("STRATA_REMOTE_ENABLE_TLS"); v != "" {
		cfg.Remote.EnableTLS = parseBool(v)
	}
	if v := os.Getenv("STRATA_REMOTE_TLS_SKIP_VERIFY"); v != "" {
		cfg.Remote.TLSSkipVerify = parseBool(v)
	}

	if v := os.Getenv("STRATA_CODEC_COMPRESSION"); v != "" {
		cfg.Codec.Compression = v
	}
	if v := os.Getenv("STRATA_CODEC_COMPRESSION_THRESHOLD"); v != "" {
		cfg.Codec.CompressionThreshold = parseInt(v, cfg.Codec.CompressionThreshold)
	}
	if v := os.Getenv("STRATA_CODEC_ENCRYPTION_KEY"); v != "" {
		cfg.Codec.Encryption.Key = NewSecretString(v)
		cfg.Codec.Encryption.Enabled = true
	}

	if v := os.Getenv("STRATA_REFRESH_ENABLED"); v != "" {
		cfg.Refresh.Enabled = parseBool(v)
	}
	if v := os.Getenv("STRATA_REFRESH_RATIO"); v != "" {
		cfg.Refresh.Ratio = parseFloat(v, cfg.Refresh.Ratio)
	}

	if v := os.Getenv("STRATA_DEFAULTS_TTL"); v != "" {
		cfg.Defaults.TTL = parseDuration(v, cfg.Defaults.TTL)
	}
	if v := os.Getenv("STRATA_DEFAULTS_LEVEL"); v != "" {
		cfg.Defaults.Level = v
	}
	if v := os.Getenv("STRATA_DEFAULTS_FIRE_AND_FORGET"); v != "" {
		cfg.Defaults.FireAndForget = parseBool(v)
	}

	if v := os.Getenv("STRATA_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("STRATA_CIRCUIT_BREAKER_FAILURE_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.FailureThreshold = parseInt(v, cfg.CircuitBreaker.FailureThreshold)
	}
	if v := os.Getenv("STRATA_CIRCUIT_BREAKER_OPEN_DURATION"); v != "" {
		cfg.CircuitBreaker.OpenDuration = parseDuration(v, cfg.CircuitBreaker.OpenDuration)
	}

	if v := os.Getenv("STRATA_RETRY_ENABLED"); v != "" {
		cfg.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("STRATA_RETRY_MAX_ATTEMPTS"); v != "" {
		cfg.Retry.MaxAttempts = parseInt(v, cfg.Retry.MaxAttempts)
	}

	if v := os.Getenv("STRATA_BULKHEAD_ENABLED"); v != "" {
		cfg.Bulkhead.Enabled = parseBool(v)
	}
	if v := os.Getenv("STRATA_BULKHEAD_MAX_CONCURRENT"); v != "" {
		cfg.Bulkhead.MaxConcurrent = parseInt(v, cfg.Bulkhead.MaxConcurrent)
	}

	if v := os.Getenv("STRATA_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}

	if v := os.Getenv("STRATA_DATADOG_ENABLED"); v != "" {
		if os.Getenv("DD_AGENT_HOST") == "" {
			cfg.Metrics.DataDog.Enabled = parseBool(v)
		}
	}
	if v := os.Getenv("STRATA_PROMETHEUS_ENABLED"); v != "" {
		cfg.Metrics.Prometheus.Enabled = parseBool(v)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Local.Enabled {
		if c.Local.MaxEntries <= 0 {
			return fmt.Errorf("local.maxEntries must be positive")
		}
		if c.Local.MaxSizeMB <= 0 {
			return fmt.Errorf("local.maxSizeMB must be positive")
		}
	}

	if c.Remote.Enabled {
		if c.Remote.Address == "" {
			return fmt.Errorf("remote.address is required when remote is enabled")
		}
		if c.Remote.PoolSize <= 0 {
			return fmt.Errorf("remote.poolSize must be positive")
		}
		if c.Remote.TTLFactor != 0 && c.Remote.TTLFactor < 1 {
			return fmt.Errorf("remote.ttlFactor must be >= 1 so the remote tier outlives the local one")
		}
	}

	switch c.Codec.Compression {
	case "", "none", "s2", "zstd":
	default:
		return fmt.Errorf("codec.compression must be one of none, s2, zstd")
	}
	if c.Codec.CompressionThreshold < 0 {
		return fmt.Errorf("codec.compressionThreshold must not be negative")
	}
	if c.Codec.Encryption.Enabled && c.Codec.Encryption.Key.IsEmpty() {
		return fmt.Errorf("codec.encryption.key is required when encryption is enabled")
	}

	if c.Refresh.Enabled {
		if c.Refresh.Ratio <= 0 || c.Refresh.Ratio >= 1 {
			return fmt.Errorf("refresh.ratio must be between 0 and 1 exclusive")
		}
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuitBreaker.failureThreshold must be positive")
		}
		if c.CircuitBreaker.OpenDuration <= 0 {
			return fmt.Errorf("circuitBreaker.openDuration must be positive")
		}
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts <= 0 {
			return fmt.Errorf("retry.maxAttempts must be positive")
		}
	}

	if c.Bulkhead.Enabled {
		if c.Bulkhead.MaxConcurrent <= 0 {
			return fmt.Errorf("bulkhead.maxConcurrent must be positive")
		}
	}

	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseFloat(s string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}
