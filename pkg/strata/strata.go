package strata

import (
	"context"
	"sync"
	"time"

	"github.com/strata-go/strata/internal/cache"
	"github.com/strata-go/strata/internal/config"
	"github.com/strata-go/strata/internal/metrics"
	"github.com/strata-go/strata/internal/metrics/datadog"
	"github.com/strata-go/strata/internal/metrics/prom"
	"github.com/strata-go/strata/internal/types"
)

// New creates a cache with the default configuration.
func New(opts ...CoordinatorOption) (Cache, error) {
	return NewFromConfig(config.DefaultConfig(), opts...)
}

// NewFromConfig creates a cache from a configuration, validating it
// first. When metrics publishing is enabled the configured sinks are
// started alongside the cache and shut down with it.
func NewFromConfig(cfg *config.Config, opts ...CoordinatorOption) (Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	coordOpts := &CoordinatorOptions{}
	for _, opt := range opts {
		opt(coordOpts)
	}

	coord, err := cache.NewCoordinator(cfg, coordOpts)
	if err != nil {
		return nil, err
	}

	eng := &engine{Coordinator: coord}
	if cfg.Metrics.Enabled || coordOpts.Publisher != nil {
		if err := eng.startPublishing(cfg, coordOpts.Publisher); err != nil {
			_ = coord.Close()
			return nil, err
		}
	}
	return eng, nil
}

// NewFromFile creates a cache from a JSON config file with environment
// overrides applied. A missing file falls back to the defaults.
func NewFromFile(path string, opts ...CoordinatorOption) (Cache, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// NewLocalOnly creates a cache using only the in-process tier.
func NewLocalOnly(opts ...CoordinatorOption) (Cache, error) {
	cfg := config.DefaultConfig()
	cfg.Remote.Enabled = false
	cfg.Defaults.Level = "local-only"
	return NewFromConfig(cfg, opts...)
}

// Config returns a default configuration that can be modified before
// creating a cache.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests: small
// caps, short TTLs, remote tier and resilience disabled.
func TestConfig() *config.Config {
	return config.ForTesting()
}

// engine is the concrete Cache: the coordinator plus the metrics
// publishing loop configured around it.
type engine struct {
	*cache.Coordinator
	background *metrics.BackgroundPublisher
	publisher  types.Publisher
	stopOnce   sync.Once
}

// startPublishing wires the configured metric sinks into one background
// loop fed by the coordinator's health view. With no external sink
// enabled, metrics go to the structured log at debug level.
func (e *engine) startPublishing(cfg *config.Config, custom types.Publisher) error {
	logger := e.Logger()

	var sinks []types.Publisher
	if custom != nil {
		sinks = append(sinks, custom)
	}
	if cfg.Metrics.DataDog.Enabled {
		pub, err := datadog.NewPublisher(&cfg.Metrics.DataDog, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, pub)
	}
	if cfg.Metrics.Prometheus.Enabled {
		pub, err := prom.NewPublisher(&cfg.Metrics.Prometheus, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, pub)
	}
	if len(sinks) == 0 {
		sinks = append(sinks, metrics.NewLoggingPublisher(logger))
	}

	interval := cfg.Metrics.PublishInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	e.publisher = metrics.NewFanoutPublisher(sinks...)
	e.background = metrics.NewBackgroundPublisher(e.publisher, interval, e.PublisherHealth, logger)
	e.background.Start(context.Background())
	return nil
}

// stopPublishing stops the loop, which flushes once more, then closes
// the sinks.
func (e *engine) stopPublishing() {
	e.stopOnce.Do(func() {
		if e.background != nil {
			e.background.Stop()
		}
		if e.publisher != nil {
			if err := e.publisher.Close(); err != nil {
				e.Logger().Warn("Failed to close metrics publisher", "error", err)
			}
		}
	})
}

func (e *engine) Close() error {
	e.stopPublishing()
	return e.Coordinator.Close()
}

func (e *engine) CloseWithTimeout(timeout time.Duration) error {
	e.stopPublishing()
	return e.Coordinator.CloseWithTimeout(timeout)
}

var _ Cache = (*engine)(nil)
