package metrics

import (
	"time"

	"github.com/strata-go/strata/internal/types"
)

// NoOpTracker is a no-operation metrics tracker for testing.
type NoOpTracker struct{}

// NewNoOpTracker creates a new no-op tracker.
func NewNoOpTracker() *NoOpTracker {
	return &NoOpTracker{}
}

func (t *NoOpTracker) RecordHit(tier string, key string, latency time.Duration) {}

func (t *NoOpTracker) RecordMiss(tier string, key string, latency time.Duration) {}

func (t *NoOpTracker) RecordSet(tier string, key string, size int, latency time.Duration) {}

func (t *NoOpTracker) RecordDelete(tier string, key string, latency time.Duration) {}

func (t *NoOpTracker) RecordEviction(tier string, count int) {}

func (t *NoOpTracker) RecordExpiration(tier string, count int) {}

func (t *NoOpTracker) RecordError(tier string, operation string, err error) {}

func (t *NoOpTracker) RecordCircuitBreakerStateChange(from, to string) {}

func (t *NoOpTracker) RecordRefresh(key string, ok bool) {}

func (t *NoOpTracker) RecordDegraded(operation string) {}

// Snapshot returns empty metrics.
func (t *NoOpTracker) Snapshot() types.MetricsSnapshot { return types.MetricsSnapshot{} }

// Reset does nothing.
func (t *NoOpTracker) Reset() {}

// NoOpPublisher is a no-operation metrics publisher for testing or when
// publishing is disabled.
type NoOpPublisher struct{}

// NewNoOpPublisher creates a new no-op publisher.
func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) Gauge(name string, value float64, tags ...string) {}

func (p *NoOpPublisher) Incr(name string, tags ...string) {}

func (p *NoOpPublisher) Count(name string, value int64, tags ...string) {}

func (p *NoOpPublisher) Histogram(name string, value float64, tags ...string) {}

func (p *NoOpPublisher) Timing(name string, duration time.Duration, tags ...string) {}

func (p *NoOpPublisher) Event(title, text, alertType string, tags ...string) {}

func (p *NoOpPublisher) PublishHealthMetrics(metrics *types.PublisherHealthMetrics) {}

func (p *NoOpPublisher) Close() error { return nil }

var (
	_ types.MetricsRecorder = (*NoOpTracker)(nil)
	_ types.Publisher       = (*NoOpPublisher)(nil)
)
