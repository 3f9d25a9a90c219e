// Package metrics collects cache operation counters and latencies and
// publishes periodic snapshots.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strata-go/strata/internal/types"
)

// Tier labels used by the coordinator when recording per-tier events.
const (
	TierLocal  = "local"
	TierRemote = "remote"
)

const defaultLatencyBufferSize = 10000

// Tracker accumulates counters with atomics and keeps the most recent
// latencies in a fixed circular buffer, so recording stays O(1) and
// allocation-free on the hot path.
type Tracker struct {
	localHits    atomic.Int64
	localMisses  atomic.Int64
	remoteHits   atomic.Int64
	remoteMisses atomic.Int64

	getCount    atomic.Int64
	setCount    atomic.Int64
	deleteCount atomic.Int64

	errorCount      atomic.Int64
	evictionCount   atomic.Int64
	expirationCount atomic.Int64

	refreshCount     atomic.Int64
	refreshDiscarded atomic.Int64
	degradedCount    atomic.Int64

	totalBytesWritten atomic.Int64
	cbStateChanges    atomic.Int64

	latencyMu     sync.RWMutex
	latencyBuffer []time.Duration
	latencyIndex  int
	latencyCount  int
}

func NewTracker() *Tracker {
	return &Tracker{
		latencyBuffer: make([]time.Duration, defaultLatencyBufferSize),
	}
}

func (t *Tracker) RecordHit(tier string, key string, latency time.Duration) {
	switch tier {
	case TierLocal:
		t.localHits.Add(1)
	case TierRemote:
		t.remoteHits.Add(1)
	}
	t.getCount.Add(1)
	t.recordLatency(latency)
}

func (t *Tracker) RecordMiss(tier string, key string, latency time.Duration) {
	switch tier {
	case TierLocal:
		t.localMisses.Add(1)
	case TierRemote:
		t.remoteMisses.Add(1)
	}
	t.getCount.Add(1)
	t.recordLatency(latency)
}

func (t *Tracker) RecordSet(tier string, key string, size int, latency time.Duration) {
	t.setCount.Add(1)
	t.totalBytesWritten.Add(int64(size))
	t.recordLatency(latency)
}

// RecordDelete records a delete operation.
func (t *Tracker) RecordDelete(tier string, key string, latency time.Duration) {
	t.deleteCount.Add(1)
	t.recordLatency(latency)
}

// RecordEviction records entries pushed out by the size or count cap.
func (t *Tracker) RecordEviction(tier string, count int) {
	t.evictionCount.Add(int64(count))
}

// RecordExpiration records entries dropped because their TTL elapsed.
func (t *Tracker) RecordExpiration(tier string, count int) {
	t.expirationCount.Add(int64(count))
}

// RecordError records an error.
func (t *Tracker) RecordError(tier string, operation string, err error) {
	t.errorCount.Add(1)
}

// RecordCircuitBreakerStateChange records circuit breaker state transitions.
func (t *Tracker) RecordCircuitBreakerStateChange(from, to string) {
	t.cbStateChanges.Add(1)
}

// RecordRefresh records a background refresh; ok is false when the
// result was discarded because the entry changed while it ran.
func (t *Tracker) RecordRefresh(key string, ok bool) {
	if ok {
		t.refreshCount.Add(1)
	} else {
		t.refreshDiscarded.Add(1)
	}
}

// RecordDegraded records an operation served local-only because the
// remote tier was unavailable.
func (t *Tracker) RecordDegraded(operation string) {
	t.degradedCount.Add(1)
}

// recordLatency adds a measurement to the circular buffer.
func (t *Tracker) recordLatency(latency time.Duration) {
	t.latencyMu.Lock()
	t.latencyBuffer[t.latencyIndex] = latency
	t.latencyIndex = (t.latencyIndex + 1) % len(t.latencyBuffer)
	if t.latencyCount < len(t.latencyBuffer) {
		t.latencyCount++
	}
	t.latencyMu.Unlock()
}

// Snapshot returns the tracker's counters and latency percentiles. Tier
// gauges and resilience counters are overlaid by the coordinator, which
// owns those components.
func (t *Tracker) Snapshot() types.MetricsSnapshot {
	t.latencyMu.RLock()
	count := t.latencyCount
	latencyCopy := make([]time.Duration, count)
	// Copy out of the ring in write order.
	if count > 0 {
		if count < len(t.latencyBuffer) {
			copy(latencyCopy, t.latencyBuffer[:count])
		} else {
			firstPart := len(t.latencyBuffer) - t.latencyIndex
			copy(latencyCopy[:firstPart], t.latencyBuffer[t.latencyIndex:])
			copy(latencyCopy[firstPart:], t.latencyBuffer[:t.latencyIndex])
		}
	}
	t.latencyMu.RUnlock()

	snapshot := types.MetricsSnapshot{
		Timestamp:        time.Now(),
		LocalHits:        t.localHits.Load(),
		LocalMisses:      t.localMisses.Load(),
		RemoteHits:       t.remoteHits.Load(),
		RemoteMisses:     t.remoteMisses.Load(),
		GetCount:         t.getCount.Load(),
		SetCount:         t.setCount.Load(),
		DeleteCount:      t.deleteCount.Load(),
		ErrorCount:       t.errorCount.Load(),
		LocalEvictions:   t.evictionCount.Load(),
		LocalExpirations: t.expirationCount.Load(),
		DegradedCount:    t.degradedCount.Load(),
		RefreshCount:     t.refreshCount.Load(),
		RefreshDiscarded: t.refreshDiscarded.Load(),
	}

	if len(latencyCopy) > 0 {
		snapshot.AvgLatencyMs = durationMs(avgDuration(latencyCopy))
		snapshot.P50LatencyMs = durationMs(percentile(latencyCopy, 50))
		snapshot.P95LatencyMs = durationMs(percentile(latencyCopy, 95))
		snapshot.P99LatencyMs = durationMs(percentile(latencyCopy, 99))
	}

	return snapshot
}

// Reset clears all metrics.
func (t *Tracker) Reset() {
	t.localHits.Store(0)
	t.localMisses.Store(0)
	t.remoteHits.Store(0)
	t.remoteMisses.Store(0)
	t.getCount.Store(0)
	t.setCount.Store(0)
	t.deleteCount.Store(0)
	t.errorCount.Store(0)
	t.evictionCount.Store(0)
	t.expirationCount.Store(0)
	t.refreshCount.Store(0)
	t.refreshDiscarded.Store(0)
	t.degradedCount.Store(0)
	t.totalBytesWritten.Store(0)
	t.cbStateChanges.Store(0)

	t.latencyMu.Lock()
	t.latencyIndex = 0
	t.latencyCount = 0
	t.latencyMu.Unlock()
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

func percentile(durations []time.Duration, p int) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	slices.Sort(sorted)

	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

var _ types.MetricsRecorder = (*Tracker)(nil)
