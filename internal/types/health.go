package types

import "time"

// HealthStatus represents the overall health state.
type HealthStatus int

const (
	// HealthStatusHealthy indicates all tiers operating normally.
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusDegraded indicates partial functionality (e.g., remote tier down).
	HealthStatusDegraded
	// HealthStatusUnhealthy indicates critical failure.
	HealthStatusUnhealthy
)

// String returns the string representation of health status.
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// HealthMetrics contains overall cache health information.
type HealthMetrics struct {
	Timestamp time.Time
	Remote    RemoteHealthMetrics
	Local     LocalHealthMetrics
	Status    HealthStatus
}

// LocalHealthMetrics contains local tier health details.
type LocalHealthMetrics struct {
	Status          HealthStatus
	Available       bool
	EntryCount      int
	SizeBytes       int64
	MaxSizeBytes    int64
	UsagePercentage float64
	HitCount        int64
	MissCount       int64
	HitRatio        float64
	EvictionCount   int64
}

// RemoteHealthMetrics contains remote tier health details.
//
//nolint:govet // Metrics struct - logical grouping prioritized for readability
type RemoteHealthMetrics struct {
	LastErrorTime       time.Time
	DroppedWrites       int64
	HitCount            int64
	MissCount           int64
	HitRatio            float64
	CircuitBreakerState string
	LastError           string
	PendingWrites       int
	Status              HealthStatus
	Available           bool
	Connected           bool
}

// PublisherHealthMetrics is the condensed health view handed to metric
// publishers on each publish interval.
type PublisherHealthMetrics struct {
	LocalUsedBytes       int64
	LocalLimitBytes      int64
	LocalUsagePercentage float64
	TotalEntries         int64
	HitRatio             float64
	AverageLatencyMs     float64
	RemoteConnected      bool
	CircuitBreakerState  string
}

// MetricsSnapshot contains an immutable point-in-time view of cache
// metrics. Snapshots are produced periodically and never mutated after
// creation.
//
//nolint:govet // Metrics struct with many counters - grouping by category improves readability
type MetricsSnapshot struct {
	Timestamp time.Time
	// Hit/miss counters
	LocalHits    int64
	LocalMisses  int64
	RemoteHits   int64
	RemoteMisses int64
	// Operation counters
	GetCount    int64
	SetCount    int64
	DeleteCount int64
	ErrorCount  int64

	// Latency metrics (milliseconds)
	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64

	// Local tier metrics
	LocalSizeBytes   int64
	LocalEntries     int64
	LocalEvictions   int64
	LocalExpirations int64
	LocalMaxBytes    int64
	LocalUsageRatio  float64

	// Remote tier metrics
	RemoteConnected     bool
	RemotePendingWrites int
	RemoteDroppedWrites int64
	CircuitBreakerState string

	// Resilience metrics
	RetryCount       int64
	BulkheadRejected int64
	DegradedCount    int64

	// Stale-while-revalidate metrics
	RefreshCount     int64
	RefreshDiscarded int64
}

// LocalHitRatio calculates the local tier hit ratio.
func (s *MetricsSnapshot) LocalHitRatio() float64 {
	total := s.LocalHits + s.LocalMisses
	if total == 0 {
		return 0
	}
	return float64(s.LocalHits) / float64(total)
}

// RemoteHitRatio calculates the remote tier hit ratio.
func (s *MetricsSnapshot) RemoteHitRatio() float64 {
	total := s.RemoteHits + s.RemoteMisses
	if total == 0 {
		return 0
	}
	return float64(s.RemoteHits) / float64(total)
}

// TotalHitRatio calculates the overall cache hit ratio.
func (s *MetricsSnapshot) TotalHitRatio() float64 {
	totalHits := s.LocalHits + s.RemoteHits
	totalMisses := s.LocalMisses + s.RemoteMisses
	total := totalHits + totalMisses
	if total == 0 {
		return 0
	}
	return float64(totalHits) / float64(total)
}
