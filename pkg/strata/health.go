package strata

import (
	"github.com/strata-go/strata/internal/types"
)

type (
	// HealthStatus represents the overall health state.
	HealthStatus = types.HealthStatus

	// HealthMetrics contains overall cache health information.
	HealthMetrics = types.HealthMetrics

	// LocalHealthMetrics contains local tier health details.
	LocalHealthMetrics = types.LocalHealthMetrics

	// RemoteHealthMetrics contains remote tier health details.
	RemoteHealthMetrics = types.RemoteHealthMetrics

	// MetricsSnapshot contains a point-in-time view of cache metrics.
	MetricsSnapshot = types.MetricsSnapshot
)

const (
	// HealthStatusHealthy indicates all tiers operating normally.
	HealthStatusHealthy = types.HealthStatusHealthy
	// HealthStatusDegraded indicates partial functionality, typically a
	// remote tier that is down or fenced off.
	HealthStatusDegraded = types.HealthStatusDegraded
	// HealthStatusUnhealthy indicates the local tier is down.
	HealthStatusUnhealthy = types.HealthStatusUnhealthy
)
