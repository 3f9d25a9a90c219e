// Package prom provides a Prometheus metrics publisher.
package prom

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/strata-go/strata/internal/config"
	"github.com/strata-go/strata/internal/metrics"
	"github.com/strata-go/strata/internal/types"

	"github.com/prometheus/client_golang/prometheus"
)

// Publisher implements types.Publisher on top of a private Prometheus
// registry. Collectors are created on first use, keyed by metric name;
// the label schema of a metric is fixed by its first emission, and later
// emissions with a different tag set are dropped rather than panicking
// the caller.
type Publisher struct {
	registry  *prometheus.Registry
	namespace string
	logger    *slog.Logger

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPublisher creates a Prometheus publisher from config. If Prometheus
// is not enabled, returns a no-op publisher instead.
func NewPublisher(cfg *config.PrometheusConfig, logger *slog.Logger) (types.Publisher, error) {
	if !cfg.Enabled {
		return metrics.NewNoOpPublisher(), nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "strata"
	}

	return &Publisher{
		registry:   prometheus.NewRegistry(),
		namespace:  namespace,
		logger:     logger.With("component", "prometheus"),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}, nil
}

// Registry returns the underlying registry so callers can mount it on a
// promhttp handler.
func (p *Publisher) Registry() *prometheus.Registry {
	return p.registry
}

// Gauge sets a gauge metric.
func (p *Publisher) Gauge(name string, value float64, tags ...string) {
	names, values := splitTags(tags)

	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      sanitizeName(name),
		}, names)
		p.registry.MustRegister(vec)
		p.gauges[name] = vec
	}
	p.mu.Unlock()

	g, err := vec.GetMetricWith(values)
	if err != nil {
		p.logger.Debug("Dropped gauge with mismatched labels", "name", name, "error", err)
		return
	}
	g.Set(value)
}

// Incr increments a counter by 1.
func (p *Publisher) Incr(name string, tags ...string) {
	p.Count(name, 1, tags...)
}

// Count increments a counter by a specified amount.
func (p *Publisher) Count(name string, value int64, tags ...string) {
	names, values := splitTags(tags)

	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      sanitizeName(name) + "_total",
		}, names)
		p.registry.MustRegister(vec)
		p.counters[name] = vec
	}
	p.mu.Unlock()

	c, err := vec.GetMetricWith(values)
	if err != nil {
		p.logger.Debug("Dropped count with mismatched labels", "name", name, "error", err)
		return
	}
	c.Add(float64(value))
}

// Histogram records a distribution of values.
func (p *Publisher) Histogram(name string, value float64, tags ...string) {
	p.observe(name, sanitizeName(name), value, tags)
}

// Timing records a timing metric as a seconds histogram.
func (p *Publisher) Timing(name string, duration time.Duration, tags ...string) {
	p.observe(name, sanitizeName(name)+"_seconds", duration.Seconds(), tags)
}

func (p *Publisher) observe(key, promName string, value float64, tags []string) {
	names, values := splitTags(tags)

	p.mu.Lock()
	vec, ok := p.histograms[key]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      promName,
			Buckets:   prometheus.DefBuckets,
		}, names)
		p.registry.MustRegister(vec)
		p.histograms[key] = vec
	}
	p.mu.Unlock()

	h, err := vec.GetMetricWith(values)
	if err != nil {
		p.logger.Debug("Dropped observation with mismatched labels", "name", key, "error", err)
		return
	}
	h.Observe(value)
}

// Event logs the event; Prometheus has no event concept.
func (p *Publisher) Event(title, text, alertType string, tags ...string) {
	p.logger.Info("event",
		"title", title,
		"text", text,
		"alert_type", alertType,
	)
}

// PublishHealthMetrics publishes a batch of health metrics as gauges.
func (p *Publisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}

	p.Gauge("local.used_bytes", float64(m.LocalUsedBytes))
	p.Gauge("local.limit_bytes", float64(m.LocalLimitBytes))
	p.Gauge("local.usage_percentage", float64(m.LocalUsagePercentage))
	p.Gauge("entries.total", float64(m.TotalEntries))
	p.Gauge("performance.hit_ratio", m.HitRatio)
	p.Gauge("performance.average_latency_ms", m.AverageLatencyMs)

	connected := 0.0
	if m.RemoteConnected {
		connected = 1.0
	}
	p.Gauge("remote.connection_status", connected)
}

// Close does nothing; the registry carries no external resources.
func (p *Publisher) Close() error {
	return nil
}

// splitTags turns "key:value" pairs into a sorted label-name slice and a
// label map. Malformed tags are skipped.
func splitTags(tags []string) ([]string, prometheus.Labels) {
	if len(tags) == 0 {
		return nil, prometheus.Labels{}
	}

	values := make(prometheus.Labels, len(tags))
	for _, tag := range tags {
		k, v, ok := strings.Cut(tag, ":")
		if !ok || k == "" {
			continue
		}
		values[sanitizeName(k)] = v
	}

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	return names, values
}

// sanitizeName maps dotted statsd-style names onto the Prometheus
// charset.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

var _ types.Publisher = (*Publisher)(nil)
