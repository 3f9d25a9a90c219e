package metrics

import (
	"errors"
	"time"

	"github.com/strata-go/strata/internal/types"
)

// FanoutPublisher forwards every call to each underlying publisher, so
// one background loop can feed several sinks.
type FanoutPublisher struct {
	publishers []types.Publisher
}

// NewFanoutPublisher creates a publisher that fans out to the given sinks.
func NewFanoutPublisher(publishers ...types.Publisher) *FanoutPublisher {
	return &FanoutPublisher{publishers: publishers}
}

func (p *FanoutPublisher) Gauge(name string, value float64, tags ...string) {
	for _, pub := range p.publishers {
		pub.Gauge(name, value, tags...)
	}
}

func (p *FanoutPublisher) Incr(name string, tags ...string) {
	for _, pub := range p.publishers {
		pub.Incr(name, tags...)
	}
}

func (p *FanoutPublisher) Count(name string, value int64, tags ...string) {
	for _, pub := range p.publishers {
		pub.Count(name, value, tags...)
	}
}

func (p *FanoutPublisher) Histogram(name string, value float64, tags ...string) {
	for _, pub := range p.publishers {
		pub.Histogram(name, value, tags...)
	}
}

func (p *FanoutPublisher) Timing(name string, duration time.Duration, tags ...string) {
	for _, pub := range p.publishers {
		pub.Timing(name, duration, tags...)
	}
}

func (p *FanoutPublisher) Event(title, text, alertType string, tags ...string) {
	for _, pub := range p.publishers {
		pub.Event(title, text, alertType, tags...)
	}
}

func (p *FanoutPublisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	for _, pub := range p.publishers {
		pub.PublishHealthMetrics(m)
	}
}

// Close closes every sink and joins their errors.
func (p *FanoutPublisher) Close() error {
	var errs []error
	for _, pub := range p.publishers {
		if err := pub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ types.Publisher = (*FanoutPublisher)(nil)
