package metrics

import (
	"fmt"
	"strings"

	"github.com/kilianp07/fuelq/core/factory"
)

// Config selects the sinks that receive allocation, queue and stock
// metrics.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort, when set, serves /metrics on that address.
	PrometheusPort string `json:"prometheus_port"`
}

var sinks = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinks.Register(name, f)
}

// SinkTypes lists the registered sink types.
func SinkTypes() []string { return sinks.Names() }

// Validate rejects unnamed sinks and sinks listed twice. A sink type owns
// its collectors, so a second instance would record every fill and stock
// level twice or collide on registration.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Sinks))
	for i, s := range c.Sinks {
		t := strings.TrimSpace(s.Type)
		if t == "" {
			return fmt.Errorf("metrics: sink %d has no type", i)
		}
		if seen[t] {
			return fmt.Errorf("metrics: sink %q listed twice", t)
		}
		seen[t] = true
	}
	return nil
}

// NewSink builds the configured sinks. No sink yields a NopSink and
// several a MultiSink fanning out to each.
func (c Config) NewSink() (MetricsSink, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	built := make([]MetricsSink, 0, len(c.Sinks))
	for _, s := range c.Sinks {
		sink, err := sinks.Create(s)
		if err != nil {
			return nil, fmt.Errorf("metrics sink %q (known: %s): %w", s.Type, strings.Join(SinkTypes(), ", "), err)
		}
		built = append(built, sink)
	}
	switch len(built) {
	case 0:
		return NopSink{}, nil
	case 1:
		return built[0], nil
	}
	return NewMultiSink(built...), nil
}
