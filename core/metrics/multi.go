package metrics

import "go.uber.org/multierr"

// MultiSink fans records out to several sinks. Every sink is tried; the
// errors are combined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAllocation forwards the event to all sinks.
func (m *MultiSink) RecordAllocation(ev AllocationEvent) error {
	var errs error
	for _, s := range m.Sinks {
		errs = multierr.Append(errs, s.RecordAllocation(ev))
	}
	return errs
}

// RecordStockLevel forwards stock snapshots to the sinks supporting them.
func (m *MultiSink) RecordStockLevel(ev StockLevelEvent) error {
	var errs error
	for _, s := range m.Sinks {
		if rec, ok := s.(StockLevelRecorder); ok {
			errs = multierr.Append(errs, rec.RecordStockLevel(ev))
		}
	}
	return errs
}

// RecordQueue forwards queue snapshots to the sinks supporting them.
func (m *MultiSink) RecordQueue(ev QueueEvent) error {
	var errs error
	for _, s := range m.Sinks {
		if rec, ok := s.(QueueRecorder); ok {
			errs = multierr.Append(errs, rec.RecordQueue(ev))
		}
	}
	return errs
}

// RecordNotification forwards delivery records to the sinks supporting them.
func (m *MultiSink) RecordNotification(ev NotificationEvent) error {
	var errs error
	for _, s := range m.Sinks {
		if rec, ok := s.(NotificationRecorder); ok {
			errs = multierr.Append(errs, rec.RecordNotification(ev))
		}
	}
	return errs
}
