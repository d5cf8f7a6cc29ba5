package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fuelq/core/metrics"
)

// PromSink records allocation events in Prometheus metrics.
type PromSink struct {
	events        *prometheus.CounterVec
	litres        *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	stock         *prometheus.GaugeVec
	reserved      *prometheus.GaugeVec
	queueVehicles *prometheus.GaugeVec
	notifications *prometheus.CounterVec
}

// NewPromSink registers the sink's collectors on the default registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelq_allocation_events_total",
			Help: "Allocation operations by outcome",
		}, []string{"operation", "outcome", "fuel_type"}),
		litres: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelq_allocation_litres_total",
			Help: "Litres handled by successful allocation operations",
		}, []string{"operation", "station", "fuel_type"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fuelq_allocation_duration_seconds",
			Help:    "Time spent in allocation operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		stock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fuelq_station_stock_litres",
			Help: "On-hand fuel per station",
		}, []string{"station", "fuel_type"}),
		reserved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fuelq_station_reserved_litres",
			Help: "Fuel reserved for announced queues per station",
		}, []string{"station", "fuel_type"}),
		queueVehicles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fuelq_queue_remaining_vehicles",
			Help: "Vehicles still to be served in open queues per station",
		}, []string{"station", "fuel_type"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelq_notifications_total",
			Help: "Notification delivery attempts",
		}, []string{"channel", "delivered"}),
	}
	var err error
	if s.events, err = register(reg, s.events); err != nil {
		return nil, err
	}
	if s.litres, err = register(reg, s.litres); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	if s.stock, err = register(reg, s.stock); err != nil {
		return nil, err
	}
	if s.reserved, err = register(reg, s.reserved); err != nil {
		return nil, err
	}
	if s.queueVehicles, err = register(reg, s.queueVehicles); err != nil {
		return nil, err
	}
	if s.notifications, err = register(reg, s.notifications); err != nil {
		return nil, err
	}
	return s, nil
}

// register reuses an identical collector registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAllocation counts the operation and observes its latency.
func (s *PromSink) RecordAllocation(ev coremetrics.AllocationEvent) error {
	s.events.WithLabelValues(ev.Operation, ev.Outcome, string(ev.FuelType)).Inc()
	if ev.Outcome == "ok" && ev.Amount > 0 {
		s.litres.WithLabelValues(ev.Operation, ev.Station, string(ev.FuelType)).Add(ev.Amount)
	}
	if ev.Latency > 0 {
		s.latency.WithLabelValues(ev.Operation).Observe(ev.Latency.Seconds())
	}
	return nil
}

// RecordStockLevel sets the stock gauges.
func (s *PromSink) RecordStockLevel(ev coremetrics.StockLevelEvent) error {
	s.stock.WithLabelValues(ev.Station, string(ev.FuelType)).Set(ev.Current)
	s.reserved.WithLabelValues(ev.Station, string(ev.FuelType)).Set(ev.Reserved)
	return nil
}

// RecordQueue sets the remaining vehicle gauge of the queue's station.
func (s *PromSink) RecordQueue(ev coremetrics.QueueEvent) error {
	s.queueVehicles.WithLabelValues(ev.Station, string(ev.FuelType)).Set(float64(ev.Remaining))
	return nil
}

// RecordNotification counts a delivery attempt.
func (s *PromSink) RecordNotification(ev coremetrics.NotificationEvent) error {
	delivered := "false"
	if ev.Delivered {
		delivered = "true"
	}
	s.notifications.WithLabelValues(ev.Channel, delivered).Inc()
	return nil
}
