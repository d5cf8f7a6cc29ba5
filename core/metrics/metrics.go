package metrics

import (
	"time"

	"github.com/kilianp07/fuelq/core/model"
)

// AllocationEvent describes the outcome of one engine operation.
type AllocationEvent struct {
	Operation string
	Outcome   string
	Station   string
	FuelType  model.FuelType
	Amount    float64
	Vehicles  int
	Latency   time.Duration
	Time      time.Time
}

// MetricsSink records allocation outcomes for observability purposes.
type MetricsSink interface {
	RecordAllocation(ev AllocationEvent) error
}

// StockLevelEvent is a snapshot of a station's stock record.
type StockLevelEvent struct {
	Station  string
	FuelType model.FuelType
	Current  float64
	Reserved float64
	Cause    string
	Time     time.Time
}

// StockLevelRecorder records stock snapshots.
type StockLevelRecorder interface {
	RecordStockLevel(ev StockLevelEvent) error
}

// QueueEvent is a snapshot of an announced queue.
type QueueEvent struct {
	QueueID        string
	Station        string
	FuelType       model.FuelType
	State          model.QueueState
	Vehicles       int
	Remaining      int
	SelectedAmount float64
	FilledAmount   float64
	Time           time.Time
}

// QueueRecorder records queue snapshots.
type QueueRecorder interface {
	RecordQueue(ev QueueEvent) error
}

// NotificationEvent records one delivery attempt.
type NotificationEvent struct {
	Channel   string
	Recipient string
	Delivered bool
	Error     string
	Time      time.Time
}

// NotificationRecorder records notification deliveries.
type NotificationRecorder interface {
	RecordNotification(ev NotificationEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAllocation(AllocationEvent) error     { return nil }
func (NopSink) RecordStockLevel(StockLevelEvent) error     { return nil }
func (NopSink) RecordQueue(QueueEvent) error               { return nil }
func (NopSink) RecordNotification(NotificationEvent) error { return nil }
