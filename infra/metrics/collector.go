package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/fuelq/core/events"
	coremetrics "github.com/kilianp07/fuelq/core/metrics"
	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and turns stock and queue
// events into snapshots for the sink. It stops when the context is canceled
// or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				collect(sink, ev)
			}
		}
	}()
	return done
}

func collect(sink coremetrics.MetricsSink, ev events.Event) {
	now := time.Now()
	switch e := ev.(type) {
	case events.StockChanged:
		if r, ok := sink.(coremetrics.StockLevelRecorder); ok {
			_ = r.RecordStockLevel(coremetrics.StockLevelEvent{
				Station:  e.Stock.StationRegNo,
				FuelType: e.Stock.FuelType,
				Current:  e.Stock.CurrentAmount,
				Reserved: e.Stock.ReservedAmount,
				Cause:    e.Cause,
				Time:     now,
			})
		}
	case events.QueueAnnounced:
		recordQueue(sink, e.Queue, now)
	case events.QueueActivated:
		recordQueue(sink, e.Queue, now)
	case events.QueueClosed:
		recordQueue(sink, e.Queue, now)
	}
}

func recordQueue(sink coremetrics.MetricsSink, q model.AnnouncedQueue, now time.Time) {
	r, ok := sink.(coremetrics.QueueRecorder)
	if !ok {
		return
	}
	_ = r.RecordQueue(coremetrics.QueueEvent{
		QueueID:        q.ID,
		Station:        q.StationRegNo,
		FuelType:       q.FuelType,
		State:          q.State,
		Vehicles:       q.VehicleCount,
		Remaining:      len(q.Remaining),
		SelectedAmount: q.SelectedAmount,
		FilledAmount:   q.FilledAmount,
		Time:           now,
	})
}
