// Package allocation runs the request lifecycle: intake, fan-out into
// station waiting queues, promotion into announced queues and fulfilment
// against the quota and stock ledgers.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/fuelq/core/allocation/logging"
	"github.com/kilianp07/fuelq/core/events"
	"github.com/kilianp07/fuelq/core/logger"
	"github.com/kilianp07/fuelq/core/metrics"
	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/monitoring"
	"github.com/kilianp07/fuelq/core/queue"
	"github.com/kilianp07/fuelq/core/quota"
	"github.com/kilianp07/fuelq/core/request"
	"github.com/kilianp07/fuelq/core/stock"
	"github.com/kilianp07/fuelq/core/store"
	"github.com/kilianp07/fuelq/internal/eventbus"
	"github.com/kilianp07/fuelq/internal/keylock"
)

// Operation names used for metrics and the journal.
const (
	OpSubmit        = "submit"
	OpCancel        = "cancel"
	OpAnnounce      = "announce"
	OpActivate      = "activate"
	OpFill          = "fill"
	OpRefill        = "refill"
	OpRegister      = "register_station"
	OpSetAllowance  = "set_allowance"
	OpResetQuota    = "reset_quota"
	OpMarkRead      = "mark_notifications_read"
	cancelByQuota   = "quota exceeded at fill"
	requeueBySupply = "station stock shortfall"
)

// NotificationSender hands notifications to a delivery channel without
// waiting for the result.
type NotificationSender interface {
	Send(ns ...model.Notification)
}

// Engine coordinates the ledgers and queue stores.
type Engine struct {
	store     store.Store
	requests  *request.Ledger
	quota     *quota.Ledger
	stock     *stock.Ledger
	waiting   *queue.WaitingStore
	announced *queue.AnnouncedStore
	estimator *queue.Estimator

	subjects *keylock.Map
	stations *keylock.Map
	queues   *keylock.Map

	logger   logger.Logger
	metrics  metrics.MetricsSink
	bus      *eventbus.TypedBus[events.Event]
	journal  logging.LogStore
	notifier NotificationSender
	now      func() time.Time
}

// NewEngine wires an engine over st. sink, bus and log may be nil.
func NewEngine(st store.Store, cfg Config, sink metrics.MetricsSink, bus *eventbus.TypedBus[events.Event], log logger.Logger) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("allocation: nil store provided to NewEngine")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Engine{
		store:     st,
		requests:  request.NewLedger(st, cfg.retry("request")),
		quota:     quota.NewLedger(st, cfg.retry("quota")),
		stock:     stock.NewLedger(st, cfg.retry("stock")),
		waiting:   queue.NewWaitingStore(st, cfg.retry("waiting_queue")),
		announced: queue.NewAnnouncedStore(st, cfg.retry("announced_queue")),
		estimator: queue.NewEstimator(cfg.serviceTime(), cfg.EstimatorWindow),
		subjects:  keylock.New(),
		stations:  keylock.New(),
		queues:    keylock.New(),
		logger:    logger.OrNop(log),
		metrics:   sink,
		bus:       bus,
		journal:   logging.NopStore{},
		now:       time.Now,
	}, nil
}

// SetLogStore configures the journal every operation is appended to.
func (e *Engine) SetLogStore(s logging.LogStore) {
	if s == nil {
		s = logging.NopStore{}
	}
	e.journal = s
}

// SetNotifier configures where notifications are sent.
func (e *Engine) SetNotifier(n NotificationSender) { e.notifier = n }

// SetClock overrides the time source of the engine and its ledgers.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.requests.SetClock(now)
	e.quota.SetClock(now)
	e.stock.SetClock(now)
	e.waiting.SetClock(now)
	e.announced.SetClock(now)
}

// Estimator exposes the service time estimator.
func (e *Engine) Estimator() *queue.Estimator { return e.estimator }

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) notify(ns ...model.Notification) {
	if e.notifier == nil || len(ns) == 0 {
		return
	}
	e.notifier.Send(ns...)
}

// finish records the outcome of an operation in metrics, the journal and
// the log. Unexpected failures are reported to the monitor.
func (e *Engine) finish(op string, start time.Time, rec logging.LogRecord, vehicles int, err error) {
	outcome := model.ErrorKind(err)
	elapsed := e.now().Sub(start)
	operationsTotal.WithLabelValues(op, outcome).Inc()
	operationLatency.WithLabelValues(op).Observe(elapsed.Seconds())

	rec.Timestamp = e.now()
	rec.Operation = op
	rec.Outcome = outcome
	if err != nil {
		rec.Error = err.Error()
	}
	if jerr := e.journal.Append(context.Background(), rec); jerr != nil {
		e.logger.Errorf("journal append failed: %v", jerr)
	}
	if merr := e.metrics.RecordAllocation(metrics.AllocationEvent{
		Operation: op,
		Outcome:   outcome,
		Station:   rec.Station,
		FuelType:  rec.FuelType,
		Amount:    rec.Amount,
		Vehicles:  vehicles,
		Latency:   elapsed,
		Time:      rec.Timestamp,
	}); merr != nil {
		e.logger.Errorf("metrics error: %v", merr)
	}

	switch outcome {
	case "ok":
		e.logger.Infof("%s ok request=%s queue=%s station=%s", op, rec.RequestID, rec.QueueID, rec.Station)
	case "internal", "conflict":
		e.logger.Errorf("%s failed: %v", op, err)
		monitoring.CaptureException(err, map[string]string{"module": "allocation", "operation": op})
	default:
		e.logger.Warnf("%s rejected: %v", op, err)
	}
}

// bestEffort logs and reports a failed follow-up step that must not fail
// the operation.
func (e *Engine) bestEffort(step string, err error) {
	if err == nil {
		return
	}
	e.logger.Errorf("%s: %v", step, err)
	monitoring.CaptureException(err, map[string]string{"module": "allocation", "step": step})
}

func (e *Engine) stockChanged(s model.Stock, cause string) {
	e.publish(events.StockChanged{Stock: s, Cause: cause})
}

func subjectKey(regNo string, fuel model.FuelType) string { return regNo + "|" + string(fuel) }

func isNotFound(err error) bool { return errors.Is(err, model.ErrNotFound) }
