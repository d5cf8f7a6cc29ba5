package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/fuelq/core/allocation/logging"
	"github.com/kilianp07/fuelq/core/model"
)

// ListWaitingQueue returns the requests still waiting at a station in
// service order. Entries whose request moved on are skipped.
func (e *Engine) ListWaitingQueue(ctx context.Context, station string, fuel model.FuelType) ([]model.RequestRef, error) {
	if _, err := e.stock.Get(ctx, station, fuel); err != nil {
		return nil, err
	}
	refs, err := e.waiting.List(ctx, station, fuel)
	if err != nil {
		return nil, err
	}
	out := refs[:0]
	for _, ref := range refs {
		r, err := e.requests.Get(ctx, ref.RequestID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if r.State == model.RequestWaiting {
			out = append(out, ref)
		}
	}
	return out, nil
}

// ListAnnouncedQueues returns the queues matching f.
func (e *Engine) ListAnnouncedQueues(ctx context.Context, f model.QueueFilter) ([]model.AnnouncedQueue, error) {
	return e.announced.List(ctx, f)
}

// GetQueue returns one announced queue.
func (e *Engine) GetQueue(ctx context.Context, id string) (model.AnnouncedQueue, error) {
	return e.announced.Get(ctx, id)
}

// GetRequest returns one request.
func (e *Engine) GetRequest(ctx context.Context, id string) (model.Request, error) {
	return e.requests.Get(ctx, id)
}

// ListSubjectRequests returns every request of a registration number.
func (e *Engine) ListSubjectRequests(ctx context.Context, regNo string) ([]model.Request, error) {
	return e.requests.ListBySubject(ctx, regNo)
}

// GetQuota returns a subject's quota for fuel.
func (e *Engine) GetQuota(ctx context.Context, subject string, fuel model.FuelType) (model.Quota, error) {
	return e.quota.Get(ctx, subject, fuel)
}

// ListQuotas returns every quota of a subject.
func (e *Engine) ListQuotas(ctx context.Context, subject string) ([]model.Quota, error) {
	return e.quota.List(ctx, subject)
}

// GetStock returns a station's stock record for fuel.
func (e *Engine) GetStock(ctx context.Context, station string, fuel model.FuelType) (model.Stock, error) {
	return e.stock.Get(ctx, station, fuel)
}

// ListStationStock returns every stock record of a station.
func (e *Engine) ListStationStock(ctx context.Context, station string) ([]model.Stock, error) {
	ok, err := e.stock.Exists(ctx, station)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrStationNotFound, station)
	}
	return e.stock.ListStation(ctx, station)
}

// Notifications returns every notification of recipient, newest first.
func (e *Engine) Notifications(ctx context.Context, recipient string) ([]model.Notification, error) {
	return e.store.ListNotifications(ctx, recipient, false)
}

// UnreadNotifications returns the unread notifications of recipient.
func (e *Engine) UnreadNotifications(ctx context.Context, recipient string) ([]model.Notification, error) {
	return e.store.ListNotifications(ctx, recipient, true)
}

// MarkNotificationsRead flags ids, or every notification when ids is
// empty, as read and returns how many changed.
func (e *Engine) MarkNotificationsRead(ctx context.Context, recipient string, ids []string) (n int, err error) {
	start := e.now()
	defer func() {
		e.finish(OpMarkRead, start, logging.LogRecord{RegistrationNo: recipient, RequestIDs: ids}, 0, err)
	}()
	if recipient == "" {
		return 0, model.Validationf("recipient is required")
	}
	return e.store.MarkNotificationsRead(ctx, recipient, ids)
}

// RefillStation adds a delivery to a station's stock.
func (e *Engine) RefillStation(ctx context.Context, station string, fuel model.FuelType, added float64) (s model.Stock, err error) {
	start := e.now()
	defer func() {
		e.finish(OpRefill, start, logging.LogRecord{Station: station, FuelType: fuel, Amount: added}, 0, err)
	}()
	s, err = e.stock.ApplyRefill(ctx, station, fuel, added)
	if err != nil {
		return s, err
	}
	e.stockChanged(s, "refill")
	return s, nil
}

// RegisterStation creates the stock record of a station for fuel.
func (e *Engine) RegisterStation(ctx context.Context, station string, fuel model.FuelType, initial float64) (s model.Stock, err error) {
	start := e.now()
	defer func() {
		e.finish(OpRegister, start, logging.LogRecord{Station: station, FuelType: fuel, Amount: initial}, 0, err)
	}()
	s, err = e.stock.Register(ctx, station, fuel, initial)
	if err != nil {
		return s, err
	}
	e.stockChanged(s, "register")
	return s, nil
}

// SetQuotaAllowance creates or changes a subject's allowance.
func (e *Engine) SetQuotaAllowance(ctx context.Context, subject string, fuel model.FuelType, allowed float64) (q model.Quota, err error) {
	start := e.now()
	defer func() {
		e.finish(OpSetAllowance, start, logging.LogRecord{RegistrationNo: subject, FuelType: fuel, Amount: allowed}, 0, err)
	}()
	return e.quota.SetAllowance(ctx, subject, fuel, allowed)
}

// ResetQuotaPeriod zeroes a subject's usage and starts a new period at
// start, or now when start is zero.
func (e *Engine) ResetQuotaPeriod(ctx context.Context, subject string, fuel model.FuelType, start time.Time) (q model.Quota, err error) {
	began := e.now()
	defer func() {
		e.finish(OpResetQuota, began, logging.LogRecord{RegistrationNo: subject, FuelType: fuel}, 0, err)
	}()
	if start.IsZero() {
		start = began
	}
	return e.quota.ResetPeriod(ctx, subject, fuel, start)
}
