package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/fuelq/core/allocation/logging"
	"github.com/kilianp07/fuelq/core/events"
	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/notify"
)

var fillable = []model.RequestState{model.RequestAnnounced, model.RequestActive}

// FillRequest records that a station dispensed filled litres to a request
// of the queue. The quota is committed first, then the stock. A quota
// refusal cancels only this request; a stock shortfall sends every request
// still in the queue back to waiting and closes the queue.
func (e *Engine) FillRequest(ctx context.Context, queueID, requestID string, filled float64) (res FillResult, err error) {
	start := e.now()
	defer func() {
		e.finish(OpFill, start, logging.LogRecord{
			QueueID:        queueID,
			RequestID:      requestID,
			RequestIDs:     res.Requeued,
			Station:        res.Queue.StationRegNo,
			FuelType:       res.Queue.FuelType,
			RegistrationNo: res.Request.RegistrationNo,
			Amount:         filled,
		}, 1, err)
	}()
	if queueID == "" || requestID == "" {
		return FillResult{}, model.Validationf("queue id and request id are required")
	}

	unlock := e.queues.Lock(queueID)
	defer unlock()

	q, err := e.announced.Get(ctx, queueID)
	if err != nil {
		return FillResult{}, err
	}
	ref, ok := q.Ref(requestID)
	if !ok {
		return FillResult{Queue: q}, fmt.Errorf("%w: request %s is not part of queue %s", model.ErrNotFound, requestID, queueID)
	}
	req, err := e.requests.Get(ctx, requestID)
	if err != nil {
		return FillResult{Queue: q}, err
	}
	if req.State == model.RequestClosed && req.QueueID == queueID {
		return FillResult{Outcome: FillAlreadyClosed, Request: req, Queue: q}, nil
	}
	if req.State.Terminal() || req.QueueID != queueID || !q.State.Open() {
		return FillResult{Request: req, Queue: q}, fmt.Errorf("%w: request %s is %s in queue %s (%s)",
			model.ErrInvalidStateTransition, requestID, req.State, queueID, q.State)
	}
	if filled <= 0 {
		return FillResult{Request: req, Queue: q}, model.Validationf("filled amount must be positive, got %v", filled)
	}
	station, fuel := q.StationRegNo, q.FuelType

	if _, err := e.quota.Commit(ctx, req.RegistrationNo, fuel, filled); err != nil {
		if !errors.Is(err, model.ErrQuotaExceeded) {
			return FillResult{Request: req, Queue: q}, err
		}
		return e.cancelOnQuota(ctx, q, ref, req, err)
	}

	s, err := e.stock.CommitDecrement(ctx, station, fuel, filled, ref.Amount, q.HeldAmount())
	if err != nil {
		_, qerr := e.quota.Release(ctx, req.RegistrationNo, fuel, filled)
		e.bestEffort("release quota after stock failure", qerr)
		if !errors.Is(err, model.ErrInsufficientStock) {
			return FillResult{Request: req, Queue: q}, err
		}
		return e.requeueOnShortfall(ctx, q, req, err)
	}
	e.stockChanged(s, "fill")

	now := e.now()
	closed, err := e.requests.TransitionFrom(ctx, requestID, fillable, model.RequestClosed, func(r *model.Request) {
		r.IsFilled = true
		r.FilledDate = now
		r.FilledAmount = filled
		r.FilledStation = station
	})
	if err != nil {
		e.undoFill(ctx, req, station, fuel, filled, ref.Amount)
		return FillResult{Request: req, Queue: q}, err
	}

	e.observeService(q, now)
	q2, err := e.announced.MarkTerminal(ctx, queueID, requestID, filled)
	if err != nil {
		e.bestEffort("mark request terminal", err)
		q2 = q
	}
	q2 = e.refreshEstimate(ctx, q2, now)
	e.publish(events.RequestFilled{Request: closed, QueueID: queueID})
	e.closedEvent(q, q2)
	e.notify(notify.New(closed.RegistrationNo, "Request filled",
		fmt.Sprintf("%.2f L of %s dispensed at station %s.", filled, fuel, station), now))
	return FillResult{Outcome: FillClosed, Request: closed, Queue: q2}, nil
}

// cancelOnQuota cancels a request whose fill would exceed its quota and
// frees its share of the station reservation.
func (e *Engine) cancelOnQuota(ctx context.Context, q model.AnnouncedQueue, ref model.RequestRef, req model.Request, cause error) (FillResult, error) {
	cancelled, err := e.requests.TransitionFrom(ctx, req.ID, fillable, model.RequestCancelled, func(r *model.Request) {
		r.CancelReason = cancelByQuota
	})
	if err != nil {
		return FillResult{Request: req, Queue: q}, err
	}
	s, err := e.stock.Release(ctx, q.StationRegNo, q.FuelType, ref.Amount)
	e.bestEffort("release reservation of cancelled request", err)
	if err == nil {
		e.stockChanged(s, "release")
	}
	q2, err := e.announced.MarkTerminal(ctx, q.ID, req.ID, 0)
	if err != nil {
		e.bestEffort("mark request terminal", err)
		q2 = q
	}
	e.publish(events.RequestCancelled{Request: cancelled, Reason: cancelByQuota})
	e.closedEvent(q, q2)
	e.notify(notify.New(cancelled.RegistrationNo, "Request cancelled",
		fmt.Sprintf("Your %s request was cancelled at station %s: %v.", q.FuelType, q.StationRegNo, cause), e.now()))
	return FillResult{Outcome: FillCancelled, Request: cancelled, Queue: q2}, cause
}

// requeueOnShortfall closes the queue and sends its remaining requests back
// to waiting at all of their stations.
func (e *Engine) requeueOnShortfall(ctx context.Context, q model.AnnouncedQueue, req model.Request, cause error) (FillResult, error) {
	q2, drained, err := e.announced.Drain(ctx, q.ID)
	if err != nil {
		return FillResult{Request: req, Queue: q}, err
	}
	refs := make([]model.RequestRef, 0, len(drained))
	for _, id := range drained {
		if ref, ok := q2.Ref(id); ok {
			refs = append(refs, ref)
		}
	}
	moved, held := e.returnToWaiting(ctx, refs)
	if held > 0 {
		s, rerr := e.stock.Release(ctx, q.StationRegNo, q.FuelType, held)
		e.bestEffort("release reservation after shortfall", rerr)
		if rerr == nil {
			e.stockChanged(s, "release")
		}
	}
	if current, gerr := e.requests.Get(ctx, req.ID); gerr == nil {
		req = current
	}
	e.publish(events.RequestsRequeued{QueueID: q.ID, Station: q.StationRegNo, FuelType: q.FuelType, RequestIDs: moved})
	e.publish(events.QueueClosed{Queue: q2})
	now := e.now()
	ns := make([]model.Notification, 0, len(refs))
	for _, ref := range refs {
		ns = append(ns, notify.New(ref.RegistrationNo, "Back in waiting queue",
			fmt.Sprintf("Station %s ran short of %s; your request is waiting again at its stations.", q.StationRegNo, q.FuelType), now))
	}
	e.notify(ns...)
	return FillResult{Outcome: FillRequeued, Request: req, Queue: q2, Requeued: moved}, cause
}

// undoFill reverts both ledgers when the request could not be closed after
// they were committed.
func (e *Engine) undoFill(ctx context.Context, req model.Request, station string, fuel model.FuelType, filled, reserved float64) {
	_, err := e.quota.Release(ctx, req.RegistrationNo, fuel, filled)
	e.bestEffort("undo quota commit", err)
	_, err = e.stock.ApplyRefill(ctx, station, fuel, filled)
	e.bestEffort("undo stock decrement", err)
	s, err := e.stock.Reserve(ctx, station, fuel, reserved)
	e.bestEffort("restore reservation", err)
	if err == nil {
		e.stockChanged(s, "restore")
	}
}

// observeService feeds the time spent on the last vehicle to the estimator.
func (e *Engine) observeService(q model.AnnouncedQueue, now time.Time) {
	if q.State != model.QueueActive {
		return
	}
	from := q.QueueStartTime
	if q.LastServedAt.After(from) {
		from = q.LastServedAt
	}
	if !from.IsZero() && now.After(from) {
		e.estimator.Observe(q.StationRegNo, now.Sub(from))
	}
}

// refreshEstimate moves the expected end of an active queue to now plus the
// estimated time for the vehicles still to be served.
func (e *Engine) refreshEstimate(ctx context.Context, q model.AnnouncedQueue, now time.Time) model.AnnouncedQueue {
	if q.State != model.QueueActive {
		return q
	}
	end := e.estimator.EstimateEnd(q.StationRegNo, now, len(q.Remaining))
	updated, err := e.announced.SetEstimatedEnd(ctx, q.ID, end)
	if err != nil {
		e.bestEffort("refresh estimated end", err)
		return q
	}
	return updated
}

func (e *Engine) closedEvent(before, after model.AnnouncedQueue) {
	if before.State != model.QueueClosed && after.State == model.QueueClosed {
		e.publish(events.QueueClosed{Queue: after})
	}
}
