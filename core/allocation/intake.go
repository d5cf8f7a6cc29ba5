package allocation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/fuelq/core/allocation/logging"
	"github.com/kilianp07/fuelq/core/events"
	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/request"
)

var cancellable = []model.RequestState{model.RequestPending, model.RequestWaiting}

// SubmitRequest validates sub, checks the subject's quota and places the
// new request in the waiting queue of every requested station.
func (e *Engine) SubmitRequest(ctx context.Context, sub model.Submission) (req model.Request, err error) {
	start := e.now()
	defer func() {
		e.finish(OpSubmit, start, logging.LogRecord{
			RequestID:      req.ID,
			Station:        strings.Join(sub.RequestedStations, ","),
			FuelType:       sub.FuelType,
			RegistrationNo: sub.RegistrationNo,
			Amount:         sub.Amount,
		}, 0, err)
	}()

	if err := sub.Validate(); err != nil {
		e.publish(events.RequestRejected{Submission: sub, Reason: err.Error()})
		return model.Request{}, err
	}
	for _, st := range sub.RequestedStations {
		if _, err := e.stock.Get(ctx, st, sub.FuelType); err != nil {
			e.publish(events.RequestRejected{Submission: sub, Reason: err.Error()})
			return model.Request{}, err
		}
	}

	unlock := e.subjects.Lock(subjectKey(sub.RegistrationNo, sub.FuelType))
	defer unlock()

	open, found, err := e.requests.FindOpen(ctx, sub.RegistrationNo, sub.FuelType)
	if err != nil {
		return model.Request{}, err
	}
	if found {
		err := model.Validationf("%s already has an open %s request %s", sub.RegistrationNo, sub.FuelType, open.ID)
		e.publish(events.RequestRejected{Submission: sub, Reason: err.Error()})
		return model.Request{}, err
	}
	if err := e.quota.CheckAndReserve(ctx, sub.RegistrationNo, sub.FuelType, sub.Amount); err != nil {
		e.publish(events.RequestRejected{Submission: sub, Reason: err.Error()})
		return model.Request{}, err
	}

	req, err = e.requests.Create(ctx, sub)
	if err != nil {
		return model.Request{}, err
	}
	if err := e.fanOut(ctx, req); err != nil {
		e.abandon(ctx, req, "fan-out failed")
		return req, err
	}
	req, err = e.requests.TransitionFrom(ctx, req.ID, []model.RequestState{model.RequestPending}, model.RequestWaiting, nil)
	if err != nil {
		e.abandon(ctx, req, "activation failed")
		return req, err
	}
	e.publish(events.RequestSubmitted{Request: req})
	return req, nil
}

// fanOut adds req to the waiting queue of each requested station in the
// order the requester gave them. Entries added before a failure are
// removed again.
func (e *Engine) fanOut(ctx context.Context, req model.Request) error {
	ref := req.Ref()
	for i, st := range req.RequestedStations {
		if _, err := e.waiting.AddRequest(ctx, st, req.FuelType, ref); err != nil {
			for _, done := range req.RequestedStations[:i] {
				_, rerr := e.waiting.RemoveRequest(ctx, done, req.FuelType, req.ID)
				e.bestEffort("fan-out rollback", rerr)
			}
			return fmt.Errorf("add %s to %s: %w", req.ID, st, err)
		}
	}
	return nil
}

// abandon cancels a request whose intake could not complete.
func (e *Engine) abandon(ctx context.Context, req model.Request, reason string) {
	e.removeFromStations(ctx, req)
	_, err := e.requests.TransitionFrom(ctx, req.ID, cancellable, model.RequestCancelled, func(r *model.Request) {
		r.CancelReason = reason
	})
	e.bestEffort("abandon request", err)
}

func (e *Engine) removeFromStations(ctx context.Context, req model.Request) {
	for _, st := range req.RequestedStations {
		_, err := e.waiting.RemoveRequest(ctx, st, req.FuelType, req.ID)
		e.bestEffort("remove waiting entry", err)
	}
}

// CancelRequest cancels a request that has not been announced yet and
// takes it off every waiting queue.
func (e *Engine) CancelRequest(ctx context.Context, id, reason string) (req model.Request, err error) {
	start := e.now()
	defer func() {
		e.finish(OpCancel, start, logging.LogRecord{
			RequestID:      id,
			FuelType:       req.FuelType,
			RegistrationNo: req.RegistrationNo,
			Amount:         req.QuotaAmount,
		}, 0, err)
	}()
	if id == "" {
		return model.Request{}, model.Validationf("request id is required")
	}
	if reason == "" {
		reason = "cancelled by requester"
	}
	req, err = e.requests.TransitionFrom(ctx, id, cancellable, model.RequestCancelled, func(r *model.Request) {
		r.CancelReason = reason
	})
	if err != nil {
		if request.IsUnexpectedState(err) {
			return req, fmt.Errorf("%w: only pending or waiting requests can be cancelled", err)
		}
		return req, err
	}
	e.removeFromStations(ctx, req)
	e.publish(events.RequestCancelled{Request: req, Reason: reason})
	return req, nil
}

// returnToWaiting moves each request of refs from announced or active back
// to waiting and re-adds it to all of its stations. It returns the ids that
// moved and the amount their reservations held.
func (e *Engine) returnToWaiting(ctx context.Context, refs []model.RequestRef) ([]string, float64) {
	var (
		moved    []string
		released float64
	)
	for _, ref := range refs {
		r, err := e.requests.TransitionFrom(ctx, ref.RequestID,
			[]model.RequestState{model.RequestAnnounced, model.RequestActive}, model.RequestWaiting,
			func(r *model.Request) {
				r.QueueID = ""
				r.FilledStation = ""
			})
		if err != nil {
			if !errors.Is(err, request.ErrUnexpectedState) {
				e.bestEffort("requeue request", err)
			}
			continue
		}
		released += ref.Amount
		moved = append(moved, r.ID)
		if err := e.fanOut(ctx, r); err != nil {
			e.bestEffort("requeue fan-out", err)
		}
	}
	return moved, released
}
