// Package request stores fuel requests and guards their state machine.
package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
)

// openStates are the non-terminal request states.
var openStates = []model.RequestState{
	model.RequestPending, model.RequestWaiting, model.RequestAnnounced, model.RequestActive,
}

// Ledger creates requests and moves them through their lifecycle with
// versioned compare-and-set writes.
type Ledger struct {
	repo  store.RequestRepo
	retry store.RetryPolicy
	now   func() time.Time
}

// NewLedger returns a Ledger over repo.
func NewLedger(repo store.RequestRepo, retry store.RetryPolicy) *Ledger {
	return &Ledger{repo: repo, retry: retry, now: time.Now}
}

// SetClock overrides the time source.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// Create persists a pending request built from sub.
func (l *Ledger) Create(ctx context.Context, sub model.Submission) (model.Request, error) {
	now := l.now()
	r := model.Request{
		ID:                uuid.NewString(),
		UserID:            sub.UserID,
		UserType:          sub.UserType,
		RegistrationNo:    sub.RegistrationNo,
		FuelType:          sub.FuelType,
		QuotaAmount:       sub.Amount,
		RequestedStations: append([]string(nil), sub.RequestedStations...),
		Priority:          sub.Priority,
		State:             model.RequestPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := l.repo.PutRequest(ctx, &r); err != nil {
		return model.Request{}, err
	}
	return r, nil
}

// Get returns the request with id.
func (l *Ledger) Get(ctx context.Context, id string) (model.Request, error) {
	return l.repo.GetRequest(ctx, id)
}

// FindOpen returns the subject's non-terminal request for fuel, if any.
func (l *Ledger) FindOpen(ctx context.Context, registrationNo string, fuel model.FuelType) (model.Request, bool, error) {
	list, err := l.repo.ListRequests(ctx, store.RequestFilter{RegistrationNo: registrationNo, FuelType: fuel, States: openStates})
	if err != nil || len(list) == 0 {
		return model.Request{}, false, err
	}
	return list[0], true, nil
}

// ListBySubject returns every request of registrationNo, oldest first.
func (l *Ledger) ListBySubject(ctx context.Context, registrationNo string) ([]model.Request, error) {
	return l.repo.ListRequests(ctx, store.RequestFilter{RegistrationNo: registrationNo})
}

// ErrUnexpectedState reports that the request was not in the state the
// caller expected. It wraps model.ErrInvalidStateTransition.
var ErrUnexpectedState = fmt.Errorf("%w: unexpected request state", model.ErrInvalidStateTransition)

// TransitionFrom moves the request from one of the from states to to and
// applies mutate in the same conditional write. When the stored state is
// not in from the call fails with ErrUnexpectedState and nothing is
// written.
func (l *Ledger) TransitionFrom(ctx context.Context, id string, from []model.RequestState, to model.RequestState, mutate func(*model.Request)) (model.Request, error) {
	var out model.Request
	err := l.retry.Do(ctx, func() error {
		r, err := l.repo.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if !stateIn(r.State, from) {
			out = r
			return fmt.Errorf("%w: request %s is %s", ErrUnexpectedState, id, r.State)
		}
		if err := r.Transition(to, l.now()); err != nil {
			return err
		}
		if mutate != nil {
			mutate(&r)
		}
		if err := l.repo.PutRequest(ctx, &r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// IsUnexpectedState reports whether err came from a failed state guard.
func IsUnexpectedState(err error) bool { return errors.Is(err, ErrUnexpectedState) }

func stateIn(s model.RequestState, set []model.RequestState) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
