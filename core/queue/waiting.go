// Package queue keeps the per-station waiting queues and the announced
// queues promoted from them.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
)

// WaitingStore manages waiting queues keyed by station and fuel type.
type WaitingStore struct {
	repo  store.WaitingRepo
	retry store.RetryPolicy
	now   func() time.Time
}

// NewWaitingStore returns a WaitingStore over repo.
func NewWaitingStore(repo store.WaitingRepo, retry store.RetryPolicy) *WaitingStore {
	return &WaitingStore{repo: repo, retry: retry, now: time.Now}
}

// SetClock overrides the time source.
func (w *WaitingStore) SetClock(now func() time.Time) { w.now = now }

func (w *WaitingStore) load(ctx context.Context, station string, fuel model.FuelType) (model.WaitingQueue, error) {
	q, err := w.repo.GetWaiting(ctx, station, fuel)
	if errors.Is(err, model.ErrNotFound) {
		now := w.now()
		return model.WaitingQueue{StationRegNo: station, FuelType: fuel, CreatedAt: now, UpdatedAt: now}, nil
	}
	return q, err
}

// AddRequest inserts ref in waiting order. Adding a request that is already
// queued is a no-op and reports false.
func (w *WaitingStore) AddRequest(ctx context.Context, station string, fuel model.FuelType, ref model.RequestRef) (bool, error) {
	added := false
	err := w.retry.Do(ctx, func() error {
		added = false
		q, err := w.load(ctx, station, fuel)
		if err != nil {
			return err
		}
		if q.Index(ref.RequestID) >= 0 {
			return nil
		}
		q.Entries = append(q.Entries, ref)
		model.SortRefs(q.Entries)
		q.UpdatedAt = w.now()
		if err := w.repo.PutWaiting(ctx, &q); err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

// RemoveRequest drops requestID from the queue and reports whether it was
// present.
func (w *WaitingStore) RemoveRequest(ctx context.Context, station string, fuel model.FuelType, requestID string) (bool, error) {
	removed := false
	err := w.retry.Do(ctx, func() error {
		removed = false
		q, err := w.repo.GetWaiting(ctx, station, fuel)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		i := q.Index(requestID)
		if i < 0 {
			return nil
		}
		q.Entries = append(q.Entries[:i], q.Entries[i+1:]...)
		q.UpdatedAt = w.now()
		if err := w.repo.PutWaiting(ctx, &q); err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}

// List returns the entries in waiting order.
func (w *WaitingStore) List(ctx context.Context, station string, fuel model.FuelType) ([]model.RequestRef, error) {
	q, err := w.repo.GetWaiting(ctx, station, fuel)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	model.SortRefs(q.Entries)
	return q.Entries, nil
}

// Contains reports whether requestID waits at station for fuel.
func (w *WaitingStore) Contains(ctx context.Context, station string, fuel model.FuelType, requestID string) (bool, error) {
	q, err := w.repo.GetWaiting(ctx, station, fuel)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return q.Index(requestID) >= 0, nil
}
