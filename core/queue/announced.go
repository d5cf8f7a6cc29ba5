package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
)

// AnnouncedStore manages queues promoted at a station.
type AnnouncedStore struct {
	repo  store.QueueRepo
	retry store.RetryPolicy
	now   func() time.Time
}

// NewAnnouncedStore returns an AnnouncedStore over repo.
func NewAnnouncedStore(repo store.QueueRepo, retry store.RetryPolicy) *AnnouncedStore {
	return &AnnouncedStore{repo: repo, retry: retry, now: time.Now}
}

// SetClock overrides the time source.
func (a *AnnouncedStore) SetClock(now func() time.Time) { a.now = now }

// NewID returns an id for a queue that is about to be created.
func NewID() string { return uuid.NewString() }

// Create persists a new announced queue holding refs in order. An empty id
// is replaced by a generated one.
func (a *AnnouncedStore) Create(ctx context.Context, id, station string, fuel model.FuelType, refs []model.RequestRef) (model.AnnouncedQueue, error) {
	if len(refs) == 0 {
		return model.AnnouncedQueue{}, model.Validationf("announced queue needs at least one request")
	}
	if id == "" {
		id = NewID()
	}
	q := model.AnnouncedQueue{
		ID:           id,
		StationRegNo: station,
		FuelType:     fuel,
		Requests:     append([]model.RequestRef(nil), refs...),
		State:        model.QueueAnnounced,
		VehicleCount: len(refs),
		CreatedAt:    a.now(),
	}
	for _, r := range refs {
		q.Remaining = append(q.Remaining, r.RequestID)
		q.SelectedAmount += r.Amount
	}
	if err := a.repo.PutQueue(ctx, &q); err != nil {
		return model.AnnouncedQueue{}, err
	}
	return q, nil
}

// Get returns the queue with id.
func (a *AnnouncedStore) Get(ctx context.Context, id string) (model.AnnouncedQueue, error) {
	return a.repo.GetQueue(ctx, id)
}

// List returns the queues matching f.
func (a *AnnouncedStore) List(ctx context.Context, f model.QueueFilter) ([]model.AnnouncedQueue, error) {
	return a.repo.ListQueues(ctx, f)
}

// Activate moves the queue to active and records its schedule.
func (a *AnnouncedStore) Activate(ctx context.Context, id string, start, end time.Time) (model.AnnouncedQueue, error) {
	return a.update(ctx, id, func(q *model.AnnouncedQueue) error {
		if err := q.Transition(model.QueueActive, a.now()); err != nil {
			return err
		}
		q.QueueStartTime = start
		q.EstimatedEndTime = end
		return nil
	})
}

// SetEstimatedEnd updates the expected end of an open queue.
func (a *AnnouncedStore) SetEstimatedEnd(ctx context.Context, id string, end time.Time) (model.AnnouncedQueue, error) {
	return a.update(ctx, id, func(q *model.AnnouncedQueue) error {
		if !q.State.Open() {
			return fmt.Errorf("%w: queue %s is %s", model.ErrInvalidStateTransition, q.ID, q.State)
		}
		q.EstimatedEndTime = end
		return nil
	})
}

// MarkTerminal takes requestID off the active list and adds filled to the
// dispensed total. The queue closes once the list is empty.
func (a *AnnouncedStore) MarkTerminal(ctx context.Context, id, requestID string, filled float64) (model.AnnouncedQueue, error) {
	return a.update(ctx, id, func(q *model.AnnouncedQueue) error {
		kept := q.Remaining[:0]
		found := false
		for _, r := range q.Remaining {
			if r == requestID {
				found = true
				continue
			}
			kept = append(kept, r)
		}
		if !found {
			return nil
		}
		q.Remaining = kept
		if filled > 0 {
			q.FilledAmount += filled
			q.LastServedAt = a.now()
		}
		if len(q.Remaining) == 0 && q.State != model.QueueClosed {
			return q.Transition(model.QueueClosed, a.now())
		}
		return nil
	})
}

// Drain empties the active list, closes the queue and returns the ids that
// were still pending.
func (a *AnnouncedStore) Drain(ctx context.Context, id string) (model.AnnouncedQueue, []string, error) {
	var drained []string
	q, err := a.update(ctx, id, func(q *model.AnnouncedQueue) error {
		drained = append([]string(nil), q.Remaining...)
		q.Remaining = nil
		if q.State == model.QueueClosed {
			return nil
		}
		return q.Transition(model.QueueClosed, a.now())
	})
	return q, drained, err
}

func (a *AnnouncedStore) update(ctx context.Context, id string, mutate func(*model.AnnouncedQueue) error) (model.AnnouncedQueue, error) {
	var out model.AnnouncedQueue
	err := a.retry.Do(ctx, func() error {
		q, err := a.repo.GetQueue(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(&q); err != nil {
			return err
		}
		if err := a.repo.PutQueue(ctx, &q); err != nil {
			return err
		}
		out = q
		return nil
	})
	return out, err
}
