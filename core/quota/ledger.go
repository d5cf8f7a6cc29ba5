// Package quota tracks how much fuel each subject may still draw in the
// current rationing period.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
	"github.com/kilianp07/fuelq/internal/keylock"
)

// Ledger reads and updates quota records. Writes for one subject and fuel
// type are serialized in process and made atomic by the store's versioned
// writes.
type Ledger struct {
	repo  store.QuotaRepo
	locks *keylock.Map
	retry store.RetryPolicy
	now   func() time.Time
}

// NewLedger returns a Ledger over repo.
func NewLedger(repo store.QuotaRepo, retry store.RetryPolicy) *Ledger {
	return &Ledger{repo: repo, locks: keylock.New(), retry: retry, now: time.Now}
}

// SetClock overrides the time source.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

func lockKey(subject string, fuel model.FuelType) string { return subject + "|" + string(fuel) }

// Get returns the quota of subject for fuel.
func (l *Ledger) Get(ctx context.Context, subject string, fuel model.FuelType) (model.Quota, error) {
	return l.repo.GetQuota(ctx, subject, fuel)
}

// List returns every quota of subject.
func (l *Ledger) List(ctx context.Context, subject string) ([]model.Quota, error) {
	return l.repo.ListQuotas(ctx, subject)
}

// CheckAndReserve verifies that amount still fits the subject's allowance.
// Nothing is written; the authoritative check happens in Commit.
func (l *Ledger) CheckAndReserve(ctx context.Context, subject string, fuel model.FuelType, amount float64) error {
	q, err := l.repo.GetQuota(ctx, subject, fuel)
	if err != nil {
		return err
	}
	if !q.Fits(amount) {
		return fmt.Errorf("%w: %s %s needs %.2f, %.2f remaining", model.ErrQuotaExceeded, subject, fuel, amount, q.Remaining())
	}
	return nil
}

// Commit adds amount to the used quota and stamps the fill time.
func (l *Ledger) Commit(ctx context.Context, subject string, fuel model.FuelType, amount float64) (model.Quota, error) {
	if amount <= 0 {
		return model.Quota{}, model.Validationf("commit amount must be positive, got %v", amount)
	}
	return l.update(ctx, subject, fuel, func(q *model.Quota) error {
		if !q.Fits(amount) {
			return fmt.Errorf("%w: %s %s needs %.2f, %.2f remaining", model.ErrQuotaExceeded, subject, fuel, amount, q.Remaining())
		}
		q.UsedAmount += amount
		q.LastFilledAt = l.now()
		return nil
	})
}

// Release gives back amount after a failed downstream commit. Usage never
// drops below zero.
func (l *Ledger) Release(ctx context.Context, subject string, fuel model.FuelType, amount float64) (model.Quota, error) {
	return l.update(ctx, subject, fuel, func(q *model.Quota) error {
		q.UsedAmount = model.ClampZero(q.UsedAmount - amount)
		return nil
	})
}

// SetAllowance creates the quota record or changes its allowed amount.
func (l *Ledger) SetAllowance(ctx context.Context, subject string, fuel model.FuelType, allowed float64) (model.Quota, error) {
	if subject == "" {
		return model.Quota{}, model.Validationf("subject is required")
	}
	if !fuel.Valid() {
		return model.Quota{}, model.Validationf("unknown fuel type %q", fuel)
	}
	if allowed < 0 {
		return model.Quota{}, model.Validationf("allowance must not be negative")
	}
	unlock := l.locks.Lock(lockKey(subject, fuel))
	defer unlock()
	var out model.Quota
	err := l.retry.Do(ctx, func() error {
		q, err := l.repo.GetQuota(ctx, subject, fuel)
		if err != nil {
			if !errors.Is(err, model.ErrNotFound) {
				return err
			}
			q = model.Quota{SubjectID: subject, FuelType: fuel, PeriodStart: l.now()}
		}
		q.AllowedAmount = allowed
		if err := l.repo.PutQuota(ctx, &q); err != nil {
			return err
		}
		out = q
		return nil
	})
	return out, err
}

// ResetPeriod starts a new rationing period for the quota.
func (l *Ledger) ResetPeriod(ctx context.Context, subject string, fuel model.FuelType, start time.Time) (model.Quota, error) {
	return l.update(ctx, subject, fuel, func(q *model.Quota) error {
		q.UsedAmount = 0
		q.PeriodStart = start
		return nil
	})
}

func (l *Ledger) update(ctx context.Context, subject string, fuel model.FuelType, mutate func(*model.Quota) error) (model.Quota, error) {
	unlock := l.locks.Lock(lockKey(subject, fuel))
	defer unlock()
	var out model.Quota
	err := l.retry.Do(ctx, func() error {
		q, err := l.repo.GetQuota(ctx, subject, fuel)
		if err != nil {
			return err
		}
		if err := mutate(&q); err != nil {
			return err
		}
		if err := l.repo.PutQuota(ctx, &q); err != nil {
			return err
		}
		out = q
		return nil
	})
	return out, err
}
