// Package stock tracks on-hand and reserved fuel per station.
package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
	"github.com/kilianp07/fuelq/internal/keylock"
)

// Ledger updates station stock. Every write is a versioned compare-and-set
// retried on conflict, so concurrent refills and fills never lose updates.
type Ledger struct {
	repo  store.StockRepo
	locks *keylock.Map
	retry store.RetryPolicy
	now   func() time.Time
}

// NewLedger returns a Ledger over repo.
func NewLedger(repo store.StockRepo, retry store.RetryPolicy) *Ledger {
	return &Ledger{repo: repo, locks: keylock.New(), retry: retry, now: time.Now}
}

// SetClock overrides the time source.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// Get returns the stock record of station for fuel. Unknown stations map
// to model.ErrStationNotFound.
func (l *Ledger) Get(ctx context.Context, station string, fuel model.FuelType) (model.Stock, error) {
	s, err := l.repo.GetStock(ctx, station, fuel)
	if errors.Is(err, model.ErrNotFound) {
		return model.Stock{}, fmt.Errorf("%w: %s (%s)", model.ErrStationNotFound, station, fuel)
	}
	return s, err
}

// ListStation returns every fuel record of station.
func (l *Ledger) ListStation(ctx context.Context, station string) ([]model.Stock, error) {
	return l.repo.ListStationStock(ctx, station)
}

// Exists reports whether station has any stock record.
func (l *Ledger) Exists(ctx context.Context, station string) (bool, error) {
	list, err := l.repo.ListStationStock(ctx, station)
	return len(list) > 0, err
}

// Register creates the stock record of a station for fuel.
func (l *Ledger) Register(ctx context.Context, station string, fuel model.FuelType, initial float64) (model.Stock, error) {
	if station == "" {
		return model.Stock{}, model.Validationf("station registration number is required")
	}
	if !fuel.Valid() {
		return model.Stock{}, model.Validationf("unknown fuel type %q", fuel)
	}
	if initial < 0 {
		return model.Stock{}, model.Validationf("initial stock must not be negative")
	}
	s := model.Stock{StationRegNo: station, FuelType: fuel, CurrentAmount: initial, UpdatedAt: l.now()}
	if err := l.repo.PutStock(ctx, &s); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return model.Stock{}, model.Validationf("station %s already stocks %s", station, fuel)
		}
		return model.Stock{}, err
	}
	return s, nil
}

// Reserve sets amount aside for an announced queue.
func (l *Ledger) Reserve(ctx context.Context, station string, fuel model.FuelType, amount float64) (model.Stock, error) {
	return l.update(ctx, station, fuel, func(s *model.Stock) error {
		if !model.LessOrEqual(amount, s.Available()) {
			return fmt.Errorf("%w: %s %s has %.2f available, %.2f requested", model.ErrInsufficientStock, station, fuel, s.Available(), amount)
		}
		s.ReservedAmount += amount
		return nil
	})
}

// Release returns an unused reservation.
func (l *Ledger) Release(ctx context.Context, station string, fuel model.FuelType, amount float64) (model.Stock, error) {
	if model.IsZero(amount) {
		return l.Get(ctx, station, fuel)
	}
	return l.update(ctx, station, fuel, func(s *model.Stock) error {
		s.ReservedAmount = model.ClampZero(s.ReservedAmount - amount)
		return nil
	})
}

// CommitDecrement removes amount from the on-hand stock and drops the
// reservation held for it. held is the reservation of the whole queue the
// fill belongs to; litres reserved for other queues are never dispensed.
// A fill larger than the queue's reservation plus the unreserved stock is
// a validation error while the queue's own reservation is still covered,
// and a shortfall otherwise.
func (l *Ledger) CommitDecrement(ctx context.Context, station string, fuel model.FuelType, amount, reserved, held float64) (model.Stock, error) {
	if amount <= 0 {
		return model.Stock{}, model.Validationf("decrement must be positive, got %v", amount)
	}
	return l.update(ctx, station, fuel, func(s *model.Stock) error {
		if !model.LessOrEqual(amount, s.CurrentAmount) {
			return fmt.Errorf("%w: %s %s has %.2f on hand, %.2f dispensed", model.ErrInsufficientStock, station, fuel, s.CurrentAmount, amount)
		}
		headroom := s.CurrentAmount - model.ClampZero(s.ReservedAmount-held)
		if !model.LessOrEqual(amount, headroom) {
			if model.LessOrEqual(held, headroom) {
				return model.Validationf("%s %s: %.2f dispensed exceeds the %.2f usable without touching other queues' reservations", station, fuel, amount, headroom)
			}
			return fmt.Errorf("%w: %s %s can cover %.2f of the %.2f held for the queue", model.ErrInsufficientStock, station, fuel, model.ClampZero(headroom), held)
		}
		s.CurrentAmount = model.ClampZero(s.CurrentAmount - amount)
		s.ReservedAmount = model.ClampZero(s.ReservedAmount - reserved)
		return nil
	})
}

// ApplyRefill adds a delivery to the on-hand stock.
func (l *Ledger) ApplyRefill(ctx context.Context, station string, fuel model.FuelType, added float64) (model.Stock, error) {
	if added <= 0 {
		return model.Stock{}, model.Validationf("refill must be positive, got %v", added)
	}
	return l.update(ctx, station, fuel, func(s *model.Stock) error {
		s.CurrentAmount += added
		return nil
	})
}

func (l *Ledger) update(ctx context.Context, station string, fuel model.FuelType, mutate func(*model.Stock) error) (model.Stock, error) {
	unlock := l.locks.Lock(station + "|" + string(fuel))
	defer unlock()
	var out model.Stock
	err := l.retry.Do(ctx, func() error {
		s, err := l.Get(ctx, station, fuel)
		if err != nil {
			return err
		}
		if err := mutate(&s); err != nil {
			return err
		}
		s.UpdatedAt = l.now()
		if err := l.repo.PutStock(ctx, &s); err != nil {
			return err
		}
		out = s
		return nil
	})
	return out, err
}
