package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
	"github.com/kilianp07/fuelq/infra/store/memory"
)

var fastRetry = store.RetryPolicy{MaxRetries: 50, Backoff: time.Microsecond}

func newLedger(t *testing.T, initial float64) *Ledger {
	t.Helper()
	l := NewLedger(memory.New(), fastRetry)
	_, err := l.Register(context.Background(), "S1", model.AutoDiesel, initial)
	require.NoError(t, err)
	return l
}

func TestReserveAndRelease(t *testing.T) {
	l := newLedger(t, 100)
	ctx := context.Background()

	s, err := l.Reserve(ctx, "S1", model.AutoDiesel, 60)
	require.NoError(t, err)
	assert.Equal(t, 40.0, s.Available())

	_, err = l.Reserve(ctx, "S1", model.AutoDiesel, 41)
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	s, err = l.Release(ctx, "S1", model.AutoDiesel, 60)
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.Available())
	assert.Equal(t, 100.0, s.CurrentAmount)
}

func TestCommitDecrement(t *testing.T) {
	l := newLedger(t, 30)
	ctx := context.Background()

	_, err := l.Reserve(ctx, "S1", model.AutoDiesel, 20)
	require.NoError(t, err)
	s, err := l.CommitDecrement(ctx, "S1", model.AutoDiesel, 18, 20, 20)
	require.NoError(t, err)
	assert.Equal(t, 12.0, s.CurrentAmount)
	assert.Equal(t, 0.0, s.ReservedAmount)

	_, err = l.CommitDecrement(ctx, "S1", model.AutoDiesel, 13, 0, 0)
	assert.ErrorIs(t, err, model.ErrInsufficientStock)
	got, _ := l.Get(ctx, "S1", model.AutoDiesel)
	assert.Equal(t, 12.0, got.CurrentAmount, "failed commit must not change stock")
}

func TestCommitDecrementKeepsOtherReservations(t *testing.T) {
	l := newLedger(t, 20)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := l.Reserve(ctx, "S1", model.AutoDiesel, 10)
		require.NoError(t, err)
	}

	_, err := l.CommitDecrement(ctx, "S1", model.AutoDiesel, 20, 10, 10)
	assert.ErrorIs(t, err, model.ErrValidation)
	got, _ := l.Get(ctx, "S1", model.AutoDiesel)
	assert.Equal(t, 20.0, got.CurrentAmount)
	assert.Equal(t, 20.0, got.ReservedAmount)

	s, err := l.CommitDecrement(ctx, "S1", model.AutoDiesel, 10, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.CurrentAmount)
	assert.Equal(t, 10.0, s.ReservedAmount)

	s, err = l.CommitDecrement(ctx, "S1", model.AutoDiesel, 10, 10, 10)
	require.NoError(t, err)
	assert.Zero(t, s.CurrentAmount)
	assert.Zero(t, s.ReservedAmount)
}

func TestCommitDecrementWithinQueue(t *testing.T) {
	l := newLedger(t, 30)
	ctx := context.Background()
	_, err := l.Reserve(ctx, "S1", model.AutoDiesel, 25)
	require.NoError(t, err)

	s, err := l.CommitDecrement(ctx, "S1", model.AutoDiesel, 25, 10, 25)
	require.NoError(t, err, "a queue may draw on its own reservation")
	assert.Equal(t, 5.0, s.CurrentAmount)
	assert.Equal(t, 15.0, s.ReservedAmount)

	_, err = l.CommitDecrement(ctx, "S1", model.AutoDiesel, 15, 15, 15)
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	s, err = l.CommitDecrement(ctx, "S1", model.AutoDiesel, 5, 15, 15)
	require.NoError(t, err)
	assert.Zero(t, s.CurrentAmount)
	assert.Zero(t, s.ReservedAmount)
}

func TestUnknownStation(t *testing.T) {
	l := newLedger(t, 30)
	_, err := l.Reserve(context.Background(), "S9", model.AutoDiesel, 1)
	assert.ErrorIs(t, err, model.ErrStationNotFound)
	assert.ErrorIs(t, err, model.ErrNotFound)
	ok, err := l.Exists(context.Background(), "S9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterTwiceFails(t *testing.T) {
	l := newLedger(t, 30)
	_, err := l.Register(context.Background(), "S1", model.AutoDiesel, 5)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRefillValidation(t *testing.T) {
	l := newLedger(t, 0)
	_, err := l.ApplyRefill(context.Background(), "S1", model.AutoDiesel, 0)
	assert.ErrorIs(t, err, model.ErrValidation)
	s, err := l.ApplyRefill(context.Background(), "S1", model.AutoDiesel, 6600)
	require.NoError(t, err)
	assert.Equal(t, 6600.0, s.CurrentAmount)
}

func TestConcurrentRefillsAreNotLost(t *testing.T) {
	repo := memory.New()
	a := NewLedger(repo, fastRetry)
	b := NewLedger(repo, fastRetry)
	_, err := a.Register(context.Background(), "S1", model.Kerosene, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		l := a
		if i%2 == 1 {
			l = b
		}
		go func() {
			defer wg.Done()
			if _, err := l.ApplyRefill(context.Background(), "S1", model.Kerosene, 10); err != nil {
				t.Errorf("refill: %v", err)
			}
		}()
	}
	wg.Wait()
	s, _ := a.Get(context.Background(), "S1", model.Kerosene)
	assert.Equal(t, 400.0, s.CurrentAmount)
}

func TestStockNeverNegativeProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		l := NewLedger(memory.New(), fastRetry)
		ctx := context.Background()
		initial := float64(rapid.IntRange(0, 500).Draw(rt, "initial"))
		if _, err := l.Register(ctx, "S", model.Petrol95, initial); err != nil {
			rt.Fatalf("register: %v", err)
		}
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			amount := float64(rapid.IntRange(1, 120).Draw(rt, "amount"))
			var err error
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				_, err = l.Reserve(ctx, "S", model.Petrol95, amount)
			case 1:
				_, err = l.Release(ctx, "S", model.Petrol95, amount)
			case 2:
				_, err = l.CommitDecrement(ctx, "S", model.Petrol95, amount, amount, amount)
			case 3:
				_, err = l.ApplyRefill(ctx, "S", model.Petrol95, amount)
			}
			if err != nil && !errors.Is(err, model.ErrInsufficientStock) {
				rt.Fatalf("unexpected error: %v", err)
			}
			s, _ := l.Get(ctx, "S", model.Petrol95)
			if s.CurrentAmount < 0 || s.ReservedAmount < 0 {
				rt.Fatalf("negative stock %+v", s)
			}
		}
	})
}
