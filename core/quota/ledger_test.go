package quota

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
	"github.com/kilianp07/fuelq/infra/store/memory"
)

func newLedger(t *testing.T, allowed float64) *Ledger {
	t.Helper()
	l := NewLedger(memory.New(), store.RetryPolicy{MaxRetries: 20, Backoff: time.Microsecond})
	if _, err := l.SetAllowance(context.Background(), "CAB-1", model.Petrol92, allowed); err != nil {
		t.Fatalf("set allowance: %v", err)
	}
	return l
}

func TestCheckAndReserveDoesNotWrite(t *testing.T) {
	l := newLedger(t, 20)
	ctx := context.Background()
	if err := l.CheckAndReserve(ctx, "CAB-1", model.Petrol92, 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.CheckAndReserve(ctx, "CAB-1", model.Petrol92, 21); !errors.Is(err, model.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	q, _ := l.Get(ctx, "CAB-1", model.Petrol92)
	if q.UsedAmount != 0 {
		t.Fatalf("check must not consume quota, used=%v", q.UsedAmount)
	}
}

func TestCommitAndRelease(t *testing.T) {
	l := newLedger(t, 20)
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return fixed })
	ctx := context.Background()

	q, err := l.Commit(ctx, "CAB-1", model.Petrol92, 15)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if q.UsedAmount != 15 || !q.LastFilledAt.Equal(fixed) {
		t.Fatalf("unexpected quota %+v", q)
	}
	if _, err := l.Commit(ctx, "CAB-1", model.Petrol92, 10); !errors.Is(err, model.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	q, err = l.Release(ctx, "CAB-1", model.Petrol92, 20)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if q.UsedAmount != 0 {
		t.Fatalf("release must clamp at zero, got %v", q.UsedAmount)
	}
}

func TestCommitUnknownSubject(t *testing.T) {
	l := newLedger(t, 20)
	if _, err := l.Commit(context.Background(), "NOPE", model.Petrol92, 1); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetAllowanceValidation(t *testing.T) {
	l := newLedger(t, 20)
	ctx := context.Background()
	if _, err := l.SetAllowance(ctx, "", model.Petrol92, 1); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := l.SetAllowance(ctx, "CAB-1", "LPG", 1); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	q, err := l.SetAllowance(ctx, "CAB-1", model.Petrol92, 40)
	if err != nil || q.AllowedAmount != 40 || q.Version != 2 {
		t.Fatalf("update allowance: %+v %v", q, err)
	}
}

func TestResetPeriod(t *testing.T) {
	l := newLedger(t, 20)
	ctx := context.Background()
	if _, err := l.Commit(ctx, "CAB-1", model.Petrol92, 12); err != nil {
		t.Fatalf("commit: %v", err)
	}
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	q, err := l.ResetPeriod(ctx, "CAB-1", model.Petrol92, start)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if q.UsedAmount != 0 || !q.PeriodStart.Equal(start) {
		t.Fatalf("unexpected quota %+v", q)
	}
}

func TestConcurrentCommitsNeverExceedAllowance(t *testing.T) {
	l := newLedger(t, 50)
	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Commit(context.Background(), "CAB-1", model.Petrol92, 5); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	if ok.Load() != 10 {
		t.Fatalf("expected 10 successful commits got %d", ok.Load())
	}
	q, _ := l.Get(context.Background(), "CAB-1", model.Petrol92)
	if q.UsedAmount != 50 {
		t.Fatalf("expected 50 used got %v", q.UsedAmount)
	}
}

func TestCommitPropertyUsedNeverExceedsAllowed(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		allowed := float64(rapid.IntRange(0, 200).Draw(rt, "allowed"))
		l := NewLedger(memory.New(), store.DefaultRetryPolicy)
		ctx := context.Background()
		if _, err := l.SetAllowance(ctx, "V", model.AutoDiesel, allowed); err != nil {
			rt.Fatalf("set allowance: %v", err)
		}
		committed := 0.0
		ops := rapid.IntRange(1, 30).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			amount := float64(rapid.IntRange(1, 60).Draw(rt, "amount"))
			if rapid.Bool().Draw(rt, "release") && committed > 0 {
				if _, err := l.Release(ctx, "V", model.AutoDiesel, amount); err != nil {
					rt.Fatalf("release: %v", err)
				}
				committed = model.ClampZero(committed - amount)
				continue
			}
			_, err := l.Commit(ctx, "V", model.AutoDiesel, amount)
			switch {
			case err == nil:
				committed += amount
			case errors.Is(err, model.ErrQuotaExceeded):
			default:
				rt.Fatalf("commit: %v", err)
			}
			q, _ := l.Get(ctx, "V", model.AutoDiesel)
			if !model.LessOrEqual(q.UsedAmount, q.AllowedAmount) {
				rt.Fatalf("used %v exceeds allowed %v", q.UsedAmount, q.AllowedAmount)
			}
			if q.UsedAmount != committed {
				rt.Fatalf("used %v, expected %v", q.UsedAmount, committed)
			}
		}
	})
}
