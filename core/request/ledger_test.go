package request

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
	"github.com/kilianp07/fuelq/infra/store/memory"
)

func submission() model.Submission {
	return model.Submission{
		UserID: "u1", UserType: model.UserPersonal, RegistrationNo: "CAB-1",
		FuelType: model.Petrol92, Amount: 10, RequestedStations: []string{"S1", "S2"},
	}
}

func newLedger() *Ledger {
	return NewLedger(memory.New(), store.RetryPolicy{MaxRetries: 50, Backoff: time.Microsecond})
}

func TestCreateAndFindOpen(t *testing.T) {
	l := newLedger()
	ctx := context.Background()

	_, found, err := l.FindOpen(ctx, "CAB-1", model.Petrol92)
	require.NoError(t, err)
	assert.False(t, found)

	r, err := l.Create(ctx, submission())
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, r.State)
	assert.NotEmpty(t, r.ID)

	open, found, err := l.FindOpen(ctx, "CAB-1", model.Petrol92)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, r.ID, open.ID)

	_, err = l.TransitionFrom(ctx, r.ID, []model.RequestState{model.RequestPending}, model.RequestCancelled, nil)
	require.NoError(t, err)
	_, found, _ = l.FindOpen(ctx, "CAB-1", model.Petrol92)
	assert.False(t, found)

	all, err := l.ListBySubject(ctx, "CAB-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTransitionFromGuardsState(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	r, err := l.Create(ctx, submission())
	require.NoError(t, err)

	got, err := l.TransitionFrom(ctx, r.ID, []model.RequestState{model.RequestWaiting}, model.RequestAnnounced, nil)
	assert.True(t, IsUnexpectedState(err))
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
	assert.Equal(t, model.RequestPending, got.State)

	got, err = l.TransitionFrom(ctx, r.ID, []model.RequestState{model.RequestPending}, model.RequestWaiting, func(r *model.Request) {
		r.CancelReason = "none"
	})
	require.NoError(t, err)
	assert.Equal(t, model.RequestWaiting, got.State)
	assert.Equal(t, "none", got.CancelReason)

	_, err = l.TransitionFrom(ctx, r.ID, []model.RequestState{model.RequestWaiting}, model.RequestClosed, nil)
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
	assert.False(t, IsUnexpectedState(err))
}

func TestConcurrentPromotionHasOneWinner(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	r, err := l.Create(ctx, submission())
	require.NoError(t, err)
	_, err = l.TransitionFrom(ctx, r.ID, []model.RequestState{model.RequestPending}, model.RequestWaiting, nil)
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for _, station := range []string{"S1", "S2", "S1", "S2"} {
		wg.Add(1)
		go func(station string) {
			defer wg.Done()
			_, err := l.TransitionFrom(ctx, r.ID, []model.RequestState{model.RequestWaiting}, model.RequestAnnounced, func(r *model.Request) {
				r.FilledStation = station
			})
			if err == nil {
				wins.Add(1)
			}
		}(station)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
