// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run exercises s against the shared contract.
func Run(t *testing.T, open Factory) {
	t.Run("Requests", func(t *testing.T) { testRequests(t, open(t)) })
	t.Run("Quotas", func(t *testing.T) { testQuotas(t, open(t)) })
	t.Run("Stock", func(t *testing.T) { testStock(t, open(t)) })
	t.Run("Waiting", func(t *testing.T) { testWaiting(t, open(t)) })
	t.Run("Queues", func(t *testing.T) { testQueues(t, open(t)) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, open(t)) })
}

var epoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func testRequests(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.GetRequest(ctx, "missing")
	require.ErrorIs(t, err, model.ErrNotFound)

	r := model.Request{
		ID: "r1", UserID: "u1", UserType: model.UserPersonal, RegistrationNo: "CAB-1",
		FuelType: model.Petrol92, QuotaAmount: 10, RequestedStations: []string{"S1", "S2"},
		State: model.RequestPending, CreatedAt: epoch, UpdatedAt: epoch,
	}
	require.NoError(t, s.PutRequest(ctx, &r))
	assert.Equal(t, int64(1), r.Version)

	dup := r
	dup.Version = 0
	require.ErrorIs(t, s.PutRequest(ctx, &dup), store.ErrVersionConflict)

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, got.RequestedStations)
	assert.True(t, got.CreatedAt.Equal(epoch))

	stale := got
	got.State = model.RequestWaiting
	require.NoError(t, s.PutRequest(ctx, &got))
	assert.Equal(t, int64(2), got.Version)

	stale.State = model.RequestCancelled
	require.ErrorIs(t, s.PutRequest(ctx, &stale), store.ErrVersionConflict)

	other := model.Request{ID: "r2", RegistrationNo: "CAB-2", FuelType: model.AutoDiesel, State: model.RequestClosed, CreatedAt: epoch.Add(time.Minute)}
	require.NoError(t, s.PutRequest(ctx, &other))

	open, err := s.ListRequests(ctx, store.RequestFilter{RegistrationNo: "CAB-1", States: []model.RequestState{model.RequestWaiting}})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "r1", open[0].ID)

	all, err := s.ListRequests(ctx, store.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testQuotas(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.GetQuota(ctx, "CAB-1", model.Petrol92)
	require.ErrorIs(t, err, model.ErrNotFound)

	q := model.Quota{SubjectID: "CAB-1", FuelType: model.Petrol92, AllowedAmount: 20, PeriodStart: epoch}
	require.NoError(t, s.PutQuota(ctx, &q))
	q.UsedAmount = 5
	require.NoError(t, s.PutQuota(ctx, &q))

	got, err := s.GetQuota(ctx, "CAB-1", model.Petrol92)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.UsedAmount)
	assert.Equal(t, int64(2), got.Version)

	got.Version = 1
	require.ErrorIs(t, s.PutQuota(ctx, &got), store.ErrVersionConflict)

	d := model.Quota{SubjectID: "CAB-1", FuelType: model.AutoDiesel, AllowedAmount: 40}
	require.NoError(t, s.PutQuota(ctx, &d))
	list, err := s.ListQuotas(ctx, "CAB-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func testStock(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.GetStock(ctx, "S1", model.Petrol92)
	require.ErrorIs(t, err, model.ErrNotFound)

	st := model.Stock{StationRegNo: "S1", FuelType: model.Petrol92, CurrentAmount: 100, UpdatedAt: epoch}
	require.NoError(t, s.PutStock(ctx, &st))
	st.ReservedAmount = 30
	require.NoError(t, s.PutStock(ctx, &st))

	d := model.Stock{StationRegNo: "S1", FuelType: model.AutoDiesel, CurrentAmount: 50}
	require.NoError(t, s.PutStock(ctx, &d))

	got, err := s.GetStock(ctx, "S1", model.Petrol92)
	require.NoError(t, err)
	assert.Equal(t, 70.0, got.Available())

	list, err := s.ListStationStock(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	none, err := s.ListStationStock(ctx, "S9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testWaiting(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.GetWaiting(ctx, "S1", model.Petrol92)
	require.ErrorIs(t, err, model.ErrNotFound)

	q := model.WaitingQueue{
		StationRegNo: "S1", FuelType: model.Petrol92, CreatedAt: epoch,
		Entries: []model.RequestRef{{RequestID: "r1", Amount: 10, SubmittedAt: epoch}},
	}
	require.NoError(t, s.PutWaiting(ctx, &q))

	stale := q
	q.Entries = append(q.Entries, model.RequestRef{RequestID: "r2", Amount: 5, SubmittedAt: epoch})
	require.NoError(t, s.PutWaiting(ctx, &q))

	stale.Entries = nil
	require.ErrorIs(t, s.PutWaiting(ctx, &stale), store.ErrVersionConflict)

	got, err := s.GetWaiting(ctx, "S1", model.Petrol92)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "r2", got.Entries[1].RequestID)
}

func testQueues(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	q := model.AnnouncedQueue{
		ID: "q1", StationRegNo: "S1", FuelType: model.Petrol92, State: model.QueueAnnounced,
		Requests:  []model.RequestRef{{RequestID: "r1", Amount: 10}},
		Remaining: []string{"r1"}, VehicleCount: 1, SelectedAmount: 10, CreatedAt: epoch,
	}
	require.NoError(t, s.PutQueue(ctx, &q))

	q.State = model.QueueActive
	q.QueueStartTime = epoch.Add(time.Hour)
	require.NoError(t, s.PutQueue(ctx, &q))

	q2 := model.AnnouncedQueue{ID: "q2", StationRegNo: "S2", FuelType: model.Petrol92, State: model.QueueClosed, CreatedAt: epoch}
	require.NoError(t, s.PutQueue(ctx, &q2))

	got, err := s.GetQueue(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, model.QueueActive, got.State)
	assert.Equal(t, []string{"r1"}, got.Remaining)
	assert.True(t, got.QueueStartTime.Equal(epoch.Add(time.Hour)))

	active, err := s.ListQueues(ctx, model.QueueFilter{State: model.QueueActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "q1", active[0].ID)

	byStation, err := s.ListQueues(ctx, model.QueueFilter{StationRegNo: "S2"})
	require.NoError(t, err)
	require.Len(t, byStation, 1)

	_, err = s.GetQueue(ctx, "nope")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func testNotifications(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.AddNotifications(ctx,
		model.Notification{ID: "n1", Recipient: "u1", Title: "Announced", Message: "go to S1", CreatedAt: epoch},
		model.Notification{ID: "n2", Recipient: "u1", Title: "Filled", Message: "10L", CreatedAt: epoch.Add(time.Minute)},
		model.Notification{ID: "n3", Recipient: "u2", Title: "Announced", CreatedAt: epoch},
	))

	list, err := s.ListNotifications(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID, "newest first")

	n, err := s.MarkNotificationsRead(ctx, "u1", []string{"n1", "n3"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unread, err := s.ListNotifications(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "n2", unread[0].ID)

	n, err = s.MarkNotificationsRead(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
