package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelq/config"
	"github.com/kilianp07/fuelq/core/allocation"
	"github.com/kilianp07/fuelq/core/allocation/logging"
	"github.com/kilianp07/fuelq/core/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Path = filepath.Join(t.TempDir(), "journal.log")
	cfg.HTTP.Address = "127.0.0.1:0"
	cfg.HTTP.Token = "secret"
	return cfg
}

func TestServiceEndToEnd(t *testing.T) {
	allocation.ResetMetrics(nil)
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	ctx := context.Background()
	e := svc.Engine

	_, err = e.RegisterStation(ctx, "S1", model.AutoDiesel, 60)
	require.NoError(t, err)
	_, err = e.SetQuotaAllowance(ctx, "WP-9000", model.AutoDiesel, 30)
	require.NoError(t, err)
	req, err := e.SubmitRequest(ctx, model.Submission{
		UserID: "u1", UserType: model.UserOrganization, RegistrationNo: "WP-9000",
		FuelType: model.AutoDiesel, Amount: 20, RequestedStations: []string{"S1"},
	})
	require.NoError(t, err)
	res, err := e.AnnounceQueue(ctx, "S1", model.AutoDiesel, []string{req.ID})
	require.NoError(t, err)
	fill, err := e.FillRequest(ctx, res.Queue.ID, req.ID, 18)
	require.NoError(t, err)
	assert.Equal(t, allocation.FillClosed, fill.Outcome)

	svc.Notifier.Wait()
	unread, err := e.UnreadNotifications(ctx, "WP-9000")
	require.NoError(t, err)
	assert.NotEmpty(t, unread, "inbox channel must store notifications")

	h := svc.Handler()
	r := httptest.NewRequest(http.MethodGet, "/api/journal?request_id="+req.ID, nil)
	r.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []logging.LogRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	var ops []string
	for _, rec := range recs {
		ops = append(ops, rec.Operation)
	}
	assert.Equal(t, []string{allocation.OpSubmit, allocation.OpAnnounce, allocation.OpFill}, ops)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/requests/"+req.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var got model.Request
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, model.RequestClosed, got.State)

	require.NoError(t, svc.Close())
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	allocation.ResetMetrics(nil)
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}

func TestNewRejectsUnknownStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Type = "cassandra"
	_, err := New(cfg)
	require.Error(t, err)
}
