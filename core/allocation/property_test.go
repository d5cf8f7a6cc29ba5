package allocation

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/infra/store/memory"
)

func TestFilledNeverExceedsQuotaOrStock(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ResetMetrics(nil)
		e, err := NewEngine(memory.New(), Config{MaxRetries: 20, BackoffMS: 1}, nil, nil, nil)
		if err != nil {
			rt.Fatalf("engine: %v", err)
		}
		ctx := context.Background()
		fuel := model.AutoDiesel
		allowed := rapid.Float64Range(10, 60).Draw(rt, "allowed")
		initial := rapid.Float64Range(0, 100).Draw(rt, "stock")
		if _, err := e.RegisterStation(ctx, "S1", fuel, initial); err != nil {
			rt.Fatalf("register: %v", err)
		}
		if _, err := e.SetQuotaAllowance(ctx, "CAB-1", fuel, allowed); err != nil {
			rt.Fatalf("allowance: %v", err)
		}

		steps := rapid.IntRange(1, 12).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			amount := rapid.Float64Range(1, 30).Draw(rt, "amount")
			filled := rapid.Float64Range(0.5, 35).Draw(rt, "filled")
			if rapid.Bool().Draw(rt, "refill") {
				if _, err := e.RefillStation(ctx, "S1", fuel, 20); err != nil {
					rt.Fatalf("refill: %v", err)
				}
			}
			r, err := e.SubmitRequest(ctx, model.Submission{
				UserID: "u1", UserType: model.UserPersonal, RegistrationNo: "CAB-1",
				FuelType: fuel, Amount: amount, RequestedStations: []string{"S1"},
			})
			if err != nil {
				continue
			}
			res, err := e.AnnounceQueue(ctx, "S1", fuel, []string{r.ID})
			if err == nil {
				_, _ = e.FillRequest(ctx, res.Queue.ID, r.ID, filled)
			}
			if cur, err := e.GetRequest(ctx, r.ID); err == nil && cur.State == model.RequestWaiting {
				if _, err := e.CancelRequest(ctx, r.ID, ""); err != nil {
					rt.Fatalf("cancel: %v", err)
				}
			}

			q, err := e.GetQuota(ctx, "CAB-1", fuel)
			if err != nil {
				rt.Fatalf("quota: %v", err)
			}
			if !model.LessOrEqual(q.UsedAmount, q.AllowedAmount) {
				rt.Fatalf("used %v exceeds allowed %v", q.UsedAmount, q.AllowedAmount)
			}
			reqs, _ := e.ListSubjectRequests(ctx, "CAB-1")
			var sum float64
			for _, r := range reqs {
				if r.State == model.RequestClosed {
					sum += r.FilledAmount
				}
			}
			if !model.LessOrEqual(sum, allowed) {
				rt.Fatalf("filled %v exceeds allowed %v", sum, allowed)
			}
			s, err := e.GetStock(ctx, "S1", fuel)
			if err != nil {
				rt.Fatalf("stock: %v", err)
			}
			if s.CurrentAmount < 0 || s.ReservedAmount < 0 {
				rt.Fatalf("negative stock %+v", s)
			}
			if !model.IsZero(s.ReservedAmount) {
				rt.Fatalf("reservation leaked: %+v", s)
			}
		}
	})
}
