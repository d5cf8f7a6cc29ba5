package allocation

import (
	"context"
	"fmt"

	"github.com/kilianp07/fuelq/core/allocation/logging"
	"github.com/kilianp07/fuelq/core/events"
	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/notify"
	"github.com/kilianp07/fuelq/core/queue"
	"github.com/kilianp07/fuelq/core/request"
)

func stationKey(station string, fuel model.FuelType) string { return station + "|" + string(fuel) }

// AnnounceQueue promotes the given waiting requests of a station into a
// new announced queue. Ids that are no longer waiting there are reported
// per item; the call fails only when nothing could be announced or the
// station cannot cover the eligible amount.
func (e *Engine) AnnounceQueue(ctx context.Context, station string, fuel model.FuelType, ids []string) (res AnnounceResult, err error) {
	start := e.now()
	defer func() {
		e.finish(OpAnnounce, start, logging.LogRecord{
			QueueID:    res.Queue.ID,
			RequestIDs: ids,
			Station:    station,
			FuelType:   fuel,
			Amount:     res.Queue.SelectedAmount,
		}, res.Queue.VehicleCount, err)
	}()

	if err := validateBatch(station, fuel, ids); err != nil {
		return AnnounceResult{}, err
	}
	if _, err := e.stock.Get(ctx, station, fuel); err != nil {
		return AnnounceResult{}, err
	}

	unlock := e.stations.Lock(stationKey(station, fuel))
	defer unlock()

	entries, err := e.waiting.List(ctx, station, fuel)
	if err != nil {
		return AnnounceResult{}, err
	}
	listed := make(map[string]bool, len(entries))
	for _, ref := range entries {
		listed[ref.RequestID] = true
	}

	itemErr := make(map[string]error, len(ids))
	var eligible []model.RequestRef
	for _, id := range ids {
		if !listed[id] {
			itemErr[id] = fmt.Errorf("%w: %s at %s", model.ErrRequestNotInWaitingQueue, id, station)
			continue
		}
		r, err := e.requests.Get(ctx, id)
		if err != nil && !isNotFound(err) {
			return AnnounceResult{}, err
		}
		if err == nil && r.State == model.RequestPending {
			itemErr[id] = fmt.Errorf("%w: %s is still being submitted", model.ErrRequestNotInWaitingQueue, id)
			continue
		}
		if err != nil || r.State != model.RequestWaiting || r.FuelType != fuel {
			itemErr[id] = fmt.Errorf("%w: %s is no longer waiting", model.ErrRequestNotInWaitingQueue, id)
			_, rerr := e.waiting.RemoveRequest(ctx, station, fuel, id)
			e.bestEffort("prune stale waiting entry", rerr)
			continue
		}
		eligible = append(eligible, r.Ref())
	}
	items := func() []AnnounceItem {
		out := make([]AnnounceItem, 0, len(ids))
		for _, id := range ids {
			out = append(out, newItem(id, itemErr[id]))
		}
		return out
	}
	if len(eligible) == 0 {
		return AnnounceResult{Items: items()}, fmt.Errorf("%w: none of the %d requests is waiting at %s", model.ErrRequestNotInWaitingQueue, len(ids), station)
	}
	model.SortRefs(eligible)

	var total float64
	for _, ref := range eligible {
		total += ref.Amount
	}
	reserved, err := e.stock.Reserve(ctx, station, fuel, total)
	if err != nil {
		return AnnounceResult{Items: items()}, err
	}
	e.stockChanged(reserved, "reserve")

	queueID := queue.NewID()
	var (
		winners  []model.RequestRef
		announce []model.Request
		unused   float64
	)
	for _, ref := range eligible {
		r, err := e.requests.TransitionFrom(ctx, ref.RequestID, []model.RequestState{model.RequestWaiting}, model.RequestAnnounced,
			func(r *model.Request) {
				r.QueueID = queueID
				r.FilledStation = station
			})
		if err != nil {
			if request.IsUnexpectedState(err) {
				err = fmt.Errorf("%w: %s was claimed concurrently", model.ErrRequestNotInWaitingQueue, ref.RequestID)
			}
			itemErr[ref.RequestID] = err
			unused += ref.Amount
			continue
		}
		winners = append(winners, ref)
		announce = append(announce, r)
		e.removeFromStations(ctx, r)
	}
	if unused > 0 {
		s, rerr := e.stock.Release(ctx, station, fuel, unused)
		e.bestEffort("release unused reservation", rerr)
		if rerr == nil {
			e.stockChanged(s, "release")
		}
	}
	if len(winners) == 0 {
		return AnnounceResult{Items: items()}, fmt.Errorf("%w: every request was claimed concurrently", model.ErrRequestNotInWaitingQueue)
	}

	q, err := e.announced.Create(ctx, queueID, station, fuel, winners)
	if err != nil {
		_, held := e.returnToWaiting(ctx, winners)
		if held > 0 {
			_, rerr := e.stock.Release(ctx, station, fuel, held)
			e.bestEffort("release reservation after failed create", rerr)
		}
		return AnnounceResult{Items: items()}, err
	}

	res = AnnounceResult{Queue: q, Items: items()}
	e.publish(events.QueueAnnounced{Queue: q, Skipped: res.Skipped()})
	now := e.now()
	ns := make([]model.Notification, 0, len(announce))
	for _, r := range announce {
		ns = append(ns, notify.New(r.RegistrationNo, "Queue announced",
			fmt.Sprintf("Your %s request for %.2f L was announced at station %s (queue %s).", r.FuelType, r.QuotaAmount, station, q.ID), now))
	}
	e.notify(ns...)
	return res, nil
}

func validateBatch(station string, fuel model.FuelType, ids []string) error {
	if station == "" {
		return model.Validationf("station is required")
	}
	if !fuel.Valid() {
		return model.Validationf("unknown fuel type %q", fuel)
	}
	if len(ids) == 0 {
		return model.Validationf("at least one request id is required")
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return model.Validationf("empty request id")
		}
		if seen[id] {
			return model.Validationf("duplicate request id %s", id)
		}
		seen[id] = true
	}
	return nil
}

// ActivateQueue starts serving an announced queue. The end time is
// estimated from the station's observed service times.
func (e *Engine) ActivateQueue(ctx context.Context, id string) (q model.AnnouncedQueue, err error) {
	start := e.now()
	defer func() {
		e.finish(OpActivate, start, logging.LogRecord{
			QueueID:  id,
			Station:  q.StationRegNo,
			FuelType: q.FuelType,
			Amount:   q.SelectedAmount,
		}, len(q.Remaining), err)
	}()
	if id == "" {
		return model.AnnouncedQueue{}, model.Validationf("queue id is required")
	}
	unlock := e.queues.Lock(id)
	defer unlock()

	q, err = e.announced.Get(ctx, id)
	if err != nil {
		return model.AnnouncedQueue{}, err
	}
	now := e.now()
	end := e.estimator.EstimateEnd(q.StationRegNo, now, len(q.Remaining))
	q, err = e.announced.Activate(ctx, id, now, end)
	if err != nil {
		return q, err
	}
	for _, rid := range q.Remaining {
		_, terr := e.requests.TransitionFrom(ctx, rid, []model.RequestState{model.RequestAnnounced}, model.RequestActive, nil)
		if terr != nil && !request.IsUnexpectedState(terr) {
			e.bestEffort("activate request", terr)
		}
	}
	e.publish(events.QueueActivated{Queue: q})
	return q, nil
}
