// Package memory is an in-process store backend. Records are copied on the
// way in and out so callers never share slices with the store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
)

// Store keeps every repository in maps guarded by one RWMutex.
type Store struct {
	mu            sync.RWMutex
	requests      map[string]model.Request
	quotas        map[string]model.Quota
	stock         map[string]model.Stock
	waiting       map[string]model.WaitingQueue
	queues        map[string]model.AnnouncedQueue
	notifications []model.Notification
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		requests: make(map[string]model.Request),
		quotas:   make(map[string]model.Quota),
		stock:    make(map[string]model.Stock),
		waiting:  make(map[string]model.WaitingQueue),
		queues:   make(map[string]model.AnnouncedQueue),
	}
}

func key(a string, fuel model.FuelType) string { return a + "|" + string(fuel) }

// checkVersion implements the shared insert/compare-and-set rule.
func checkVersion(exists bool, stored, incoming int64) error {
	if incoming == 0 {
		if exists {
			return store.ErrVersionConflict
		}
		return nil
	}
	if !exists || stored != incoming {
		return store.ErrVersionConflict
	}
	return nil
}

func cloneRequest(r model.Request) model.Request {
	r.RequestedStations = append([]string(nil), r.RequestedStations...)
	return r
}

func cloneWaiting(q model.WaitingQueue) model.WaitingQueue {
	q.Entries = append([]model.RequestRef(nil), q.Entries...)
	return q
}

func cloneQueue(q model.AnnouncedQueue) model.AnnouncedQueue {
	q.Requests = append([]model.RequestRef(nil), q.Requests...)
	q.Remaining = append([]string(nil), q.Remaining...)
	return q
}

// GetRequest implements store.RequestRepo.
func (s *Store) GetRequest(_ context.Context, id string) (model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return model.Request{}, store.NotFound("request", id)
	}
	return cloneRequest(r), nil
}

// PutRequest implements store.RequestRepo.
func (s *Store) PutRequest(_ context.Context, r *model.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[r.ID]
	if err := checkVersion(ok, cur.Version, r.Version); err != nil {
		return err
	}
	r.Version++
	s.requests[r.ID] = cloneRequest(*r)
	return nil
}

// ListRequests implements store.RequestRepo, oldest first.
func (s *Store) ListRequests(_ context.Context, f store.RequestFilter) ([]model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Request
	for _, r := range s.requests {
		if f.Match(r) {
			out = append(out, cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetQuota implements store.QuotaRepo.
func (s *Store) GetQuota(_ context.Context, subject string, fuel model.FuelType) (model.Quota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotas[key(subject, fuel)]
	if !ok {
		return model.Quota{}, store.NotFound("quota", key(subject, fuel))
	}
	return q, nil
}

// PutQuota implements store.QuotaRepo.
func (s *Store) PutQuota(_ context.Context, q *model.Quota) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(q.SubjectID, q.FuelType)
	cur, ok := s.quotas[k]
	if err := checkVersion(ok, cur.Version, q.Version); err != nil {
		return err
	}
	q.Version++
	s.quotas[k] = *q
	return nil
}

// ListQuotas implements store.QuotaRepo.
func (s *Store) ListQuotas(_ context.Context, subject string) ([]model.Quota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Quota
	for _, q := range s.quotas {
		if q.SubjectID == subject {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FuelType < out[j].FuelType })
	return out, nil
}

// GetStock implements store.StockRepo.
func (s *Store) GetStock(_ context.Context, station string, fuel model.FuelType) (model.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stock[key(station, fuel)]
	if !ok {
		return model.Stock{}, store.NotFound("stock", key(station, fuel))
	}
	return st, nil
}

// PutStock implements store.StockRepo.
func (s *Store) PutStock(_ context.Context, st *model.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(st.StationRegNo, st.FuelType)
	cur, ok := s.stock[k]
	if err := checkVersion(ok, cur.Version, st.Version); err != nil {
		return err
	}
	st.Version++
	s.stock[k] = *st
	return nil
}

// ListStationStock implements store.StockRepo.
func (s *Store) ListStationStock(_ context.Context, station string) ([]model.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Stock
	for _, st := range s.stock {
		if st.StationRegNo == station {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FuelType < out[j].FuelType })
	return out, nil
}

// GetWaiting implements store.WaitingRepo.
func (s *Store) GetWaiting(_ context.Context, station string, fuel model.FuelType) (model.WaitingQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.waiting[key(station, fuel)]
	if !ok {
		return model.WaitingQueue{}, store.NotFound("waiting queue", key(station, fuel))
	}
	return cloneWaiting(q), nil
}

// PutWaiting implements store.WaitingRepo.
func (s *Store) PutWaiting(_ context.Context, q *model.WaitingQueue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(q.StationRegNo, q.FuelType)
	cur, ok := s.waiting[k]
	if err := checkVersion(ok, cur.Version, q.Version); err != nil {
		return err
	}
	q.Version++
	s.waiting[k] = cloneWaiting(*q)
	return nil
}

// GetQueue implements store.QueueRepo.
func (s *Store) GetQueue(_ context.Context, id string) (model.AnnouncedQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[id]
	if !ok {
		return model.AnnouncedQueue{}, store.NotFound("queue", id)
	}
	return cloneQueue(q), nil
}

// PutQueue implements store.QueueRepo.
func (s *Store) PutQueue(_ context.Context, q *model.AnnouncedQueue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.queues[q.ID]
	if err := checkVersion(ok, cur.Version, q.Version); err != nil {
		return err
	}
	q.Version++
	s.queues[q.ID] = cloneQueue(*q)
	return nil
}

// ListQueues implements store.QueueRepo, oldest first.
func (s *Store) ListQueues(_ context.Context, f model.QueueFilter) ([]model.AnnouncedQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AnnouncedQueue
	for _, q := range s.queues {
		if f.Match(q) {
			out = append(out, cloneQueue(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AddNotifications implements store.NotificationRepo.
func (s *Store) AddNotifications(_ context.Context, ns ...model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, ns...)
	return nil
}

// ListNotifications implements store.NotificationRepo, newest first.
func (s *Store) ListNotifications(_ context.Context, recipient string, unreadOnly bool) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Notification
	for _, n := range s.notifications {
		if n.Recipient != recipient || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// MarkNotificationsRead implements store.NotificationRepo. An empty ids
// slice marks every unread message of recipient.
func (s *Store) MarkNotificationsRead(_ context.Context, recipient string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	n := 0
	for i := range s.notifications {
		nt := &s.notifications[i]
		if nt.Recipient != recipient || nt.Read {
			continue
		}
		if len(ids) > 0 {
			if _, ok := want[nt.ID]; !ok {
				continue
			}
		}
		nt.Read = true
		n++
	}
	return n, nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }
