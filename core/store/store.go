// Package store declares the persistence ports of the allocation engine.
//
// Every record carries a Version. Put with Version 0 inserts and fails with
// ErrVersionConflict when the record exists; otherwise the stored version
// must match, and on success the record's Version is advanced in place.
package store

import (
	"context"
	"errors"

	"github.com/kilianp07/fuelq/core/model"
)

// ErrVersionConflict is returned when a conditional write lost a race.
var ErrVersionConflict = errors.New("store: version conflict")

// RequestFilter narrows request listings. Zero fields match anything.
type RequestFilter struct {
	RegistrationNo string
	FuelType       model.FuelType
	States         []model.RequestState
}

// Match reports whether r satisfies f.
func (f RequestFilter) Match(r model.Request) bool {
	if f.RegistrationNo != "" && f.RegistrationNo != r.RegistrationNo {
		return false
	}
	if f.FuelType != "" && f.FuelType != r.FuelType {
		return false
	}
	if len(f.States) == 0 {
		return true
	}
	for _, s := range f.States {
		if s == r.State {
			return true
		}
	}
	return false
}

// RequestRepo persists fuel requests.
type RequestRepo interface {
	GetRequest(ctx context.Context, id string) (model.Request, error)
	PutRequest(ctx context.Context, r *model.Request) error
	ListRequests(ctx context.Context, f RequestFilter) ([]model.Request, error)
}

// QuotaRepo persists per subject allowances.
type QuotaRepo interface {
	GetQuota(ctx context.Context, subject string, fuel model.FuelType) (model.Quota, error)
	PutQuota(ctx context.Context, q *model.Quota) error
	ListQuotas(ctx context.Context, subject string) ([]model.Quota, error)
}

// StockRepo persists station stock records.
type StockRepo interface {
	GetStock(ctx context.Context, station string, fuel model.FuelType) (model.Stock, error)
	PutStock(ctx context.Context, s *model.Stock) error
	ListStationStock(ctx context.Context, station string) ([]model.Stock, error)
}

// WaitingRepo persists waiting queues keyed by station and fuel type.
type WaitingRepo interface {
	GetWaiting(ctx context.Context, station string, fuel model.FuelType) (model.WaitingQueue, error)
	PutWaiting(ctx context.Context, q *model.WaitingQueue) error
}

// QueueRepo persists announced queues.
type QueueRepo interface {
	GetQueue(ctx context.Context, id string) (model.AnnouncedQueue, error)
	PutQueue(ctx context.Context, q *model.AnnouncedQueue) error
	ListQueues(ctx context.Context, f model.QueueFilter) ([]model.AnnouncedQueue, error)
}

// NotificationRepo persists inbox messages.
type NotificationRepo interface {
	AddNotifications(ctx context.Context, ns ...model.Notification) error
	ListNotifications(ctx context.Context, recipient string, unreadOnly bool) ([]model.Notification, error)
	MarkNotificationsRead(ctx context.Context, recipient string, ids []string) (int, error)
}

// Store aggregates every repository of one backend.
type Store interface {
	RequestRepo
	QuotaRepo
	StockRepo
	WaitingRepo
	QueueRepo
	NotificationRepo
	Close() error
}

// NotFound wraps model.ErrNotFound with the missing key.
func NotFound(kind, key string) error {
	return &notFoundError{kind: kind, key: key}
}

type notFoundError struct {
	kind, key string
}

func (e *notFoundError) Error() string { return e.kind + " " + e.key + ": not found" }

func (e *notFoundError) Unwrap() error { return model.ErrNotFound }
