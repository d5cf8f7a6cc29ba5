package model

import (
	"fmt"
	"sort"
	"time"
)

// RequestRef is a request's entry in a queue.
type RequestRef struct {
	RequestID      string    `json:"request_id"`
	RegistrationNo string    `json:"registration_no"`
	Amount         float64   `json:"amount"`
	Priority       int       `json:"priority"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Before orders refs by priority desc, then submission time, then id.
func (r RequestRef) Before(o RequestRef) bool {
	if r.Priority != o.Priority {
		return r.Priority > o.Priority
	}
	if !r.SubmittedAt.Equal(o.SubmittedAt) {
		return r.SubmittedAt.Before(o.SubmittedAt)
	}
	return r.RequestID < o.RequestID
}

// SortRefs orders refs in waiting order.
func SortRefs(refs []RequestRef) {
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Before(refs[j]) })
}

// WaitingQueue holds the requests naming a station for a fuel type that have
// not been announced yet.
type WaitingQueue struct {
	StationRegNo string       `json:"station_reg_no"`
	FuelType     FuelType     `json:"fuel_type"`
	Entries      []RequestRef `json:"entries"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Version      int64        `json:"version"`
}

// Index returns the position of requestID or -1.
func (q WaitingQueue) Index(requestID string) int {
	for i, e := range q.Entries {
		if e.RequestID == requestID {
			return i
		}
	}
	return -1
}

// QueueState is the lifecycle state of an announced queue.
type QueueState string

const (
	QueueWaiting   QueueState = "waiting"
	QueueAnnounced QueueState = "announced"
	QueueActive    QueueState = "active"
	QueueClosed    QueueState = "closed"
)

var queueTransitions = map[QueueState][]QueueState{
	QueueWaiting:   {QueueAnnounced, QueueClosed},
	QueueAnnounced: {QueueActive, QueueClosed},
	QueueActive:    {QueueClosed},
}

// CanTransition reports whether a queue may move from s to next.
func (s QueueState) CanTransition(next QueueState) bool {
	for _, n := range queueTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Open reports whether requests of the queue may still be filled.
func (s QueueState) Open() bool {
	return s == QueueAnnounced || s == QueueActive
}

// AnnouncedQueue is a batch of requests promoted at one station.
type AnnouncedQueue struct {
	ID               string       `json:"id"`
	StationRegNo     string       `json:"station_reg_no"`
	FuelType         FuelType     `json:"fuel_type"`
	Requests         []RequestRef `json:"requests"`
	Remaining        []string     `json:"remaining"`
	QueueStartTime   time.Time    `json:"queue_start_time,omitempty"`
	EstimatedEndTime time.Time    `json:"estimated_end_time,omitempty"`
	State            QueueState   `json:"state"`
	VehicleCount     int          `json:"vehicle_count"`
	SelectedAmount   float64      `json:"selected_amount"`
	FilledAmount     float64      `json:"filled_amount"`
	LastServedAt     time.Time    `json:"last_served_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	ClosedAt         time.Time    `json:"closed_at,omitempty"`
	Version          int64        `json:"version"`
}

// Transition moves q to next.
func (q *AnnouncedQueue) Transition(next QueueState, at time.Time) error {
	if !q.State.CanTransition(next) {
		return fmt.Errorf("%w: queue %s %s -> %s", ErrInvalidStateTransition, q.ID, q.State, next)
	}
	q.State = next
	if next == QueueClosed {
		q.ClosedAt = at
	}
	return nil
}

// Ref returns the entry of requestID in the queue.
func (q AnnouncedQueue) Ref(requestID string) (RequestRef, bool) {
	for _, r := range q.Requests {
		if r.RequestID == requestID {
			return r, true
		}
	}
	return RequestRef{}, false
}

// IsRemaining reports whether requestID is still on the active list.
func (q AnnouncedQueue) IsRemaining(requestID string) bool {
	for _, id := range q.Remaining {
		if id == requestID {
			return true
		}
	}
	return false
}

// HeldAmount is the stock still reserved for the requests on the active
// list.
func (q AnnouncedQueue) HeldAmount() float64 {
	var sum float64
	for _, r := range q.Requests {
		if q.IsRemaining(r.RequestID) {
			sum += r.Amount
		}
	}
	return sum
}

// QueueFilter narrows announced queue listings. Zero fields match anything.
type QueueFilter struct {
	StationRegNo string     `json:"station_reg_no,omitempty"`
	FuelType     FuelType   `json:"fuel_type,omitempty"`
	State        QueueState `json:"state,omitempty"`
}

// Match reports whether q satisfies f.
func (f QueueFilter) Match(q AnnouncedQueue) bool {
	if f.StationRegNo != "" && f.StationRegNo != q.StationRegNo {
		return false
	}
	if f.FuelType != "" && f.FuelType != q.FuelType {
		return false
	}
	if f.State != "" && f.State != q.State {
		return false
	}
	return true
}
