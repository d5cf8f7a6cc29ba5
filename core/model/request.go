package model

import (
	"fmt"
	"time"
)

// RequestState is the lifecycle state of a fuel request.
type RequestState string

const (
	RequestPending   RequestState = "pending"
	RequestWaiting   RequestState = "waiting"
	RequestAnnounced RequestState = "announced"
	RequestActive    RequestState = "active"
	RequestClosed    RequestState = "closed"
	RequestCancelled RequestState = "cancelled"
	RequestRejected  RequestState = "rejected"
)

var requestTransitions = map[RequestState][]RequestState{
	RequestPending:   {RequestWaiting, RequestRejected, RequestCancelled},
	RequestWaiting:   {RequestAnnounced, RequestCancelled},
	RequestAnnounced: {RequestActive, RequestClosed, RequestCancelled, RequestWaiting},
	RequestActive:    {RequestClosed, RequestCancelled, RequestWaiting},
}

// CanTransition reports whether a request may move from s to next.
func (s RequestState) CanTransition(next RequestState) bool {
	for _, n := range requestTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s RequestState) Terminal() bool {
	return s == RequestClosed || s == RequestCancelled || s == RequestRejected
}

// Request is a subject's ask for fuel at one of several candidate stations.
type Request struct {
	ID                string       `json:"id"`
	UserID            string       `json:"user_id"`
	UserType          UserType     `json:"user_type"`
	RegistrationNo    string       `json:"registration_no"`
	FuelType          FuelType     `json:"fuel_type"`
	QuotaAmount       float64      `json:"quota_amount"`
	RequestedStations []string     `json:"requested_stations"`
	Priority          int          `json:"priority"`
	State             RequestState `json:"state"`
	QueueID           string       `json:"queue_id,omitempty"`
	FilledStation     string       `json:"filled_station,omitempty"`
	IsFilled          bool         `json:"is_filled"`
	FilledDate        time.Time    `json:"filled_date,omitempty"`
	FilledAmount      float64      `json:"filled_amount,omitempty"`
	CancelReason      string       `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	Version           int64        `json:"version"`
}

// Ref returns the waiting queue entry for r.
func (r Request) Ref() RequestRef {
	return RequestRef{
		RequestID:      r.ID,
		RegistrationNo: r.RegistrationNo,
		Amount:         r.QuotaAmount,
		Priority:       r.Priority,
		SubmittedAt:    r.CreatedAt,
	}
}

// HasStation reports whether station is one of the request's candidates.
func (r Request) HasStation(station string) bool {
	for _, s := range r.RequestedStations {
		if s == station {
			return true
		}
	}
	return false
}

// Transition moves r to next, stamping UpdatedAt.
func (r *Request) Transition(next RequestState, at time.Time) error {
	if !r.State.CanTransition(next) {
		return fmt.Errorf("%w: request %s %s -> %s", ErrInvalidStateTransition, r.ID, r.State, next)
	}
	r.State = next
	r.UpdatedAt = at
	return nil
}

// Submission carries the caller supplied fields of a new request.
type Submission struct {
	UserID            string   `json:"user_id"`
	UserType          UserType `json:"user_type"`
	RegistrationNo    string   `json:"registration_no"`
	FuelType          FuelType `json:"fuel_type"`
	Amount            float64  `json:"amount"`
	RequestedStations []string `json:"requested_stations"`
	Priority          int      `json:"priority"`
}

// Validate checks the submission fields in isolation.
func (s Submission) Validate() error {
	if s.RegistrationNo == "" {
		return Validationf("registration number is required")
	}
	if s.UserID == "" {
		return Validationf("user id is required")
	}
	if !s.UserType.Valid() {
		return Validationf("unknown user type %q", s.UserType)
	}
	if !s.FuelType.Valid() {
		return Validationf("unknown fuel type %q", s.FuelType)
	}
	if s.Amount <= 0 {
		return Validationf("amount must be positive, got %v", s.Amount)
	}
	if s.Priority < 0 {
		return Validationf("priority must not be negative")
	}
	if len(s.RequestedStations) == 0 {
		return Validationf("at least one station is required")
	}
	seen := make(map[string]struct{}, len(s.RequestedStations))
	for _, st := range s.RequestedStations {
		if st == "" {
			return Validationf("empty station registration number")
		}
		if _, dup := seen[st]; dup {
			return Validationf("station %s listed twice", st)
		}
		seen[st] = struct{}{}
	}
	return nil
}
