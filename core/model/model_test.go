package model

import (
	"errors"
	"testing"
	"time"
)

func TestRequestTransitions(t *testing.T) {
	cases := []struct {
		from, to RequestState
		ok       bool
	}{
		{RequestPending, RequestWaiting, true},
		{RequestPending, RequestAnnounced, false},
		{RequestWaiting, RequestAnnounced, true},
		{RequestWaiting, RequestClosed, false},
		{RequestAnnounced, RequestActive, true},
		{RequestAnnounced, RequestWaiting, true},
		{RequestActive, RequestClosed, true},
		{RequestClosed, RequestWaiting, false},
		{RequestCancelled, RequestWaiting, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s: expected %v got %v", c.from, c.to, c.ok, got)
		}
	}
}

func TestRequestTransitionError(t *testing.T) {
	r := Request{ID: "r1", State: RequestClosed}
	err := r.Transition(RequestCancelled, time.Now())
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if r.State != RequestClosed {
		t.Fatalf("state changed to %s", r.State)
	}
}

func TestQueueTransitions(t *testing.T) {
	q := AnnouncedQueue{ID: "q", State: QueueAnnounced}
	now := time.Now()
	if err := q.Transition(QueueActive, now); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := q.Transition(QueueAnnounced, now); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := q.Transition(QueueClosed, now); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !q.ClosedAt.Equal(now) {
		t.Fatalf("closed at not stamped")
	}
}

func TestSortRefs(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	refs := []RequestRef{
		{RequestID: "c", Priority: 0, SubmittedAt: base},
		{RequestID: "b", Priority: 0, SubmittedAt: base.Add(-time.Minute)},
		{RequestID: "a", Priority: 2, SubmittedAt: base.Add(time.Hour)},
		{RequestID: "d", Priority: 0, SubmittedAt: base},
	}
	SortRefs(refs)
	want := []string{"a", "b", "c", "d"}
	for i, id := range want {
		if refs[i].RequestID != id {
			t.Fatalf("position %d: expected %s got %s", i, id, refs[i].RequestID)
		}
	}
}

func TestSubmissionValidate(t *testing.T) {
	ok := Submission{
		UserID: "u1", UserType: UserPersonal, RegistrationNo: "CAB-1234",
		FuelType: Petrol92, Amount: 10, RequestedStations: []string{"S1", "S2"},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []func(s *Submission){
		func(s *Submission) { s.RegistrationNo = "" },
		func(s *Submission) { s.Amount = 0 },
		func(s *Submission) { s.FuelType = "Jet A1" },
		func(s *Submission) { s.UserType = "fleet" },
		func(s *Submission) { s.RequestedStations = nil },
		func(s *Submission) { s.RequestedStations = []string{"S1", "S1"} },
		func(s *Submission) { s.Priority = -1 },
	}
	for i, mutate := range bad {
		s := ok
		s.RequestedStations = append([]string(nil), ok.RequestedStations...)
		mutate(&s)
		if err := s.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestQuotaAndStockAmounts(t *testing.T) {
	q := Quota{AllowedAmount: 20, UsedAmount: 15}
	if !q.Fits(5) || q.Fits(5.1) {
		t.Fatalf("unexpected fit result")
	}
	if q.Remaining() != 5 {
		t.Fatalf("expected 5 remaining got %v", q.Remaining())
	}
	s := Stock{CurrentAmount: 10, ReservedAmount: 12}
	if s.Available() != 0 {
		t.Fatalf("available must not be negative, got %v", s.Available())
	}
}

func TestParseFuelType(t *testing.T) {
	ft, err := ParseFuelType("auto diesel")
	if err != nil || ft != AutoDiesel {
		t.Fatalf("got %q %v", ft, err)
	}
	if _, err := ParseFuelType("hydrogen"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestErrorKind(t *testing.T) {
	if k := ErrorKind(ErrStationNotFound); k != "station_not_found" {
		t.Fatalf("got %s", k)
	}
	if !errors.Is(ErrStationNotFound, ErrNotFound) {
		t.Fatalf("station not found must wrap not found")
	}
}

func TestRequestRefAndHeldAmount(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	r := Request{ID: "r1", RegistrationNo: "CAB-1", QuotaAmount: 12, Priority: 2, CreatedAt: at}
	want := RequestRef{RequestID: "r1", RegistrationNo: "CAB-1", Amount: 12, Priority: 2, SubmittedAt: at}
	if got := r.Ref(); got != want {
		t.Fatalf("ref mismatch: %+v", got)
	}

	q := AnnouncedQueue{
		Requests:  []RequestRef{want, {RequestID: "r2", Amount: 8}, {RequestID: "r3", Amount: 5}},
		Remaining: []string{"r1", "r3"},
	}
	if got := q.HeldAmount(); got != 17 {
		t.Fatalf("held amount: expected 17 got %v", got)
	}
}
