package memory

import (
	"context"
	"testing"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
	"github.com/kilianp07/fuelq/core/store/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestMemoryStoreCopiesSlices(t *testing.T) {
	s := New()
	r := model.Request{ID: "r1", RequestedStations: []string{"S1"}}
	if err := s.PutRequest(context.Background(), &r); err != nil {
		t.Fatalf("put: %v", err)
	}
	r.RequestedStations[0] = "S9"
	got, _ := s.GetRequest(context.Background(), "r1")
	if got.RequestedStations[0] != "S1" {
		t.Fatalf("store shares caller slice")
	}
}
