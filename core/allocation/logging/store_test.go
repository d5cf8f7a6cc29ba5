package logging

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/fuelq/core/model"
)

func sampleRecords(base time.Time) []LogRecord {
	return []LogRecord{
		{Timestamp: base, Operation: "submit", Outcome: "ok", RequestID: "r1", Station: "S1", FuelType: model.Petrol92, Amount: 10},
		{Timestamp: base.Add(time.Minute), Operation: "announce", Outcome: "ok", QueueID: "q1", Station: "S1", RequestIDs: []string{"r1", "r2"}, Amount: 25},
		{Timestamp: base.Add(2 * time.Minute), Operation: "fill", Outcome: "ok", QueueID: "q1", RequestID: "r2", Station: "S1", Amount: 15},
	}
}

func exerciseStore(t *testing.T, s LogStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for _, r := range sampleRecords(base) {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	all, err := s.Query(ctx, LogQuery{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	byReq, err := s.Query(ctx, LogQuery{RequestID: "r2"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byReq) != 2 {
		t.Fatalf("expected announce and fill for r2, got %d", len(byReq))
	}
	window, err := s.Query(ctx, LogQuery{Start: base.Add(30 * time.Second), Operation: "fill"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(window) != 1 || window[0].Amount != 15 {
		t.Fatalf("unexpected window result %+v", window)
	}
	last, err := s.Query(ctx, LogQuery{QueueID: "q1", Limit: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(last) != 1 || last[0].Operation != "fill" {
		t.Fatalf("limit must keep the newest record, got %+v", last)
	}
}

func TestJSONLStore(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "journal.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "journal.jsonl"), 1, 2, 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(Options{Backend: "kafka"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
