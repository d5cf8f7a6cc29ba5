// Package logging keeps the allocation journal: one record per engine
// operation outcome, queryable for audits.
package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/fuelq/core/model"
)

// LogRecord captures one allocation decision and its result.
type LogRecord struct {
	Timestamp      time.Time      `json:"timestamp"`
	Operation      string         `json:"operation"`
	Outcome        string         `json:"outcome"`
	Error          string         `json:"error,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	RequestIDs     []string       `json:"request_ids,omitempty"`
	QueueID        string         `json:"queue_id,omitempty"`
	Station        string         `json:"station,omitempty"`
	FuelType       model.FuelType `json:"fuel_type,omitempty"`
	RegistrationNo string         `json:"registration_no,omitempty"`
	Amount         float64        `json:"amount,omitempty"`
}

// LogQuery defines filters for retrieving records. Zero fields match
// anything.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	Operation string
	Station   string
	RequestID string
	QueueID   string
	Limit     int
}

// Match reports whether r satisfies q, ignoring Limit.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Operation != "" && r.Operation != q.Operation {
		return false
	}
	if q.Station != "" && r.Station != q.Station {
		return false
	}
	if q.QueueID != "" && r.QueueID != q.QueueID {
		return false
	}
	if q.RequestID != "" && r.RequestID != q.RequestID {
		for _, id := range r.RequestIDs {
			if id == q.RequestID {
				return true
			}
		}
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// Options select and tune a journal backend.
type Options struct {
	// Backend is "jsonl" or "sqlite".
	Backend    string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Open creates the journal described by o. A jsonl backend with a size
// limit rotates its file.
func Open(o Options) (LogStore, error) {
	switch o.Backend {
	case "", "jsonl":
		if o.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(o.Path, o.MaxSizeMB, o.MaxBackups, o.MaxAgeDays)
		}
		return NewJSONLStore(o.Path)
	case "sqlite":
		return NewSQLiteStore(o.Path)
	default:
		return nil, fmt.Errorf("unknown journal backend %s", o.Backend)
	}
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, LogRecord) error             { return nil }
func (NopStore) Query(context.Context, LogQuery) ([]LogRecord, error) { return nil, nil }
func (NopStore) Close() error                                         { return nil }

func limit(res []LogRecord, n int) []LogRecord {
	if n > 0 && len(res) > n {
		return res[len(res)-n:]
	}
	return res
}
