package events

import "github.com/kilianp07/fuelq/core/model"

// Event is implemented by every allocation event.
type Event interface {
	Kind() string
}

// RequestSubmitted is published once a request waits at its stations.
type RequestSubmitted struct {
	Request model.Request
}

// RequestRejected is published when intake refuses a submission.
type RequestRejected struct {
	Submission model.Submission
	Reason     string
}

// RequestCancelled is published for user cancellations and fills cancelled
// on quota.
type RequestCancelled struct {
	Request model.Request
	Reason  string
}

// QueueAnnounced carries the new queue and the ids that could not join it.
type QueueAnnounced struct {
	Queue   model.AnnouncedQueue
	Skipped []string
}

// QueueActivated is published when a station starts serving a queue.
type QueueActivated struct {
	Queue model.AnnouncedQueue
}

// QueueClosed is published when the last request of a queue is terminal or
// the queue was drained.
type QueueClosed struct {
	Queue model.AnnouncedQueue
}

// RequestFilled is published after stock and quota were both committed.
type RequestFilled struct {
	Request model.Request
	QueueID string
}

// RequestsRequeued lists requests sent back to waiting after a stock
// shortfall.
type RequestsRequeued struct {
	QueueID    string
	Station    string
	FuelType   model.FuelType
	RequestIDs []string
}

// StockChanged is published after any write to a stock record.
type StockChanged struct {
	Stock model.Stock
	Cause string
}

func (RequestSubmitted) Kind() string { return "request_submitted" }
func (RequestRejected) Kind() string  { return "request_rejected" }
func (RequestCancelled) Kind() string { return "request_cancelled" }
func (QueueAnnounced) Kind() string   { return "queue_announced" }
func (QueueActivated) Kind() string   { return "queue_activated" }
func (QueueClosed) Kind() string      { return "queue_closed" }
func (RequestFilled) Kind() string    { return "request_filled" }
func (RequestsRequeued) Kind() string { return "requests_requeued" }
func (StockChanged) Kind() string     { return "stock_changed" }
