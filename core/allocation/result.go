package allocation

import "github.com/kilianp07/fuelq/core/model"

// AnnounceItem is the outcome for one id of an announce batch.
type AnnounceItem struct {
	RequestID string `json:"request_id"`
	Announced bool   `json:"announced"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

// AnnounceResult lists the created queue and every per-item outcome in the
// order the ids were given.
type AnnounceResult struct {
	Queue model.AnnouncedQueue `json:"queue"`
	Items []AnnounceItem       `json:"items"`
}

// Skipped returns the ids that did not join the queue.
func (r AnnounceResult) Skipped() []string {
	var out []string
	for _, it := range r.Items {
		if !it.Announced {
			out = append(out, it.RequestID)
		}
	}
	return out
}

// FillOutcome names what a fill did to the request.
type FillOutcome string

const (
	FillClosed        FillOutcome = "closed"
	FillAlreadyClosed FillOutcome = "already_closed"
	FillCancelled     FillOutcome = "cancelled"
	FillRequeued      FillOutcome = "requeued"
)

// FillResult reports the request and queue after a fill. Requeued lists the
// requests sent back to waiting after a stock shortfall.
type FillResult struct {
	Outcome  FillOutcome          `json:"outcome"`
	Request  model.Request        `json:"request"`
	Queue    model.AnnouncedQueue `json:"queue"`
	Requeued []string             `json:"requeued,omitempty"`
}

func newItem(id string, err error) AnnounceItem {
	it := AnnounceItem{RequestID: id, Announced: err == nil, Err: err}
	if err != nil {
		it.Error = err.Error()
	}
	return it
}
