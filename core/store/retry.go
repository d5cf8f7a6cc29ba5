package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kilianp07/fuelq/core/model"
)

// RetryPolicy bounds optimistic read-modify-write loops.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	// OnConflict is called before each retry caused by a version conflict.
	OnConflict func()
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 8, Backoff: 2 * time.Millisecond}

// Do runs op until it succeeds, fails with an error other than
// ErrVersionConflict, or the retry budget is spent. A spent budget surfaces
// as model.ErrConflict.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Backoff
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = time.Millisecond
	}
	eb.MaxInterval = 50 * eb.InitialInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(max(p.MaxRetries, 0))), ctx)

	err := backoff.RetryNotify(func() error {
		err := op()
		if err == nil || errors.Is(err, ErrVersionConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(error, time.Duration) {
		if p.OnConflict != nil {
			p.OnConflict()
		}
	})
	if errors.Is(err, ErrVersionConflict) {
		return fmt.Errorf("%w: retries exhausted after %d attempts", model.ErrConflict, p.MaxRetries+1)
	}
	return err
}
