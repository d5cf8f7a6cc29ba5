package queue

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Estimator predicts how long a station needs per vehicle from the service
// times it has observed.
type Estimator struct {
	mu       sync.Mutex
	fallback time.Duration
	window   int
	samples  map[string][]float64
}

// NewEstimator keeps the last window observations per station and uses
// fallback until the first one arrives.
func NewEstimator(fallback time.Duration, window int) *Estimator {
	if window <= 0 {
		window = 50
	}
	return &Estimator{fallback: fallback, window: window, samples: make(map[string][]float64)}
}

// Observe records one vehicle's service time at station.
func (e *Estimator) Observe(station string, d time.Duration) {
	if d <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := append(e.samples[station], d.Seconds())
	if len(s) > e.window {
		s = s[len(s)-e.window:]
	}
	e.samples[station] = s
}

// PerVehicle returns the mean observed service time of station.
func (e *Estimator) PerVehicle(station string) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.samples[station]
	if len(s) == 0 {
		return e.fallback
	}
	return time.Duration(stat.Mean(s, nil) * float64(time.Second))
}

// EstimateEnd returns when vehicles starting at start should be served.
func (e *Estimator) EstimateEnd(station string, start time.Time, vehicles int) time.Time {
	return start.Add(time.Duration(vehicles) * e.PerVehicle(station))
}
