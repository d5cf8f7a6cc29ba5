package allocation

import (
	"fmt"
	"time"

	"github.com/kilianp07/fuelq/core/store"
)

// Config defines allocation engine settings.
type Config struct {
	MaxRetries            int     `json:"max_retries"`
	BackoffMS             int     `json:"backoff_ms"`
	DefaultServiceMinutes float64 `json:"default_service_minutes"`
	EstimatorWindow       int     `json:"estimator_window"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 8
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 2
	}
	if c.DefaultServiceMinutes == 0 {
		c.DefaultServiceMinutes = 5
	}
	if c.EstimatorWindow == 0 {
		c.EstimatorWindow = 50
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("allocation.max_retries must be >= 0")
	}
	if c.BackoffMS < 0 {
		return fmt.Errorf("allocation.backoff_ms must be >= 0")
	}
	if c.DefaultServiceMinutes <= 0 {
		return fmt.Errorf("allocation.default_service_minutes must be positive")
	}
	if c.EstimatorWindow <= 0 {
		return fmt.Errorf("allocation.estimator_window must be positive")
	}
	return nil
}

func (c Config) retry(entity string) store.RetryPolicy {
	return store.RetryPolicy{
		MaxRetries: c.MaxRetries,
		Backoff:    time.Duration(c.BackoffMS) * time.Millisecond,
		OnConflict: conflictCounter(entity),
	}
}

func (c Config) serviceTime() time.Duration {
	return time.Duration(c.DefaultServiceMinutes * float64(time.Minute))
}
