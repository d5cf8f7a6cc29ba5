// Package seed loads station and quota fixtures from YAML and applies them
// to the allocation engine.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fuelq/core/model"
)

// Fixture is the document layout:
//
//	stations:
//	  - reg_no: S1
//	    stock:
//	      Petrol 92 Octane: 6600
//	quotas:
//	  - subject: CAB-1234
//	    allowances:
//	      Petrol 92 Octane: 20
type Fixture struct {
	Stations []Station `yaml:"stations"`
	Quotas   []Quota   `yaml:"quotas"`
}

// Station lists the initial stock per fuel type of one station.
type Station struct {
	RegNo string             `yaml:"reg_no"`
	Stock map[string]float64 `yaml:"stock"`
}

// Quota lists the allowance per fuel type of one vehicle.
type Quota struct {
	Subject    string             `yaml:"subject"`
	Allowances map[string]float64 `yaml:"allowances"`
}

// Target is the part of the engine a fixture is applied to.
type Target interface {
	GetStock(ctx context.Context, station string, fuel model.FuelType) (model.Stock, error)
	RegisterStation(ctx context.Context, station string, fuel model.FuelType, initial float64) (model.Stock, error)
	SetQuotaAllowance(ctx context.Context, subject string, fuel model.FuelType, allowed float64) (model.Quota, error)
}

// Summary counts what Apply changed.
type Summary struct {
	StationsRegistered int `json:"stations_registered"`
	StationsSkipped    int `json:"stations_skipped"`
	QuotasSet          int `json:"quotas_set"`
}

// Load decodes and validates a fixture.
func Load(r io.Reader) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return f, f.Validate()
}

// LoadFile reads a fixture from path.
func LoadFile(path string) (Fixture, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Fixture{}, err
	}
	defer fh.Close()
	return Load(fh)
}

// Validate checks names, fuel types and amounts.
func (f Fixture) Validate() error {
	var errs error
	for i, s := range f.Stations {
		if s.RegNo == "" {
			errs = multierr.Append(errs, model.Validationf("stations[%d]: reg_no is required", i))
		}
		for fuel, amount := range s.Stock {
			if _, err := model.ParseFuelType(fuel); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("stations[%d]: %w", i, err))
			}
			if amount < 0 {
				errs = multierr.Append(errs, model.Validationf("stations[%d]: negative stock for %s", i, fuel))
			}
		}
	}
	for i, q := range f.Quotas {
		if q.Subject == "" {
			errs = multierr.Append(errs, model.Validationf("quotas[%d]: subject is required", i))
		}
		for fuel, amount := range q.Allowances {
			if _, err := model.ParseFuelType(fuel); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("quotas[%d]: %w", i, err))
			}
			if amount < 0 {
				errs = multierr.Append(errs, model.Validationf("quotas[%d]: negative allowance for %s", i, fuel))
			}
		}
	}
	return errs
}

// Apply registers every station fuel that is not stocked yet and sets every
// allowance. Existing stock records are left untouched.
func (f Fixture) Apply(ctx context.Context, t Target) (Summary, error) {
	var sum Summary
	for _, s := range f.Stations {
		for _, fuel := range sortedKeys(s.Stock) {
			ft, err := model.ParseFuelType(fuel)
			if err != nil {
				return sum, err
			}
			if _, err := t.GetStock(ctx, s.RegNo, ft); err == nil {
				sum.StationsSkipped++
				continue
			} else if !errors.Is(err, model.ErrNotFound) {
				return sum, err
			}
			if _, err := t.RegisterStation(ctx, s.RegNo, ft, s.Stock[fuel]); err != nil {
				return sum, fmt.Errorf("station %s: %w", s.RegNo, err)
			}
			sum.StationsRegistered++
		}
	}
	for _, q := range f.Quotas {
		for _, fuel := range sortedKeys(q.Allowances) {
			ft, err := model.ParseFuelType(fuel)
			if err != nil {
				return sum, err
			}
			if _, err := t.SetQuotaAllowance(ctx, q.Subject, ft, q.Allowances[fuel]); err != nil {
				return sum, fmt.Errorf("quota %s: %w", q.Subject, err)
			}
			sum.QuotasSet++
		}
	}
	return sum, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
