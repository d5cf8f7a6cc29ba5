package model

import (
	"fmt"
	"math"
	"strings"
)

// FuelType identifies a rationed fuel grade.
type FuelType string

const (
	Petrol92    FuelType = "Petrol 92 Octane"
	Petrol95    FuelType = "Petrol 95 Octane"
	AutoDiesel  FuelType = "Auto Diesel"
	SuperDiesel FuelType = "Super Diesel"
	Kerosene    FuelType = "Kerosene"
)

// FuelTypes lists every supported fuel grade.
var FuelTypes = []FuelType{Petrol92, Petrol95, AutoDiesel, SuperDiesel, Kerosene}

// Valid reports whether f is a known fuel grade.
func (f FuelType) Valid() bool {
	for _, k := range FuelTypes {
		if f == k {
			return true
		}
	}
	return false
}

// ParseFuelType matches s case-insensitively against the known grades.
func ParseFuelType(s string) (FuelType, error) {
	for _, k := range FuelTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown fuel type %q", ErrValidation, s)
}

// UserType distinguishes personal vehicles from organization fleets.
type UserType string

const (
	UserPersonal     UserType = "personal"
	UserOrganization UserType = "organization"
)

// Valid reports whether u is a known user type.
func (u UserType) Valid() bool {
	return u == UserPersonal || u == UserOrganization
}

// Epsilon is the tolerance used when comparing litre amounts.
const Epsilon = 1e-9

// LessOrEqual reports a <= b within Epsilon.
func LessOrEqual(a, b float64) bool {
	return a <= b+Epsilon
}

// IsZero reports whether v is zero within Epsilon.
func IsZero(v float64) bool {
	return math.Abs(v) <= Epsilon
}

// ClampZero returns v, or 0 when v is negative or within Epsilon of zero.
func ClampZero(v float64) float64 {
	if v < Epsilon {
		return 0
	}
	return v
}
