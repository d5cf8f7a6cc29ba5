package model

import "time"

// Quota is a subject's allowance for one fuel type in the current period.
type Quota struct {
	SubjectID     string    `json:"subject_id"`
	FuelType      FuelType  `json:"fuel_type"`
	AllowedAmount float64   `json:"allowed_amount"`
	UsedAmount    float64   `json:"used_amount"`
	PeriodStart   time.Time `json:"period_start"`
	LastFilledAt  time.Time `json:"last_filled_at,omitempty"`
	Version       int64     `json:"version"`
}

// Remaining is the amount still available in the period.
func (q Quota) Remaining() float64 {
	return ClampZero(q.AllowedAmount - q.UsedAmount)
}

// Fits reports whether amount can be drawn without exceeding the allowance.
func (q Quota) Fits(amount float64) bool {
	return LessOrEqual(q.UsedAmount+amount, q.AllowedAmount)
}

// Stock is the on-hand amount of one fuel type at a station. Reserved is
// the part promised to announced queues.
type Stock struct {
	StationRegNo   string    `json:"station_reg_no"`
	FuelType       FuelType  `json:"fuel_type"`
	CurrentAmount  float64   `json:"current_amount"`
	ReservedAmount float64   `json:"reserved_amount"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        int64     `json:"version"`
}

// Available is the unreserved on-hand amount.
func (s Stock) Available() float64 {
	return ClampZero(s.CurrentAmount - s.ReservedAmount)
}

// Notification is a message addressed to a subject or station.
type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}
