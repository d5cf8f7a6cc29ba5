package model

import (
	"errors"
	"fmt"
)

// Error kinds returned by the allocation components. Callers match them with
// errors.Is; the wrapped message carries the detail.
var (
	ErrValidation               = errors.New("validation error")
	ErrQuotaExceeded            = errors.New("quota exceeded")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrRequestNotInWaitingQueue = errors.New("request not in waiting queue")
	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrConflict                 = errors.New("conflict")
	ErrNotFound                 = errors.New("not found")
	ErrStationNotFound          = fmt.Errorf("station %w", ErrNotFound)
)

// Validationf builds an ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorKind returns a short label for err suitable for metrics and journal
// records.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrRequestNotInWaitingQueue):
		return "not_in_waiting_queue"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_transition"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrStationNotFound):
		return "station_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
