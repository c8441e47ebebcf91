package bookings

import (
	"errors"
	"fmt"
)

// ErrBookingNotFound is returned when a booking id is unknown
var ErrBookingNotFound = errors.New("booking not found")

// ValidationError reports a rejected field with enough detail for a 4xx body.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bookings: invalid %s: %s", e.Field, e.Reason)
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
