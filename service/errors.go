package service

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the contract service. Handlers map them
// to HTTP status codes; everything else is treated as a backend
// failure and hidden behind a generic message.
var (
	ErrNotFound        = errors.New("contract not found")
	ErrClauseNotFound  = errors.New("clause not found")
	ErrVersionConflict = errors.New("contract version conflict")
)

// InvalidTransitionError reports a status change the lifecycle does
// not allow.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// ValidationError reports a user-correctable problem with a request
// payload. The message is safe to show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
