package models

import "errors"

var (
	// ErrValidation marks a request that is missing or carries invalid fields
	ErrValidation = errors.New("validation failed")
	// ErrImageNotFound is returned when no image row matches the requested id
	ErrImageNotFound = errors.New("image not found")
)

// ValidationError carries a message that is safe to show to the client.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Message string
}

// NewValidationError creates a ValidationError with the given client message
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
