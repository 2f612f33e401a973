package likes

import (
	"errors"
	"fmt"
)

var (
	// ErrTargetNotFound indicates the post being liked doesn't exist or was deleted
	ErrTargetNotFound = errors.New("target not found")

	// ErrNotAuthenticated indicates the request carried no actor identity
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAlreadyLiked is returned by Repository.Create when the (actor, post)
	// uniqueness constraint rejects the insert. The service absorbs it.
	ErrAlreadyLiked = errors.New("like already exists")

	// ErrLikeNotFound is returned by Repository.Delete when there was nothing
	// to delete. The service absorbs it.
	ErrLikeNotFound = errors.New("like not found")
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if error is a validation error
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
