package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any external call.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to an id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExternal marks a failed call to the record store, auth backend or
	// background-removal service.
	ErrExternal = errors.New("external service failed")
)

// Invalid returns a validation error carrying msg.
func Invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// External wraps err from the named operation so it matches ErrExternal
// while keeping err in the chain.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrExternal, op, err)
}
