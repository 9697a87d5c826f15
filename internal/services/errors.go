package services

import (
	"errors"
	"fmt"
)

// Errors returned by the invoicing core. Callers compare with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrInvalidDate = fmt.Errorf("%w: invalid date, expected YYYY-MM-DD", ErrValidation)
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("not authorized to access this resource")
	ErrImmutable   = errors.New("invoice is paid and can no longer change")
	ErrConflict    = errors.New("conflicting record already exists")
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func immutableError(msg string) error {
	return fmt.Errorf("%w: %s", ErrImmutable, msg)
}
