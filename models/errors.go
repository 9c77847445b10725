package models

import (
	"errors"
	"fmt"
)

// Sentinel errors callers branch on. Handlers map these to HTTP statuses;
// everything else is treated as an internal error.
var (
	ErrAlreadyOpen             = errors.New("key already has an open checkout session")
	ErrNoOpenSession           = errors.New("key has no open checkout session")
	ErrInvalidBay              = errors.New("invalid bay")
	ErrInvalidReason           = errors.New("invalid checkout reason")
	ErrNoActiveAttentionRecord = errors.New("key has no active attention record")
	ErrForbidden               = errors.New("forbidden")
	ErrDuplicateStockNumber    = errors.New("stock number already in use")
	ErrCapacityExceeded        = errors.New("demo capacity exceeded")
	ErrNoOpStatusChange        = errors.New("status is unchanged")
	ErrKeyNotFound             = errors.New("key not found")
	ErrUserNotFound            = errors.New("user not found")
	ErrDealershipNotFound      = errors.New("dealership not found")
	ErrInviteNotFound          = errors.New("invite not found or expired")
	ErrInvalidCredentials      = errors.New("invalid credentials")
)

// ValidationError carries per-field messages for bad input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	for field, msg := range e.Fields {
		return fmt.Sprintf("validation failed: %s: %s", field, msg)
	}
	return "validation failed"
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
