// Package common defines shared constants and sentinel errors used across
// the sync engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Request validation errors, rejected before any write.
	ErrorValidation      = errors.New("validation error")
	ErrTooManyChanges    = errors.New("too many changes in batch")
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrUnknownOperation  = errors.New("unknown operation")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Store availability; the whole call fails, safe to retry verbatim.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
