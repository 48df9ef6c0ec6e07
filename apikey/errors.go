package apikey

import (
	"errors"
	"fmt"
)

// Sentinel errors for the credential validation path. The taxonomy is
// deliberate: input-shape problems are ValidationError, credential problems
// are one of the authentication sentinels, and quota/rate problems carry
// their limit.
var (
	// ErrKeyNotFound is returned when a key record cannot be found.
	ErrKeyNotFound = errors.New("apikey: key not found")

	// ErrMissingCredential is returned when validation is attempted with an
	// empty candidate.
	ErrMissingCredential = errors.New("apikey: missing credential")

	// ErrInvalidCredential is returned when no stored hash matches the
	// candidate.
	ErrInvalidCredential = errors.New("apikey: invalid credential")

	// ErrInactiveCredential is returned when the matched key is deactivated.
	ErrInactiveCredential = errors.New("apikey: credential is inactive")

	// ErrExpiredCredential is returned when the matched key's expiry has passed.
	ErrExpiredCredential = errors.New("apikey: credential has expired")

	// ErrOriginNotAllowed is returned when the caller's origin matches none
	// of the key's allowed origin patterns.
	ErrOriginNotAllowed = errors.New("apikey: origin not allowed")

	// ErrInvalidExpiration is returned when an expiry in the past is requested.
	ErrInvalidExpiration = errors.New("apikey: expiration must be in the future")
)

// ValidationError indicates invalid input shape or range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "apikey validation: " + e.Field + ": " + e.Message
}

// QuotaExceededError reports that the per-owner active-key cap was hit.
type QuotaExceededError struct {
	OwnerID string
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("apikey: quota exceeded: owner %s already holds %d active keys", e.OwnerID, e.Limit)
}
