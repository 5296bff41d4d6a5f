package auth

import "errors"

// Sentinel errors for token operations.
var (
	// ErrTokenInvalid is returned when a token fails signature or
	// claim validation.
	ErrTokenInvalid = errors.New("auth: invalid token")
)
