package entity

import "errors"

// Sentinel errors for entity operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEntityNotFound is returned when an entity does not exist.
	ErrEntityNotFound = errors.New("entity: not found")

	// ErrEntityExists is returned when creating an entity that already exists.
	ErrEntityExists = errors.New("entity: already exists")

	// ErrJobNotFound is returned when a print job does not exist.
	ErrJobNotFound = errors.New("entity: job not found")
)
