package notification

import "errors"

var (
	// ErrNotFound is returned when a notification does not exist for the
	// given recipient. Ownership violations surface as the same error so
	// IDs stay opaque.
	ErrNotFound = errors.New("notification not found")

	// ErrValidation is returned when an entity fails its invariants.
	ErrValidation = errors.New("notification validation failed")
)
