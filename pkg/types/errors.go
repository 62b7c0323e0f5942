package types

import "errors"

// Row validation errors
var (
	// ErrMissingNaturalKey is returned when a row has an empty natural key
	ErrMissingNaturalKey = errors.New("missing natural key")

	// ErrDuplicateNaturalKey is returned when a snapshot holds the same natural key twice
	ErrDuplicateNaturalKey = errors.New("duplicate natural key")
)
