package types

import "errors"

// Sentinel errors for eventfilter operations.
var (
	// ErrFieldNotFound indicates a payload path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")

	// ErrPathTooDeep indicates a payload path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrInvalidPath indicates a placeholder path that does not follow the
	// dotted/bracketed grammar.
	ErrInvalidPath = errors.New("invalid field path")

	// ErrMissingEventType indicates an event without a type.
	ErrMissingEventType = errors.New("event type required")
)
