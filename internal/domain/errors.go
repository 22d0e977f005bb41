package domain

import "errors"

// Sentinel errors shared across the engine. Callers classify failures with
// errors.Is; bulk operations collect per-record failures into result Errors
// slices instead of aborting.
var (
	// ErrNotFound indicates a missing entity. It aborts a call only when the
	// entity is the call's direct subject.
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed indicates the call's subject is in the wrong
	// lifecycle state, e.g. reassigning a budget that is not deleted.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrValidation indicates malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")
)
