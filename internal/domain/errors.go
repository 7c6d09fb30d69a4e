package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals a malformed search query, rejected before any branch runs.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidInput signals unusable adapter input (e.g. empty embedding text).
	ErrInvalidInput = errors.New("invalid input")
	// ErrProviderUnavailable signals an unreachable or timed-out external provider.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInsufficientCredits signals an exhausted embedding provider quota.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrPartialBranchFailure marks a failed branch inside a hybrid query.
	// Fusion proceeds with the survivor; the response carries degraded=true.
	ErrPartialBranchFailure = errors.New("partial branch failure")
	// ErrRoutingFailed signals that every launched branch failed.
	ErrRoutingFailed = errors.New("routing failed")
	// ErrConfigRetired signals an update against a soft-deleted config.
	ErrConfigRetired = errors.New("config retired")
)
