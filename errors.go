package mls

import "github.com/pkg/errors"

// Sentinel errors for the AS-Tree's error taxonomy. Wrapped occurrences
// carry a stack trace via github.com/pkg/errors so callers can log the
// derivation that failed without losing the ability to errors.Is against
// the sentinel.
var (
	// ErrIndexOutOfBounds is returned when a sender index is >= the
	// roster size the tree was constructed with.
	ErrIndexOutOfBounds = errors.New("mls: sender index out of bounds")

	// ErrTooDistantInTheFuture is returned when a requested generation
	// is more than MaximumForwardDistance ahead of a ratchet's current
	// generation.
	ErrTooDistantInTheFuture = errors.New("mls: requested generation too distant in the future")

	// ErrTooDistantInThePast is returned when a requested generation has
	// already fallen out of a ratchet's OutOfOrderTolerance window.
	ErrTooDistantInThePast = errors.New("mls: requested generation too distant in the past")
)
