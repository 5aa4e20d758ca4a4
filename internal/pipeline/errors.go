package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both "does not exist" and "exists under another
	// workspace"; the two are deliberately indistinguishable.
	ErrNotFound = errors.New("pipeline: entry not found")

	// ErrConflict signals a concurrent write on the same entry. Retryable.
	ErrConflict = errors.New("pipeline: concurrent update")

	ErrInvalidArgument = errors.New("pipeline: invalid argument")
)

// InvalidTransitionError rejects a status change that is not an edge in the
// transition table (or a same-status no-op). It names the current status and
// the legal next-status set so the caller can pick a legal target.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("pipeline: cannot transition from %q to %q (allowed: %v)", e.From, e.To, e.Allowed)
}

func invalidTransition(from, to Status) error {
	return &InvalidTransitionError{From: from, To: to, Allowed: ValidNext(from)}
}
