package events

import "context"

// Repository is the persistence contract for pipeline events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error

	// ListByEntry returns all events for one entry in creation order.
	// Implementations must enforce workspace filtering.
	ListByEntry(ctx context.Context, workspaceID, entryID string) ([]Event, error)
}
