package pipeline

import (
	"context"

	"recruit-platform/internal/events"
)

// Store is the persistence port for pipeline entries.
//
// Mutations take the event recording them so implementations can commit both
// atomically (one transaction in Postgres, one critical section in memory).
// The event must not be written if the mutation fails.
//
// UpdateEntry is a compare-and-swap: it only writes if the stored row is
// still in expect, returning ErrConflict otherwise. This linearizes
// transitions on the same entry; different entries proceed in parallel.

type Store interface {
	CreateEntry(ctx context.Context, e Entry, ev events.Event) error

	GetEntry(ctx context.Context, workspaceID, entryID string) (Entry, error)

	// FindOpenUnmatched returns the entry for a candidate that is still in a
	// non-terminal status with no client attached, if one exists.
	// Backs the idempotent-create rule.
	FindOpenUnmatched(ctx context.Context, workspaceID, candidateID string) (Entry, bool, error)

	UpdateEntry(ctx context.Context, e Entry, expect Status, ev events.Event) error
}
