package calls

import (
	"context"
	"errors"
	"time"

	"recruit-platform/internal/events"
)

var (
	// ErrNotFound never distinguishes "exists under another workspace" from
	// "does not exist".
	ErrNotFound = errors.New("calls: call not found")

	// ErrConflict signals a concurrent write on the same call. Retryable.
	ErrConflict = errors.New("calls: concurrent update")

	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// Store is the persistence port for scheduled calls and their per-attempt
// logs.
//
// Update is a compare-and-swap on the call status read by the caller; ev and
// lg, when non-nil, are written atomically with the call row.

type Store interface {
	Create(ctx context.Context, c ScheduledCall, ev events.Event) error

	Get(ctx context.Context, workspaceID, callID string) (ScheduledCall, error)

	Update(ctx context.Context, c ScheduledCall, expect CallStatus, ev *events.Event, lg *CallLog) error

	// ListDue returns pending calls whose scheduled time has arrived, across
	// all workspaces, ordered by priority then scheduled_for, up to limit.
	// Consumed by the sweep, which is a system process.
	ListDue(ctx context.Context, now time.Time, limit int) ([]ScheduledCall, error)

	// ListDueForWorkspace is ListDue restricted to one workspace. Tenant-facing
	// reads must use this form; calls from other workspaces never appear.
	ListDueForWorkspace(ctx context.Context, workspaceID string, now time.Time, limit int) ([]ScheduledCall, error)

	// ListStale returns in-progress calls claimed before the given cutoff.
	ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]ScheduledCall, error)

	ListForEntry(ctx context.Context, workspaceID, entryID string) ([]ScheduledCall, error)

	// CancelPendingForEntry marks every pending call of an entry cancelled in
	// one atomic operation and returns how many were cancelled.
	CancelPendingForEntry(ctx context.Context, workspaceID, entryID string, now time.Time, ev events.Event) (int, error)

	ListLogs(ctx context.Context, workspaceID, callID string) ([]CallLog, error)
}
