package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable, append-only record of one pipeline mutation.
//
// Invariants:
// - Events are never updated or deleted.
// - workspace_id is required for tenancy isolation.
// - The ordered sequence of events for an entry, replayed in creation order,
//   reconstructs the entry's current status and stage timestamps exactly.
//
// Storage recommendation (Postgres):
// - Table pipeline_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	// EntryID is the pipeline entry this event belongs to.
	EntryID string `json:"entry_id" db:"entry_id"`

	Type Type `json:"type" db:"type"`

	// FromStatus/ToStatus are set for status_change events only.
	FromStatus string `json:"from_status,omitempty" db:"from_status"`
	ToStatus   string `json:"to_status,omitempty" db:"to_status"`

	// Payload carries the structured detail of the mutation (field updates,
	// call outcome, attempt number).
	Payload json.RawMessage `json:"payload,omitempty" db:"payload"`

	// Actor is the authenticated user or system process causing the event.
	Actor string `json:"actor,omitempty" db:"actor"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Type string

const (
	TypeEntryCreated   Type = "entry_created"
	TypeStatusChange   Type = "status_change"
	TypeFieldsUpdated  Type = "fields_updated"
	TypeCallScheduled  Type = "call_scheduled"
	TypeCallCompleted  Type = "call_completed"
	TypeCallsCancelled Type = "calls_cancelled"
)

// New builds an event with identity and timestamp filled in.
// Callers set FromStatus/ToStatus/Payload/Actor as the mutation requires.
func New(workspaceID, entryID string, t Type, now time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		EntryID:     entryID,
		Type:        t,
		CreatedAt:   now.UTC(),
	}
}

// MarshalPayload attaches v as the event payload, silently dropping it if it
// cannot be marshalled. Payloads are informational detail; the typed columns
// carry everything replay depends on.
func (e *Event) MarshalPayload(v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	e.Payload = raw
}
