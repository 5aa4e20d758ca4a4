package calls

import (
	"encoding/json"
	"time"
)

// ScheduledCall represents a tenant-scoped planned or attempted outbound
// contact tied to a pipeline entry.
//
// Multi-tenant invariant: WorkspaceID is required on every row.
//
// The engine decides when and whether a call may be attempted; the actual
// dial is delegated to the external dialer gateway.
//
// Invariants:
// - attempts <= max_attempts, always
// - next_retry_at, when set, falls inside the business-hours window
// - a call is never retried once attempts == max_attempts

type ScheduledCall struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	EntryID     string `json:"entry_id" db:"entry_id"`

	Type CallType `json:"type" db:"type"`

	PhoneNumber string `json:"phone_number" db:"phone_number"`
	ContactName string `json:"contact_name,omitempty" db:"contact_name"`

	// ToClient distinguishes client contact from candidate contact.
	ToClient bool `json:"to_client" db:"to_client"`

	// ScriptID identifies the call script used by the dialer; opaque here.
	ScriptID string `json:"script_id,omitempty" db:"script_id"`

	Status CallStatus `json:"status" db:"status"`

	// Outcome is a free-form result classifier, set only when the call
	// reaches completed or failed.
	Outcome string `json:"outcome,omitempty" db:"outcome"`

	// Priority sorts the due queue; lower runs first.
	Priority int `json:"priority" db:"priority"`

	// ScheduledFor is when the call becomes eligible to run.
	ScheduledFor time.Time `json:"scheduled_for" db:"scheduled_for"`

	Attempts    int `json:"attempts" db:"attempts"`
	MaxAttempts int `json:"max_attempts" db:"max_attempts"`

	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty" db:"next_retry_at"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusPending    CallStatus = "pending"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusCancelled  CallStatus = "cancelled"
)

type CallType string

const (
	TypeInitialScreen     CallType = "initial_screen"
	TypeAvailabilityCheck CallType = "availability_check"
	TypeInterviewConfirm  CallType = "interview_confirmation"
	TypeTermsFollowUp     CallType = "terms_follow_up"
)

// Well-known outcome classifiers. Outcome is free-form; these are the values
// the orchestrator's outcome-to-status lookup understands.
const (
	OutcomeNoAnswer          = "no_answer"
	OutcomeAnswered          = "answered"
	OutcomeAvailable         = "available"
	OutcomeNotInterested     = "not_interested"
	OutcomeCallbackRequested = "callback_requested"
	OutcomeConfirmed         = "confirmed"
	OutcomeWrongNumber       = "wrong_number"
)

// CallLog is the immutable per-attempt audit artifact: what the dialer
// reported for one attempt. Never updated after creation.
type CallLog struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	CallID      string `json:"call_id" db:"call_id"`
	EntryID     string `json:"entry_id" db:"entry_id"`

	Attempt int    `json:"attempt" db:"attempt"`
	Outcome string `json:"outcome" db:"outcome"`

	DurationSeconds int             `json:"duration_seconds" db:"duration_seconds"`
	Transcript      string          `json:"transcript,omitempty" db:"transcript"`
	ExtractedData   json.RawMessage `json:"extracted_data,omitempty" db:"extracted_data"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
