package pipeline

import "time"

// Entry represents one candidate's (optionally client-paired) progress record
// through the recruitment funnel.
//
// Multi-tenant invariant: WorkspaceID is required on every row; no operation
// may read or mutate entries belonging to a different workspace.
//
// Entries are never physically deleted; cancellation is a terminal status.

type Entry struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	CandidateID string `json:"candidate_id" db:"candidate_id"`

	// ClientID is empty until a match is attached.
	ClientID string `json:"client_id,omitempty" db:"client_id"`

	Status          Status    `json:"status" db:"status"`
	StatusUpdatedAt time.Time `json:"status_updated_at" db:"status_updated_at"`

	// StageTimes records the first time the entry entered each status.
	// A stage timestamp is set exactly once and never overwritten on re-entry.
	// Stored as JSONB.
	StageTimes map[Status]time.Time `json:"stage_times" db:"stage_times"`

	// Contact fields used when scheduling outbound calls.
	CandidateName  string `json:"candidate_name,omitempty" db:"candidate_name"`
	CandidatePhone string `json:"candidate_phone,omitempty" db:"candidate_phone"`

	// Compliance/availability attributes carried through, not interpreted
	// by the engine.
	RightToWork      *bool  `json:"right_to_work,omitempty" db:"right_to_work"`
	RegistrationInfo string `json:"registration_info,omitempty" db:"registration_info"`
	CommuteMinutes   *int   `json:"commute_minutes,omitempty" db:"commute_minutes"`
	ExpectedRate     string `json:"expected_rate,omitempty" db:"expected_rate"`
	Notes            string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Open reports whether the entry is still progressing (non-terminal status).
func (e Entry) Open() bool {
	return !IsTerminal(e.Status)
}

// StageTime returns the first-entry timestamp for a status, if set.
func (e Entry) StageTime(s Status) (time.Time, bool) {
	t, ok := e.StageTimes[s]
	return t, ok
}

// FieldUpdate is the non-status payload of a transition (or a same-status
// field update). Nil pointers mean "unchanged".
type FieldUpdate struct {
	ClientID         *string `json:"client_id,omitempty"`
	CandidateName    *string `json:"candidate_name,omitempty"`
	CandidatePhone   *string `json:"candidate_phone,omitempty"`
	RightToWork      *bool   `json:"right_to_work,omitempty"`
	RegistrationInfo *string `json:"registration_info,omitempty"`
	CommuteMinutes   *int    `json:"commute_minutes,omitempty"`
	ExpectedRate     *string `json:"expected_rate,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

// Empty reports whether the update changes nothing.
// Drives the no-op rule: re-submitting the current status with an empty
// update is rejected.
func (f FieldUpdate) Empty() bool {
	return f.ClientID == nil &&
		f.CandidateName == nil &&
		f.CandidatePhone == nil &&
		f.RightToWork == nil &&
		f.RegistrationInfo == nil &&
		f.CommuteMinutes == nil &&
		f.ExpectedRate == nil &&
		f.Notes == nil
}

func (f FieldUpdate) applyTo(e *Entry) {
	if f.ClientID != nil {
		e.ClientID = *f.ClientID
	}
	if f.CandidateName != nil {
		e.CandidateName = *f.CandidateName
	}
	if f.CandidatePhone != nil {
		e.CandidatePhone = *f.CandidatePhone
	}
	if f.RightToWork != nil {
		v := *f.RightToWork
		e.RightToWork = &v
	}
	if f.RegistrationInfo != nil {
		e.RegistrationInfo = *f.RegistrationInfo
	}
	if f.CommuteMinutes != nil {
		v := *f.CommuteMinutes
		e.CommuteMinutes = &v
	}
	if f.ExpectedRate != nil {
		e.ExpectedRate = *f.ExpectedRate
	}
	if f.Notes != nil {
		e.Notes = *f.Notes
	}
}
