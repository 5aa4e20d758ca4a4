package pipeline

import (
	"context"
	"errors"
	"time"

	"recruit-platform/internal/events"

	"github.com/google/uuid"
)

// Service owns all pipeline entry mutations.
//
// Invariants enforced here:
// - status is always a member of the enumeration
// - every status change follows an edge of the transition table
// - each status change emits exactly one status_change event
// - stage timestamps are set on first entry to a status and never overwritten
//
// Concurrency: UpdateEntry is a CAS on the status read at the start of the
// operation; a concurrent transition on the same entry surfaces as
// ErrConflict for the caller (the orchestrator) to retry.
type Service struct {
	store Store
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// CreateRequest carries the initial fields of a new entry.
type CreateRequest struct {
	CandidateID      string
	CandidateName    string
	CandidatePhone   string
	RightToWork      *bool
	RegistrationInfo string
	ExpectedRate     string
	Notes            string
}

// Create opens a new-status entry for a candidate. If the candidate already
// has an open entry with no client attached under the same workspace, that
// entry is returned instead and created is false: duplicate-create is safe
// to retry.
func (s *Service) Create(ctx context.Context, workspaceID, actor string, req CreateRequest) (Entry, bool, error) {
	if workspaceID == "" || req.CandidateID == "" {
		return Entry{}, false, ErrInvalidArgument
	}

	if existing, ok, err := s.store.FindOpenUnmatched(ctx, workspaceID, req.CandidateID); err != nil {
		return Entry{}, false, err
	} else if ok {
		return existing, false, nil
	}

	now := s.clock().UTC()
	e := Entry{
		ID:               uuid.NewString(),
		WorkspaceID:      workspaceID,
		CandidateID:      req.CandidateID,
		Status:           StatusNew,
		StatusUpdatedAt:  now,
		StageTimes:       map[Status]time.Time{StatusNew: now},
		CandidateName:    req.CandidateName,
		CandidatePhone:   req.CandidatePhone,
		RightToWork:      req.RightToWork,
		RegistrationInfo: req.RegistrationInfo,
		ExpectedRate:     req.ExpectedRate,
		Notes:            req.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	ev := events.New(workspaceID, e.ID, events.TypeEntryCreated, now)
	ev.ToStatus = string(StatusNew)
	ev.Actor = actor
	ev.MarshalPayload(map[string]string{"candidate_id": req.CandidateID})

	if err := s.store.CreateEntry(ctx, e, ev); err != nil {
		// Two concurrent creates for the same candidate race past the lookup;
		// the store's uniqueness guard rejects the loser, who returns the
		// winner's entry just like a sequential duplicate would.
		if errors.Is(err, ErrConflict) {
			if existing, ok, ferr := s.store.FindOpenUnmatched(ctx, workspaceID, req.CandidateID); ferr == nil && ok {
				return existing, false, nil
			}
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *Service) Get(ctx context.Context, workspaceID, entryID string) (Entry, error) {
	if workspaceID == "" || entryID == "" {
		return Entry{}, ErrInvalidArgument
	}
	return s.store.GetEntry(ctx, workspaceID, entryID)
}

// ValidNextFor exposes the adjacency list for the entry's current status.
// This is the only place transition legality may be consulted from outside.
func (s *Service) ValidNextFor(ctx context.Context, workspaceID, entryID string) ([]Status, error) {
	e, err := s.Get(ctx, workspaceID, entryID)
	if err != nil {
		return nil, err
	}
	return ValidNext(e.Status), nil
}

// Transition validates and applies a status change with an optional field
// payload.
//
// Rules:
// - to must be a legal edge from the entry's current status
// - to == current is rejected unless fields carry at least one update; a
//   same-status field update emits a fields_updated event, not a second
//   status_change
// - on a real change: status and status_updated_at are stamped, the stage
//   timestamp for to is set if absent, fields are applied, and exactly one
//   status_change event is recorded atomically with the write
func (s *Service) Transition(ctx context.Context, workspaceID, entryID string, to Status, fields FieldUpdate, actor string) (Entry, error) {
	if workspaceID == "" || entryID == "" {
		return Entry{}, ErrInvalidArgument
	}
	if !Valid(to) {
		return Entry{}, ErrInvalidArgument
	}

	e, err := s.store.GetEntry(ctx, workspaceID, entryID)
	if err != nil {
		return Entry{}, err
	}

	now := s.clock().UTC()
	prev := e.Status

	if to == prev {
		if fields.Empty() {
			// Replaying the same transition must not produce a second
			// status_change event.
			return Entry{}, invalidTransition(prev, to)
		}
		fields.applyTo(&e)
		e.UpdatedAt = now

		ev := events.New(workspaceID, e.ID, events.TypeFieldsUpdated, now)
		ev.Actor = actor
		ev.MarshalPayload(fields)
		if err := s.store.UpdateEntry(ctx, e, prev, ev); err != nil {
			return Entry{}, err
		}
		return e, nil
	}

	if !CanTransition(prev, to) {
		return Entry{}, invalidTransition(prev, to)
	}

	e.Status = to
	e.StatusUpdatedAt = now
	if e.StageTimes == nil {
		e.StageTimes = make(map[Status]time.Time)
	}
	if _, ok := e.StageTimes[to]; !ok {
		e.StageTimes[to] = now
	}
	fields.applyTo(&e)
	e.UpdatedAt = now

	ev := events.New(workspaceID, e.ID, events.TypeStatusChange, now)
	ev.FromStatus = string(prev)
	ev.ToStatus = string(to)
	ev.Actor = actor
	if !fields.Empty() {
		ev.MarshalPayload(fields)
	}

	if err := s.store.UpdateEntry(ctx, e, prev, ev); err != nil {
		return Entry{}, err
	}
	return e, nil
}
