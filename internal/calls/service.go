package calls

import (
	"context"
	"encoding/json"
	"time"

	"recruit-platform/internal/events"

	"github.com/google/uuid"
)

// Config carries the scheduling tunables. All values come from deployment
// configuration; none are business constants baked into code.
type Config struct {
	DefaultMaxAttempts int
	RetrySpacing       time.Duration
	Window             Window
	StaleClaimTimeout  time.Duration
}

// Service decides call eligibility and retry timing. It never performs the
// actual dial; that belongs to the dialer gateway.
type Service struct {
	store Store
	cfg   Config
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(store Store, cfg Config) *Service {
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = 24
	}
	if cfg.RetrySpacing <= 0 {
		cfg.RetrySpacing = 30 * time.Minute
	}
	if cfg.Window.OpenHour == 0 && cfg.Window.CloseHour == 0 {
		cfg.Window = Window{OpenHour: 9, CloseHour: 21}
	}
	if cfg.StaleClaimTimeout <= 0 {
		cfg.StaleClaimTimeout = 10 * time.Minute
	}
	return &Service{store: store, cfg: cfg, clock: time.Now}
}

// ScheduleRequest describes a call to plan.
type ScheduleRequest struct {
	EntryID     string
	Type        CallType
	PhoneNumber string
	ContactName string
	ToClient    bool
	ScriptID    string
	Priority    int
	// DesiredFor is when the caller would like the call to run; zero means
	// as soon as possible. Always clamped into the business window.
	DesiredFor time.Time
}

// Schedule plans an outbound call. scheduled_for is never outside the
// business window.
func (s *Service) Schedule(ctx context.Context, workspaceID, actor string, req ScheduleRequest) (ScheduledCall, error) {
	if workspaceID == "" || req.EntryID == "" || req.PhoneNumber == "" || req.Type == "" {
		return ScheduledCall{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	desired := req.DesiredFor
	if desired.IsZero() {
		desired = now
	}
	priority := req.Priority
	if priority <= 0 {
		priority = 100
	}

	c := ScheduledCall{
		ID:           uuid.NewString(),
		WorkspaceID:  workspaceID,
		EntryID:      req.EntryID,
		Type:         req.Type,
		PhoneNumber:  req.PhoneNumber,
		ContactName:  req.ContactName,
		ToClient:     req.ToClient,
		ScriptID:     req.ScriptID,
		Status:       CallStatusPending,
		Priority:     priority,
		ScheduledFor: s.cfg.Window.Next(desired),
		MaxAttempts:  s.cfg.DefaultMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ev := events.New(workspaceID, c.EntryID, events.TypeCallScheduled, now)
	ev.Actor = actor
	ev.MarshalPayload(map[string]any{
		"call_id":       c.ID,
		"type":          c.Type,
		"scheduled_for": c.ScheduledFor,
	})

	if err := s.store.Create(ctx, c, ev); err != nil {
		return ScheduledCall{}, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, workspaceID, callID string) (ScheduledCall, error) {
	if workspaceID == "" || callID == "" {
		return ScheduledCall{}, ErrInvalidArgument
	}
	return s.store.Get(ctx, workspaceID, callID)
}

func (s *Service) ListForEntry(ctx context.Context, workspaceID, entryID string) ([]ScheduledCall, error) {
	if workspaceID == "" || entryID == "" {
		return nil, ErrInvalidArgument
	}
	return s.store.ListForEntry(ctx, workspaceID, entryID)
}

func (s *Service) ListLogs(ctx context.Context, workspaceID, callID string) ([]CallLog, error) {
	if workspaceID == "" || callID == "" {
		return nil, ErrInvalidArgument
	}
	return s.store.ListLogs(ctx, workspaceID, callID)
}

// ListDue returns the dispatchable batch for the sweep. It reads across all
// workspaces, so nothing tenant-facing may call it.
func (s *Service) ListDue(ctx context.Context, now time.Time, limit int) ([]ScheduledCall, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListDue(ctx, now, limit)
}

// ListDueForWorkspace returns one tenant's dispatchable calls.
func (s *Service) ListDueForWorkspace(ctx context.Context, workspaceID string, now time.Time, limit int) ([]ScheduledCall, error) {
	if workspaceID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListDueForWorkspace(ctx, workspaceID, now, limit)
}

// Claim moves a due pending call to in_progress. The external dial must only
// be issued after Claim returns: a crash mid-dial then leaves a reclaimable
// in_progress row rather than a duplicate-call risk.
func (s *Service) Claim(ctx context.Context, c ScheduledCall) (ScheduledCall, error) {
	now := s.clock().UTC()
	if !IsDue(c, now) {
		return ScheduledCall{}, ErrConflict
	}
	c.Status = CallStatusInProgress
	c.ClaimedAt = &now
	c.UpdatedAt = now
	if err := s.store.Update(ctx, c, CallStatusPending, nil, nil); err != nil {
		return ScheduledCall{}, err
	}
	return c, nil
}

// OutcomeRequest is the dialer's report for one attempt.
type OutcomeRequest struct {
	Outcome         string
	DurationSeconds int
	Transcript      string
	ExtractedData   json.RawMessage
}

// RecordOutcome applies the result of one attempt.
//
// no_answer consumes one attempt from the budget; while attempts remain the
// call returns to pending with next_retry_at clamped into the business
// window, and at the ceiling it fails. Exhausting the budget is expected
// business flow, not an error. Any other outcome completes the call with the
// outcome recorded verbatim.
//
// Every recorded attempt appends a call_completed event and an immutable
// call_logs row.
func (s *Service) RecordOutcome(ctx context.Context, workspaceID, callID string, actor string, req OutcomeRequest) (ScheduledCall, error) {
	if workspaceID == "" || callID == "" || req.Outcome == "" {
		return ScheduledCall{}, ErrInvalidArgument
	}

	c, err := s.store.Get(ctx, workspaceID, callID)
	if err != nil {
		return ScheduledCall{}, err
	}
	switch c.Status {
	case CallStatusInProgress, CallStatusPending:
		// Outcomes normally arrive for claimed calls; pending is accepted so
		// an operator can close out a call by hand.
	default:
		return ScheduledCall{}, ErrConflict
	}

	now := s.clock().UTC()
	expect := c.Status

	if c.Attempts < c.MaxAttempts {
		c.Attempts++
	}
	c.LastAttemptAt = &now
	c.ClaimedAt = nil
	c.UpdatedAt = now

	if req.Outcome == OutcomeNoAnswer {
		if c.Attempts < c.MaxAttempts {
			retry := s.cfg.Window.Next(now.Add(s.cfg.RetrySpacing))
			c.Status = CallStatusPending
			c.NextRetryAt = &retry
			c.ScheduledFor = retry
		} else {
			c.Status = CallStatusFailed
			c.Outcome = req.Outcome
			c.NextRetryAt = nil
		}
	} else {
		c.Status = CallStatusCompleted
		c.Outcome = req.Outcome
		c.CompletedAt = &now
		c.NextRetryAt = nil
	}

	ev := events.New(workspaceID, c.EntryID, events.TypeCallCompleted, now)
	ev.Actor = actor
	ev.MarshalPayload(map[string]any{
		"call_id": c.ID,
		"attempt": c.Attempts,
		"outcome": req.Outcome,
		"status":  c.Status,
	})

	lg := CallLog{
		ID:              uuid.NewString(),
		WorkspaceID:     workspaceID,
		CallID:          c.ID,
		EntryID:         c.EntryID,
		Attempt:         c.Attempts,
		Outcome:         req.Outcome,
		DurationSeconds: req.DurationSeconds,
		Transcript:      req.Transcript,
		ExtractedData:   req.ExtractedData,
		CreatedAt:       now,
	}

	if err := s.store.Update(ctx, c, expect, &ev, &lg); err != nil {
		return ScheduledCall{}, err
	}
	return c, nil
}

// ReclaimStale returns in_progress calls whose claim outlived the configured
// timeout back to the retry path, treating each as a no_answer attempt. A
// crashed dialer worker cannot permanently strand a call.
func (s *Service) ReclaimStale(ctx context.Context, limit int) (int, error) {
	now := s.clock().UTC()
	cutoff := now.Add(-s.cfg.StaleClaimTimeout)
	stale, err := s.store.ListStale(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range stale {
		if _, err := s.RecordOutcome(ctx, c.WorkspaceID, c.ID, "sweeper", OutcomeRequest{Outcome: OutcomeNoAnswer}); err != nil {
			// A conflict means the dialer reported in the meantime; skip.
			continue
		}
		n++
	}
	return n, nil
}

// CancelForEntry cancels every pending call of an entry. Invoked when the
// owning pipeline entry is cancelled.
func (s *Service) CancelForEntry(ctx context.Context, workspaceID, entryID, actor string) (int, error) {
	if workspaceID == "" || entryID == "" {
		return 0, ErrInvalidArgument
	}
	now := s.clock().UTC()
	ev := events.New(workspaceID, entryID, events.TypeCallsCancelled, now)
	ev.Actor = actor
	return s.store.CancelPendingForEntry(ctx, workspaceID, entryID, now, ev)
}

// StaleClaimTimeout exposes the configured timeout for the sweep loop.
func (s *Service) StaleClaimTimeout() time.Duration { return s.cfg.StaleClaimTimeout }
