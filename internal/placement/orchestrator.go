package placement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"recruit-platform/internal/calls"
	"recruit-platform/internal/events"
	"recruit-platform/internal/pipeline"
)

// Orchestrator is the façade over the state machine, the call scheduler and
// the event log. External surfaces (HTTP handlers, the sweeper) talk to the
// engine only through it.
//
// Error policy: ErrConflict from a transition is retried here, bounded;
// every other error kind is surfaced unchanged.
type Orchestrator struct {
	entries *pipeline.Service
	calls   *calls.Service
	history events.Repository
	log     *slog.Logger
	// clock is injectable for deterministic tests.
	clock func() time.Time

	// conflictRetries bounds local retries of concurrent-update conflicts.
	conflictRetries int
}

func New(entries *pipeline.Service, callSvc *calls.Service, history events.Repository, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		entries:         entries,
		calls:           callSvc,
		history:         history,
		log:             log,
		clock:           time.Now,
		conflictRetries: 3,
	}
}

// CreateEntry opens a pipeline entry for a candidate, idempotently: a
// candidate with an open unmatched entry gets that entry back.
func (o *Orchestrator) CreateEntry(ctx context.Context, workspaceID, actor string, req pipeline.CreateRequest) (pipeline.Entry, bool, error) {
	return o.entries.Create(ctx, workspaceID, actor, req)
}

// AttachMatch pairs an available candidate with a client. Legal only when
// the entry is in available; everything else surfaces as InvalidTransition
// from the state machine.
func (o *Orchestrator) AttachMatch(ctx context.Context, workspaceID, entryID, clientID string, commuteMinutes int, actor string) (pipeline.Entry, error) {
	if clientID == "" {
		return pipeline.Entry{}, pipeline.ErrInvalidArgument
	}
	fields := pipeline.FieldUpdate{
		ClientID:       &clientID,
		CommuteMinutes: &commuteMinutes,
	}
	return o.RequestTransition(ctx, workspaceID, entryID, pipeline.StatusMatched, fields, actor)
}

// RequestTransition applies a status change, retrying concurrent-update
// conflicts up to the local bound, then runs the status's side effects.
func (o *Orchestrator) RequestTransition(ctx context.Context, workspaceID, entryID string, to pipeline.Status, fields pipeline.FieldUpdate, actor string) (pipeline.Entry, error) {
	var e pipeline.Entry
	var err error
	for attempt := 0; attempt <= o.conflictRetries; attempt++ {
		e, err = o.entries.Transition(ctx, workspaceID, entryID, to, fields, actor)
		if !errors.Is(err, pipeline.ErrConflict) {
			break
		}
	}
	if err != nil {
		return pipeline.Entry{}, err
	}
	o.runSideEffects(ctx, e, actor)
	return e, nil
}

// CancelEntry moves the entry to cancelled and cancels every pending call.
// An already-cancelled entry skips the transition but still sweeps its
// pending calls, so a retry after a partial failure converges instead of
// tripping over the cancelled -> cancelled edge.
func (o *Orchestrator) CancelEntry(ctx context.Context, workspaceID, entryID, actor string) (pipeline.Entry, int, error) {
	e, err := o.entries.Get(ctx, workspaceID, entryID)
	if err != nil {
		return pipeline.Entry{}, 0, err
	}
	if e.Status != pipeline.StatusCancelled {
		e, err = o.RequestTransition(ctx, workspaceID, entryID, pipeline.StatusCancelled, pipeline.FieldUpdate{}, actor)
		if err != nil {
			return pipeline.Entry{}, 0, err
		}
	}
	n, err := o.calls.CancelForEntry(ctx, workspaceID, entryID, actor)
	if err != nil {
		return pipeline.Entry{}, 0, err
	}
	return e, n, nil
}

// ScheduleCall plans an outbound call for an entry after verifying the entry
// exists under the caller's workspace and is still open.
func (o *Orchestrator) ScheduleCall(ctx context.Context, workspaceID, actor string, req calls.ScheduleRequest) (calls.ScheduledCall, error) {
	e, err := o.entries.Get(ctx, workspaceID, req.EntryID)
	if err != nil {
		return calls.ScheduledCall{}, err
	}
	if !e.Open() {
		return calls.ScheduledCall{}, pipeline.ErrInvalidArgument
	}
	return o.calls.Schedule(ctx, workspaceID, actor, req)
}

// ApplyCallOutcome records the dialer's report and, when the call type and
// outcome imply a pipeline state change, issues the corresponding
// transition. The outcome recording commits regardless; a pipeline that has
// already moved on simply skips the follow-up transition.
func (o *Orchestrator) ApplyCallOutcome(ctx context.Context, workspaceID, callID, actor string, req calls.OutcomeRequest) (calls.ScheduledCall, error) {
	c, err := o.calls.RecordOutcome(ctx, workspaceID, callID, actor, req)
	if err != nil {
		return calls.ScheduledCall{}, err
	}

	e, err := o.entries.Get(ctx, workspaceID, c.EntryID)
	if err != nil {
		return c, err
	}

	to, ok := statusForOutcome(c, req.Outcome, e.Status)
	if !ok {
		return c, nil
	}
	if _, err := o.RequestTransition(ctx, workspaceID, c.EntryID, to, pipeline.FieldUpdate{}, actor); err != nil {
		var it *pipeline.InvalidTransitionError
		if errors.As(err, &it) {
			// The entry moved elsewhere while the call ran; the outcome is
			// recorded either way.
			o.log.Warn("call outcome transition skipped",
				"entry_id", c.EntryID, "call_id", c.ID,
				"from", it.From, "to", it.To)
			return c, nil
		}
		return c, err
	}
	return c, nil
}

// EntryDetail is the full read model: entry, event history, calls, and the
// per-attempt call logs.
type EntryDetail struct {
	Entry  pipeline.Entry        `json:"entry"`
	Events []events.Event        `json:"events"`
	Calls  []calls.ScheduledCall `json:"calls"`
}

func (o *Orchestrator) GetEntry(ctx context.Context, workspaceID, entryID string) (EntryDetail, error) {
	e, err := o.entries.Get(ctx, workspaceID, entryID)
	if err != nil {
		return EntryDetail{}, err
	}
	evs, err := o.history.ListByEntry(ctx, workspaceID, entryID)
	if err != nil {
		return EntryDetail{}, err
	}
	cs, err := o.calls.ListForEntry(ctx, workspaceID, entryID)
	if err != nil {
		return EntryDetail{}, err
	}
	return EntryDetail{Entry: e, Events: evs, Calls: cs}, nil
}

// ValidNextStatuses exposes the legal next-status set for UIs. This is the
// only external read of transition legality.
func (o *Orchestrator) ValidNextStatuses(ctx context.Context, workspaceID, entryID string) ([]pipeline.Status, error) {
	return o.entries.ValidNextFor(ctx, workspaceID, entryID)
}

// CallLogs returns the per-attempt audit records for a call.
func (o *Orchestrator) CallLogs(ctx context.Context, workspaceID, callID string) ([]calls.CallLog, error) {
	if _, err := o.calls.Get(ctx, workspaceID, callID); err != nil {
		return nil, err
	}
	return o.calls.ListLogs(ctx, workspaceID, callID)
}

// DueCallsForWorkspace lists one tenant's dispatchable calls. The
// cross-workspace due batch belongs to the sweep, which reads the calls
// service directly; it is never served here.
func (o *Orchestrator) DueCallsForWorkspace(ctx context.Context, workspaceID string, limit int) ([]calls.ScheduledCall, error) {
	return o.calls.ListDueForWorkspace(ctx, workspaceID, o.clock().UTC(), limit)
}

// runSideEffects schedules the outbound call a newly entered status
// requires. Best-effort after the transition committed; a failure here is
// logged and recoverable by scheduling the call manually.
func (o *Orchestrator) runSideEffects(ctx context.Context, e pipeline.Entry, actor string) {
	callType, ok := statusCallTriggers[e.Status]
	if !ok {
		return
	}
	if e.CandidatePhone == "" {
		o.log.Warn("no candidate phone on file, skipping auto-schedule",
			"entry_id", e.ID, "status", e.Status)
		return
	}
	_, err := o.calls.Schedule(ctx, e.WorkspaceID, actor, calls.ScheduleRequest{
		EntryID:     e.ID,
		Type:        callType,
		PhoneNumber: e.CandidatePhone,
		ContactName: e.CandidateName,
	})
	if err != nil {
		o.log.Error("auto-schedule failed",
			"entry_id", e.ID, "status", e.Status, "call_type", callType, "err", err)
	}
}
