package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"recruit-platform/internal/events"
)

func newTestCallService(cfg Config) (*Service, *MemoryStore, *time.Time) {
	st := NewMemoryStore(nil)
	s := NewService(st, cfg)
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }
	return s, st, &now
}

// alwaysOpen removes window effects from tests that exercise other rules.
func alwaysOpen() Window { return Window{OpenHour: 0, CloseHour: 24, Loc: time.UTC} }

func TestScheduleClampsIntoWindow(t *testing.T) {
	s, st, now := newTestCallService(Config{Window: Window{OpenHour: 9, CloseHour: 21, Loc: time.UTC}})
	*now = time.Date(2025, 6, 10, 22, 0, 0, 0, time.UTC)
	ctx := context.Background()

	c, err := s.Schedule(ctx, "ws", "u", ScheduleRequest{
		EntryID: "e", Type: TypeInitialScreen, PhoneNumber: "+447700900123",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	want := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	if !c.ScheduledFor.Equal(want) {
		t.Fatalf("scheduled_for = %v, want %v", c.ScheduledFor, want)
	}
	if c.Status != CallStatusPending || c.Attempts != 0 {
		t.Fatalf("new call must be pending with zero attempts: %+v", c)
	}

	evs := st.Events().All()
	if len(evs) != 1 || evs[0].Type != events.TypeCallScheduled {
		t.Fatalf("expected one call_scheduled event, got %+v", evs)
	}
}

func TestScheduleRequiresCoreFields(t *testing.T) {
	s, _, _ := newTestCallService(Config{Window: alwaysOpen()})
	ctx := context.Background()

	_, err := s.Schedule(ctx, "ws", "u", ScheduleRequest{Type: TypeInitialScreen, PhoneNumber: "x"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("missing entry id should be invalid, got %v", err)
	}
	_, err = s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e", Type: TypeInitialScreen})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("missing phone should be invalid, got %v", err)
	}
}

func TestClaimOnlyWhenDue(t *testing.T) {
	s, _, now := newTestCallService(Config{Window: alwaysOpen()})
	ctx := context.Background()

	c, err := s.Schedule(ctx, "ws", "u", ScheduleRequest{
		EntryID: "e", Type: TypeInitialScreen, PhoneNumber: "x",
		DesiredFor: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := s.Claim(ctx, c); !errors.Is(err, ErrConflict) {
		t.Fatalf("claiming a future call must conflict, got %v", err)
	}

	*now = now.Add(2 * time.Hour)
	claimed, err := s.Claim(ctx, c)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != CallStatusInProgress || claimed.ClaimedAt == nil {
		t.Fatalf("claim must mark in_progress with claimed_at: %+v", claimed)
	}

	// Second claim of the same snapshot loses the CAS.
	if _, err := s.Claim(ctx, c); !errors.Is(err, ErrConflict) {
		t.Fatalf("double claim must conflict, got %v", err)
	}
}

func TestNoAnswerSchedulesRetryInsideWindow(t *testing.T) {
	s, st, now := newTestCallService(Config{
		Window:       Window{OpenHour: 9, CloseHour: 21, Loc: time.UTC},
		RetrySpacing: 30 * time.Minute,
	})
	ctx := context.Background()

	c, _ := s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e", Type: TypeInitialScreen, PhoneNumber: "x"})
	c, err := s.Claim(ctx, c)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	*now = now.Add(time.Minute)
	got, err := s.RecordOutcome(ctx, "ws", c.ID, "dialer", OutcomeRequest{Outcome: OutcomeNoAnswer})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.Status != CallStatusPending {
		t.Fatalf("retryable no_answer must return to pending, got %s", got.Status)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", got.Attempts)
	}
	if got.Outcome != "" {
		t.Fatalf("outcome must stay unset while retrying, got %q", got.Outcome)
	}
	if got.NextRetryAt == nil || got.LastAttemptAt == nil {
		t.Fatalf("retry bookkeeping missing: %+v", got)
	}
	if !got.NextRetryAt.After(*got.LastAttemptAt) {
		t.Fatalf("next_retry_at %v must follow last_attempt_at %v", got.NextRetryAt, got.LastAttemptAt)
	}
	if !s.cfg.Window.Contains(*got.NextRetryAt) {
		t.Fatalf("next_retry_at %v outside the business window", got.NextRetryAt)
	}
	if !got.ScheduledFor.Equal(*got.NextRetryAt) {
		t.Fatalf("scheduled_for must track next_retry_at")
	}
	if got.ClaimedAt != nil {
		t.Fatalf("claim must be released on outcome")
	}

	var logs []CallLog
	logs, err = s.ListLogs(ctx, "ws", c.ID)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Attempt != 1 || logs[0].Outcome != OutcomeNoAnswer {
		t.Fatalf("expected one attempt log, got %+v", logs)
	}

	completed := 0
	for _, ev := range st.Events().All() {
		if ev.Type == events.TypeCallCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("expected one call_completed event, got %d", completed)
	}
}

func TestNoAnswerEveningRetryRollsToNextMorning(t *testing.T) {
	s, _, now := newTestCallService(Config{
		Window:       Window{OpenHour: 9, CloseHour: 21, Loc: time.UTC},
		RetrySpacing: 30 * time.Minute,
	})
	*now = time.Date(2025, 6, 10, 20, 45, 0, 0, time.UTC)
	ctx := context.Background()

	c, _ := s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e", Type: TypeInitialScreen, PhoneNumber: "x"})
	c, err := s.Claim(ctx, c)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	got, err := s.RecordOutcome(ctx, "ws", c.ID, "dialer", OutcomeRequest{Outcome: OutcomeNoAnswer})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	want := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	if got.NextRetryAt == nil || !got.NextRetryAt.Equal(want) {
		t.Fatalf("next_retry_at = %v, want %v", got.NextRetryAt, want)
	}
}

func TestRetryBudgetExhaustionFailsTheCall(t *testing.T) {
	s, _, now := newTestCallService(Config{
		Window:             alwaysOpen(),
		DefaultMaxAttempts: 24,
		RetrySpacing:       30 * time.Minute,
	})
	ctx := context.Background()

	c, _ := s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e", Type: TypeInitialScreen, PhoneNumber: "x"})

	for i := 1; i <= 24; i++ {
		cur, err := s.Get(ctx, "ws", c.ID)
		if err != nil {
			t.Fatalf("get attempt %d: %v", i, err)
		}
		cur, err = s.Claim(ctx, cur)
		if err != nil {
			t.Fatalf("claim attempt %d: %v", i, err)
		}
		got, err := s.RecordOutcome(ctx, "ws", c.ID, "dialer", OutcomeRequest{Outcome: OutcomeNoAnswer})
		if err != nil {
			t.Fatalf("record attempt %d: %v", i, err)
		}
		if got.Attempts != i {
			t.Fatalf("attempt %d recorded as %d", i, got.Attempts)
		}
		if got.Attempts > got.MaxAttempts {
			t.Fatalf("attempts exceeded budget: %d > %d", got.Attempts, got.MaxAttempts)
		}
		if i < 24 {
			if got.Status != CallStatusPending {
				t.Fatalf("attempt %d should leave the call pending, got %s", i, got.Status)
			}
			*now = now.Add(time.Hour)
			continue
		}
		if got.Status != CallStatusFailed {
			t.Fatalf("final attempt must fail the call, got %s", got.Status)
		}
		if got.Outcome != OutcomeNoAnswer {
			t.Fatalf("failed call records the outcome, got %q", got.Outcome)
		}
		if got.NextRetryAt != nil {
			t.Fatalf("a failed call must not carry a retry time")
		}
	}

	// The budget is spent; nothing more may be recorded.
	if _, err := s.RecordOutcome(ctx, "ws", c.ID, "dialer", OutcomeRequest{Outcome: OutcomeNoAnswer}); !errors.Is(err, ErrConflict) {
		t.Fatalf("recording past exhaustion must conflict, got %v", err)
	}
}

func TestAnsweredOutcomeCompletesCall(t *testing.T) {
	s, _, _ := newTestCallService(Config{Window: alwaysOpen()})
	ctx := context.Background()

	c, _ := s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e", Type: TypeInitialScreen, PhoneNumber: "x"})
	c, err := s.Claim(ctx, c)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	got, err := s.RecordOutcome(ctx, "ws", c.ID, "dialer", OutcomeRequest{
		Outcome:         OutcomeAvailable,
		DurationSeconds: 95,
		Transcript:      "happy to start monday",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.Status != CallStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Outcome != OutcomeAvailable || got.CompletedAt == nil {
		t.Fatalf("completion bookkeeping missing: %+v", got)
	}

	logs, err := s.ListLogs(ctx, "ws", c.ID)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 1 || logs[0].DurationSeconds != 95 || logs[0].Transcript == "" {
		t.Fatalf("attempt log should carry the dialer detail: %+v", logs)
	}
}

func TestReclaimStaleReturnsCallToRetryPath(t *testing.T) {
	s, _, now := newTestCallService(Config{
		Window:            alwaysOpen(),
		StaleClaimTimeout: 10 * time.Minute,
	})
	ctx := context.Background()

	c, _ := s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e", Type: TypeInitialScreen, PhoneNumber: "x"})
	if _, err := s.Claim(ctx, c); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Not yet stale.
	*now = now.Add(5 * time.Minute)
	n, err := s.ReclaimStale(ctx, 10)
	if err != nil || n != 0 {
		t.Fatalf("nothing should be stale yet: n=%d err=%v", n, err)
	}

	*now = now.Add(10 * time.Minute)
	n, err = s.ReclaimStale(ctx, 10)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one reclaimed call, got %d", n)
	}

	got, err := s.Get(ctx, "ws", c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != CallStatusPending {
		t.Fatalf("reclaimed call should be pending again, got %s", got.Status)
	}
	if got.Attempts != 1 {
		t.Fatalf("reclaim consumes one attempt, got %d", got.Attempts)
	}
	if got.ClaimedAt != nil {
		t.Fatalf("reclaimed call must not stay claimed")
	}
}

func TestCancelForEntryCancelsOnlyPending(t *testing.T) {
	s, st, _ := newTestCallService(Config{Window: alwaysOpen()})
	ctx := context.Background()

	c1, _ := s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e", Type: TypeInitialScreen, PhoneNumber: "x"})
	c2, _ := s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e", Type: TypeAvailabilityCheck, PhoneNumber: "x"})
	c3, _ := s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e", Type: TypeInterviewConfirm, PhoneNumber: "x"})
	c3, err := s.Claim(ctx, c3)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := s.RecordOutcome(ctx, "ws", c3.ID, "dialer", OutcomeRequest{Outcome: OutcomeConfirmed}); err != nil {
		t.Fatalf("record: %v", err)
	}

	n, err := s.CancelForEntry(ctx, "ws", "e", "u")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 cancelled calls, got %d", n)
	}
	for _, id := range []string{c1.ID, c2.ID} {
		got, _ := s.Get(ctx, "ws", id)
		if got.Status != CallStatusCancelled {
			t.Fatalf("call %s should be cancelled, got %s", id, got.Status)
		}
	}
	got3, _ := s.Get(ctx, "ws", c3.ID)
	if got3.Status != CallStatusCompleted {
		t.Fatalf("completed call must not be touched, got %s", got3.Status)
	}

	cancelEvents := 0
	for _, ev := range st.Events().All() {
		if ev.Type == events.TypeCallsCancelled {
			cancelEvents++
		}
	}
	if cancelEvents != 1 {
		t.Fatalf("expected one calls_cancelled event, got %d", cancelEvents)
	}

	// Second cancel is a no-op and emits nothing.
	n, err = s.CancelForEntry(ctx, "ws", "e", "u")
	if err != nil || n != 0 {
		t.Fatalf("repeat cancel should be a no-op: n=%d err=%v", n, err)
	}
}

func TestListDueOrdersByPriorityThenTime(t *testing.T) {
	s, _, now := newTestCallService(Config{Window: alwaysOpen()})
	ctx := context.Background()

	early := now.Add(-2 * time.Hour)
	late := now.Add(-time.Hour)
	a, _ := s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e1", Type: TypeInitialScreen, PhoneNumber: "x", Priority: 200, DesiredFor: early})
	b, _ := s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e2", Type: TypeInitialScreen, PhoneNumber: "x", Priority: 50, DesiredFor: late})
	c, _ := s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e3", Type: TypeInitialScreen, PhoneNumber: "x", Priority: 200, DesiredFor: late})
	_, _ = s.Schedule(ctx, "ws", "u", ScheduleRequest{EntryID: "e4", Type: TypeInitialScreen, PhoneNumber: "x", DesiredFor: now.Add(time.Hour)})

	due, err := s.ListDue(ctx, *now, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("expected 3 due calls, got %d", len(due))
	}
	if due[0].ID != b.ID {
		t.Fatalf("lowest priority value runs first")
	}
	if due[1].ID != a.ID || due[2].ID != c.ID {
		t.Fatalf("equal priorities order by scheduled_for: got %s, %s", due[1].ID, due[2].ID)
	}
}

func TestListDueForWorkspaceFiltersTenants(t *testing.T) {
	s, _, now := newTestCallService(Config{Window: alwaysOpen()})
	ctx := context.Background()

	mine, _ := s.Schedule(ctx, "ws-a", "u", ScheduleRequest{EntryID: "e1", Type: TypeInitialScreen, PhoneNumber: "+447700900123"})
	_, _ = s.Schedule(ctx, "ws-b", "u", ScheduleRequest{EntryID: "e2", Type: TypeInitialScreen, PhoneNumber: "+447700900999"})

	due, err := s.ListDueForWorkspace(ctx, "ws-a", *now, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].ID != mine.ID {
		t.Fatalf("expected only ws-a's call, got %+v", due)
	}

	// The sweep's batch still spans workspaces.
	all, err := s.ListDue(ctx, *now, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("sweep batch should span workspaces, got %d", len(all))
	}
}

func TestWorkspaceIsolation(t *testing.T) {
	s, _, _ := newTestCallService(Config{Window: alwaysOpen()})
	ctx := context.Background()

	c, _ := s.Schedule(ctx, "ws-a", "u", ScheduleRequest{EntryID: "e", Type: TypeInitialScreen, PhoneNumber: "x"})
	if _, err := s.Get(ctx, "ws-b", c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-workspace read must be not found, got %v", err)
	}
	if _, err := s.RecordOutcome(ctx, "ws-b", c.ID, "u", OutcomeRequest{Outcome: OutcomeAnswered}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-workspace write must be not found, got %v", err)
	}
}
