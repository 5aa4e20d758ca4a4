package calls

import (
	"context"
	"sort"
	"sync"
	"time"

	"recruit-platform/internal/events"
)

// MemoryStore is an in-memory Store for tests and local development.

type MemoryStore struct {
	mu     sync.Mutex
	calls  map[string]ScheduledCall
	logs   []CallLog
	events *events.MemoryRepo
}

func NewMemoryStore(evs *events.MemoryRepo) *MemoryStore {
	if evs == nil {
		evs = events.NewMemoryRepo()
	}
	return &MemoryStore{
		calls:  make(map[string]ScheduledCall),
		events: evs,
	}
}

func (s *MemoryStore) Events() *events.MemoryRepo { return s.events }

func (s *MemoryStore) Create(ctx context.Context, c ScheduledCall, ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calls[c.ID]; ok {
		return ErrConflict
	}
	s.calls[c.ID] = cloneCall(c)
	return s.events.Append(ctx, ev)
}

func (s *MemoryStore) Get(ctx context.Context, workspaceID, callID string) (ScheduledCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[callID]
	if !ok || c.WorkspaceID != workspaceID {
		return ScheduledCall{}, ErrNotFound
	}
	return cloneCall(c), nil
}

func (s *MemoryStore) Update(ctx context.Context, c ScheduledCall, expect CallStatus, ev *events.Event, lg *CallLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.calls[c.ID]
	if !ok || cur.WorkspaceID != c.WorkspaceID {
		return ErrNotFound
	}
	if cur.Status != expect {
		return ErrConflict
	}
	s.calls[c.ID] = cloneCall(c)
	if lg != nil {
		s.logs = append(s.logs, *lg)
	}
	if ev != nil {
		return s.events.Append(ctx, *ev)
	}
	return nil
}

func (s *MemoryStore) ListDue(ctx context.Context, now time.Time, limit int) ([]ScheduledCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ScheduledCall
	for _, c := range s.calls {
		if IsDue(c, now) {
			out = append(out, cloneCall(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ScheduledFor.Before(out[j].ScheduledFor)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListDueForWorkspace(ctx context.Context, workspaceID string, now time.Time, limit int) ([]ScheduledCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ScheduledCall
	for _, c := range s.calls {
		if c.WorkspaceID == workspaceID && IsDue(c, now) {
			out = append(out, cloneCall(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ScheduledFor.Before(out[j].ScheduledFor)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]ScheduledCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ScheduledCall
	for _, c := range s.calls {
		if c.Status == CallStatusInProgress && c.ClaimedAt != nil && c.ClaimedAt.Before(claimedBefore) {
			out = append(out, cloneCall(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListForEntry(ctx context.Context, workspaceID, entryID string) ([]ScheduledCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ScheduledCall
	for _, c := range s.calls {
		if c.WorkspaceID == workspaceID && c.EntryID == entryID {
			out = append(out, cloneCall(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CancelPendingForEntry(ctx context.Context, workspaceID, entryID string, now time.Time, ev events.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.calls {
		if c.WorkspaceID == workspaceID && c.EntryID == entryID && c.Status == CallStatusPending {
			c.Status = CallStatusCancelled
			c.UpdatedAt = now
			s.calls[id] = c
			n++
		}
	}
	if n > 0 {
		if err := s.events.Append(ctx, ev); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *MemoryStore) ListLogs(ctx context.Context, workspaceID, callID string) ([]CallLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CallLog
	for _, lg := range s.logs {
		if lg.WorkspaceID == workspaceID && lg.CallID == callID {
			out = append(out, lg)
		}
	}
	return out, nil
}

func cloneCall(c ScheduledCall) ScheduledCall {
	out := c
	out.LastAttemptAt = cloneTimePtr(c.LastAttemptAt)
	out.NextRetryAt = cloneTimePtr(c.NextRetryAt)
	out.ClaimedAt = cloneTimePtr(c.ClaimedAt)
	out.CompletedAt = cloneTimePtr(c.CompletedAt)
	return out
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
