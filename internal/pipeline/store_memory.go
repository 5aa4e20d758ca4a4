package pipeline

import (
	"context"
	"sync"
	"time"

	"recruit-platform/internal/events"
)

// MemoryStore is an in-memory Store for tests and local development.
// It shares the events.MemoryRepo given at construction so tests can assert
// on the full event stream.

type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	events  *events.MemoryRepo
}

func NewMemoryStore(evs *events.MemoryRepo) *MemoryStore {
	if evs == nil {
		evs = events.NewMemoryRepo()
	}
	return &MemoryStore{
		entries: make(map[string]Entry),
		events:  evs,
	}
}

func (s *MemoryStore) Events() *events.MemoryRepo { return s.events }

func (s *MemoryStore) CreateEntry(ctx context.Context, e Entry, ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; ok {
		return ErrConflict
	}
	s.entries[e.ID] = cloneEntry(e)
	return s.events.Append(ctx, ev)
}

func (s *MemoryStore) GetEntry(ctx context.Context, workspaceID, entryID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.WorkspaceID != workspaceID {
		return Entry{}, ErrNotFound
	}
	return cloneEntry(e), nil
}

func (s *MemoryStore) FindOpenUnmatched(ctx context.Context, workspaceID, candidateID string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best Entry
	found := false
	for _, e := range s.entries {
		if e.WorkspaceID != workspaceID || e.CandidateID != candidateID {
			continue
		}
		if IsTerminal(e.Status) || e.ClientID != "" {
			continue
		}
		if !found || e.CreatedAt.Before(best.CreatedAt) {
			best = e
			found = true
		}
	}
	if !found {
		return Entry{}, false, nil
	}
	return cloneEntry(best), true, nil
}

func (s *MemoryStore) UpdateEntry(ctx context.Context, e Entry, expect Status, ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[e.ID]
	if !ok || cur.WorkspaceID != e.WorkspaceID {
		return ErrNotFound
	}
	if cur.Status != expect {
		return ErrConflict
	}
	s.entries[e.ID] = cloneEntry(e)
	return s.events.Append(ctx, ev)
}

func cloneEntry(e Entry) Entry {
	out := e
	if e.StageTimes != nil {
		out.StageTimes = make(map[Status]time.Time, len(e.StageTimes))
		for k, v := range e.StageTimes {
			out.StageTimes[k] = v
		}
	}
	if e.RightToWork != nil {
		v := *e.RightToWork
		out.RightToWork = &v
	}
	if e.CommuteMinutes != nil {
		v := *e.CommuteMinutes
		out.CommuteMinutes = &v
	}
	return out
}
