package pipeline

import (
	"fmt"
	"time"

	"recruit-platform/internal/events"
)

// ReplayResult is the entry state reconstructed from its event stream.
type ReplayResult struct {
	Status          Status
	StatusUpdatedAt time.Time
	StageTimes      map[Status]time.Time
}

// Replay folds an entry's events, in creation order, back into its status and
// stage timestamps. It fails on a malformed stream: missing creation event,
// an edge not present in the transition table, or a from_status that does not
// match the running state.
//
// The audit guarantee rests on this: a stored entry whose replay disagrees
// with its row indicates a mutation that bypassed the state machine.
func Replay(evs []events.Event) (ReplayResult, error) {
	if len(evs) == 0 {
		return ReplayResult{}, fmt.Errorf("replay: empty event stream")
	}
	if evs[0].Type != events.TypeEntryCreated {
		return ReplayResult{}, fmt.Errorf("replay: stream does not begin with %s", events.TypeEntryCreated)
	}

	cur := Status(evs[0].ToStatus)
	if !Valid(cur) {
		return ReplayResult{}, fmt.Errorf("replay: unknown initial status %q", evs[0].ToStatus)
	}
	out := ReplayResult{
		Status:          cur,
		StatusUpdatedAt: evs[0].CreatedAt,
		StageTimes:      map[Status]time.Time{cur: evs[0].CreatedAt},
	}

	for _, ev := range evs[1:] {
		if ev.Type != events.TypeStatusChange {
			continue
		}
		from, to := Status(ev.FromStatus), Status(ev.ToStatus)
		if from != out.Status {
			return ReplayResult{}, fmt.Errorf("replay: event %s claims from=%q but state is %q", ev.ID, from, out.Status)
		}
		if !CanTransition(from, to) {
			return ReplayResult{}, fmt.Errorf("replay: illegal edge %q -> %q in event %s", from, to, ev.ID)
		}
		out.Status = to
		out.StatusUpdatedAt = ev.CreatedAt
		if _, ok := out.StageTimes[to]; !ok {
			out.StageTimes[to] = ev.CreatedAt
		}
	}
	return out, nil
}
