package placement

import (
	"recruit-platform/internal/calls"
	"recruit-platform/internal/pipeline"
)

// outcomeTransitions maps call type + outcome to the pipeline status the
// outcome implies. The mapping is a fixed lookup, not inferred; outcomes
// absent from it never move the pipeline.
var outcomeTransitions = map[calls.CallType]map[string]pipeline.Status{
	calls.TypeInitialScreen: {
		calls.OutcomeAvailable:         pipeline.StatusAvailable,
		calls.OutcomeNotInterested:     pipeline.StatusNotInterested,
		calls.OutcomeCallbackRequested: pipeline.StatusCallbackScheduled,
	},
	calls.TypeAvailabilityCheck: {
		calls.OutcomeAvailable:     pipeline.StatusAvailable,
		calls.OutcomeNotInterested: pipeline.StatusNotInterested,
	},
	calls.TypeInterviewConfirm: {
		calls.OutcomeConfirmed: pipeline.StatusInterviewConfirmed,
	},
}

// statusCallTriggers names the call the orchestrator schedules when an entry
// enters a status that requires outbound contact.
var statusCallTriggers = map[pipeline.Status]calls.CallType{
	pipeline.StatusCalling:            calls.TypeInitialScreen,
	pipeline.StatusInterviewScheduled: calls.TypeInterviewConfirm,
}

// statusForOutcome resolves the pipeline status implied by a recorded call,
// if any. A terminally failed screen call (retry budget exhausted) implies
// no_answer for an entry still in calling.
func statusForOutcome(c calls.ScheduledCall, outcome string, entryStatus pipeline.Status) (pipeline.Status, bool) {
	if c.Status == calls.CallStatusFailed && entryStatus == pipeline.StatusCalling {
		return pipeline.StatusNoAnswer, true
	}
	if m, ok := outcomeTransitions[c.Type]; ok {
		if to, ok := m[outcome]; ok {
			return to, true
		}
	}
	return "", false
}
