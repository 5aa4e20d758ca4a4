package pipeline

// Status is the placement pipeline stage of an entry.
//
// The transition table below is the single source of truth for legality.
// No other component may special-case status values; callers consult
// Service.ValidNextFor (or CanTransition in-package) instead.

type Status string

const (
	StatusNew                    Status = "new"
	StatusCalling                Status = "calling"
	StatusAvailable              Status = "available"
	StatusNoAnswer               Status = "no_answer"
	StatusNotInterested          Status = "not_interested"
	StatusCallbackScheduled      Status = "callback_scheduled"
	StatusNotNow                 Status = "not_now"
	StatusMatched                Status = "matched"
	StatusCVSent                 Status = "cv_sent"
	StatusClientApproved         Status = "client_approved"
	StatusTermsSentClient        Status = "terms_sent_client"
	StatusTermsAcceptedClient    Status = "terms_accepted_client"
	StatusTermsSentCandidate     Status = "terms_sent_candidate"
	StatusTermsAcceptedCandidate Status = "terms_accepted_candidate"
	StatusInterviewScheduling    Status = "interview_scheduling"
	StatusInterviewScheduled     Status = "interview_scheduled"
	StatusInterviewConfirmed     Status = "interview_confirmed"
	StatusInterviewCompleted     Status = "interview_completed"
	StatusPlaced                 Status = "placed"
	StatusRejected               Status = "rejected"
	StatusCancelled              Status = "cancelled"
)

// transitions is the compiled adjacency list of legal status changes.
// A status with no entry (or an empty list) is terminal.
var transitions = map[Status][]Status{
	StatusNew:                    {StatusCalling},
	StatusCalling:                {StatusAvailable, StatusNoAnswer, StatusNotInterested, StatusCallbackScheduled},
	StatusNoAnswer:               {StatusCalling, StatusAvailable, StatusNotInterested},
	StatusCallbackScheduled:      {StatusCalling, StatusAvailable, StatusNotInterested},
	StatusAvailable:              {StatusMatched, StatusNotNow},
	StatusNotNow:                 {StatusCalling, StatusAvailable},
	StatusMatched:                {StatusCVSent},
	StatusCVSent:                 {StatusClientApproved, StatusRejected},
	StatusClientApproved:         {StatusTermsSentClient},
	StatusTermsSentClient:        {StatusTermsAcceptedClient, StatusRejected},
	StatusTermsAcceptedClient:    {StatusTermsSentCandidate},
	StatusTermsSentCandidate:     {StatusTermsAcceptedCandidate, StatusRejected},
	StatusTermsAcceptedCandidate: {StatusInterviewScheduling},
	StatusInterviewScheduling:    {StatusInterviewScheduled, StatusRejected},
	StatusInterviewScheduled:     {StatusInterviewConfirmed, StatusCancelled},
	StatusInterviewConfirmed:     {StatusInterviewCompleted, StatusCancelled},
	StatusInterviewCompleted:     {StatusPlaced, StatusRejected},
	StatusNotInterested:          {},
	StatusPlaced:                 {},
	StatusRejected:               {},
	StatusCancelled:              {},
}

// Valid reports whether s is a member of the status enumeration.
func Valid(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// ValidNext returns the legal target statuses from s.
// The returned slice is a copy; callers may not mutate the table.
func ValidNext(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is an edge in the table.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing edges.
func IsTerminal(s Status) bool {
	return Valid(s) && len(transitions[s]) == 0
}
