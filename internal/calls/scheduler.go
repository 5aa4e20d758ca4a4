package calls

import "time"

// Window is the daily [OpenHour, CloseHour) local-time interval during which
// calls may be attempted or retried. All arithmetic is zoned; no string
// round-trips.
type Window struct {
	OpenHour  int
	CloseHour int
	Loc       *time.Location
}

// Contains reports whether t falls inside the window on its calendar day.
func (w Window) Contains(t time.Time) bool {
	h := t.In(w.loc()).Hour()
	return h >= w.OpenHour && h < w.CloseHour
}

// Next clamps t into the business window:
// - before open: open the same day
// - at or after close: open the next day
// - otherwise: t unchanged
//
// This guarantees a retry bumped past close rolls to the next morning rather
// than landing outside the window.
func (w Window) Next(t time.Time) time.Time {
	local := t.In(w.loc())
	open := time.Date(local.Year(), local.Month(), local.Day(), w.OpenHour, 0, 0, 0, w.loc())
	if local.Before(open) {
		return open
	}
	close := time.Date(local.Year(), local.Month(), local.Day(), w.CloseHour, 0, 0, 0, w.loc())
	if !local.Before(close) {
		return open.AddDate(0, 0, 1)
	}
	return local
}

func (w Window) loc() *time.Location {
	if w.Loc == nil {
		return time.UTC
	}
	return w.Loc
}

// IsDue reports whether a call is eligible to run at now: it must be pending
// and its scheduled time must have arrived.
func IsDue(c ScheduledCall, now time.Time) bool {
	return c.Status == CallStatusPending && !c.ScheduledFor.After(now)
}
