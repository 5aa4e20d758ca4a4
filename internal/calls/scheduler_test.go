package calls

import (
	"testing"
	"time"
)

func london(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return loc
}

func TestWindowNextClampsIntoBusinessHours(t *testing.T) {
	loc := london(t)
	w := Window{OpenHour: 9, CloseHour: 21, Loc: loc}

	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "inside window unchanged",
			in:   time.Date(2025, 6, 10, 14, 30, 0, 0, loc),
			want: time.Date(2025, 6, 10, 14, 30, 0, 0, loc),
		},
		{
			name: "before open moves to open same day",
			in:   time.Date(2025, 6, 10, 7, 15, 0, 0, loc),
			want: time.Date(2025, 6, 10, 9, 0, 0, 0, loc),
		},
		{
			name: "at close rolls to next morning",
			in:   time.Date(2025, 6, 10, 21, 0, 0, 0, loc),
			want: time.Date(2025, 6, 11, 9, 0, 0, 0, loc),
		},
		{
			name: "after close rolls to next morning",
			in:   time.Date(2025, 6, 10, 21, 15, 0, 0, loc),
			want: time.Date(2025, 6, 11, 9, 0, 0, 0, loc),
		},
		{
			name: "just past midnight waits for open",
			in:   time.Date(2025, 6, 10, 0, 30, 0, 0, loc),
			want: time.Date(2025, 6, 10, 9, 0, 0, 0, loc),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := w.Next(tc.in)
			if !got.Equal(tc.want) {
				t.Fatalf("Next(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestWindowRetryBumpPastCloseRollsOver(t *testing.T) {
	loc := london(t)
	w := Window{OpenHour: 9, CloseHour: 21, Loc: loc}

	// A call queued at 20:45 bumped by 30 minutes lands at 21:15, which is
	// outside the window; it must roll to 09:00 the next day, not run at
	// 21:15 the same night.
	queued := time.Date(2025, 6, 10, 20, 45, 0, 0, loc)
	got := w.Next(queued.Add(30 * time.Minute))
	want := time.Date(2025, 6, 11, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("retry landed at %v, want %v", got, want)
	}
	if !w.Contains(got) {
		t.Fatalf("clamped retry must be inside the window")
	}
}

func TestWindowContainsBoundaries(t *testing.T) {
	loc := london(t)
	w := Window{OpenHour: 9, CloseHour: 21, Loc: loc}

	if !w.Contains(time.Date(2025, 6, 10, 9, 0, 0, 0, loc)) {
		t.Fatalf("open hour is inside the window")
	}
	if w.Contains(time.Date(2025, 6, 10, 21, 0, 0, 0, loc)) {
		t.Fatalf("close hour is outside the window")
	}
	if !w.Contains(time.Date(2025, 6, 10, 20, 59, 0, 0, loc)) {
		t.Fatalf("last minute before close is inside the window")
	}
}

func TestWindowNextIsZoneAware(t *testing.T) {
	loc := london(t)
	w := Window{OpenHour: 9, CloseHour: 21, Loc: loc}

	// 20:30 UTC in June is 21:30 London (BST): past close locally even
	// though it reads inside the window in UTC.
	in := time.Date(2025, 6, 10, 20, 30, 0, 0, time.UTC)
	got := w.Next(in)
	want := time.Date(2025, 6, 11, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("Next(%v) = %v, want %v", in, got, want)
	}
}

func TestIsDue(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

	c := ScheduledCall{Status: CallStatusPending, ScheduledFor: now.Add(-time.Minute)}
	if !IsDue(c, now) {
		t.Fatalf("pending call past its scheduled time is due")
	}
	c.ScheduledFor = now
	if !IsDue(c, now) {
		t.Fatalf("pending call at its scheduled time is due")
	}
	c.ScheduledFor = now.Add(time.Minute)
	if IsDue(c, now) {
		t.Fatalf("future call is not due")
	}
	c.ScheduledFor = now.Add(-time.Minute)
	c.Status = CallStatusInProgress
	if IsDue(c, now) {
		t.Fatalf("claimed call is not due")
	}
	c.Status = CallStatusCancelled
	if IsDue(c, now) {
		t.Fatalf("cancelled call is not due")
	}
}
