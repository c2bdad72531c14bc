// Package salesexport turns completed ERP sales orders into the weekly
// order report.
package salesexport

import (
	"fmt"
	"time"
)

// DefaultOffsetWeeks is how far behind the current ISO week the default
// reporting week lies. Positions are only completed after delivery, so the
// most recent week is still incomplete.
const DefaultOffsetWeeks = 2

// Window is an inclusive range of calendar days. Start and End are
// midnight UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to its calendar day at midnight UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewWindow builds a window over the calendar days of start and end
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: Day(start), End: Day(end)}
	if w.End.Before(w.Start) {
		return Window{}, fmt.Errorf("salesexport: window end %s is before start %s", w.End.Format(time.DateOnly), w.Start.Format(time.DateOnly))
	}
	return w, nil
}

// ReportingWindow returns Monday to Sunday of the ISO week offsetWeeks
// before the week containing ref.
func ReportingWindow(ref time.Time, offsetWeeks int) Window {
	day := Day(ref)
	sinceMonday := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -sinceMonday-7*offsetWeeks)
	return Window{Start: start, End: start.AddDate(0, 0, 6)}
}

// ResolveWindow fills in a missing bound: a lone start or end spans seven
// days, and no bounds at all selects the reporting week for now.
func ResolveWindow(start, end *time.Time, now time.Time, offsetWeeks int) (Window, error) {
	switch {
	case start != nil && end != nil:
		return NewWindow(*start, *end)
	case start != nil:
		return NewWindow(*start, start.AddDate(0, 0, 6))
	case end != nil:
		return NewWindow(end.AddDate(0, 0, -6), *end)
	default:
		return ReportingWindow(now, offsetWeeks), nil
	}
}

// Contains reports whether t falls on a day inside the window. A zero t
// counts as inside, since undated records cannot be excluded by date.
func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	d := Day(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) String() string {
	return w.Start.Format(time.DateOnly) + ".." + w.End.Format(time.DateOnly)
}
