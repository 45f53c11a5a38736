package workflow

import (
	"time"
)

// DeadlinePolicy computes the admin planning deadline from the moment a
// vendor accepted an order.
type DeadlinePolicy interface {
	PlanBy(acceptedAt int64) int64
}

// FlatPolicy adds a fixed wall-clock window.
type FlatPolicy struct {
	Window time.Duration
}

func (p FlatPolicy) PlanBy(acceptedAt int64) int64 {
	return acceptedAt + p.Window.Milliseconds()
}

// BusinessHoursPolicy counts only time inside [Start, End) o'clock on
// working days in Location.
type BusinessHoursPolicy struct {
	Window   time.Duration
	Start    int
	End      int
	Days     map[time.Weekday]bool
	Location *time.Location
}

// NewBusinessHoursPolicy falls back to a flat window when the calendar is
// unusable.
func NewBusinessHoursPolicy(window time.Duration, start, end int, days []time.Weekday, tz string) DeadlinePolicy {
	loc, err := time.LoadLocation(tz)
	if err != nil || start < 0 || end > 24 || start >= end || len(days) == 0 {
		return FlatPolicy{Window: window}
	}
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return BusinessHoursPolicy{Window: window, Start: start, End: end, Days: set, Location: loc}
}

// maxCalendarDays bounds the scan for a working day.
const maxCalendarDays = 370

func (p BusinessHoursPolicy) PlanBy(acceptedAt int64) int64 {
	t := time.UnixMilli(acceptedAt).In(p.Location)
	remaining := p.Window

	for i := 0; i < maxCalendarDays; i++ {
		dayStart := time.Date(t.Year(), t.Month(), t.Day(), p.Start, 0, 0, 0, p.Location)
		dayEnd := time.Date(t.Year(), t.Month(), t.Day(), p.End, 0, 0, 0, p.Location)

		if !p.Days[t.Weekday()] || !t.Before(dayEnd) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, p.Start, 0, 0, 0, p.Location)
			continue
		}
		if t.Before(dayStart) {
			t = dayStart
		}

		available := dayEnd.Sub(t)
		if remaining <= available {
			return t.Add(remaining).UnixMilli()
		}
		remaining -= available
		t = time.Date(t.Year(), t.Month(), t.Day()+1, p.Start, 0, 0, 0, p.Location)
	}

	return acceptedAt + p.Window.Milliseconds()
}
