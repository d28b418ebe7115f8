package availability

import (
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// EffectiveWindow resolves the hours one staff member works on day, where day is
// midnight of the target date in the salon's location. A date override replaces the
// weekly rule entirely; an unavailable override closes the day. When the store holds
// duplicates, the most recently updated entry wins and ties go to the later entry.
func EffectiveWindow(day time.Time, entries []model.ScheduleEntry) (Interval, bool) {
	var override, weekly *model.ScheduleEntry
	wd := day.Weekday()
	for i := range entries {
		e := &entries[i]
		switch {
		case e.OnDate(day):
			if supersedes(e, override) {
				override = e
			}
		case e.OnWeekday(wd):
			if supersedes(e, weekly) {
				weekly = e
			}
		}
	}

	chosen := override
	if chosen == nil {
		chosen = weekly
	}
	if chosen == nil || !chosen.IsAvailable {
		return Interval{}, false
	}

	win := Interval{Start: atMinute(day, chosen.StartMinute), End: atMinute(day, chosen.EndMinute)}
	if !win.Valid() {
		return Interval{}, false
	}
	return win, true
}

func supersedes(candidate, current *model.ScheduleEntry) bool {
	return current == nil || !candidate.UpdatedAt.Before(current.UpdatedAt)
}

// atMinute places a time of day on day's calendar date in day's location.
func atMinute(day time.Time, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, day.Location())
}

// GroupByStaff buckets entries per staff member, preserving input order.
func GroupByStaff(entries []model.ScheduleEntry) map[string][]model.ScheduleEntry {
	out := make(map[string][]model.ScheduleEntry)
	for _, e := range entries {
		out[e.StaffID] = append(out[e.StaffID], e)
	}
	return out
}

// StartOfDay returns midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
