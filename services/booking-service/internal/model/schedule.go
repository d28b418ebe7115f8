package model

import "time"

const MinutesPerDay = 24 * 60

// ScheduleEntry is either a weekly rule (DayOfWeek set) or a date override (Date set).
// StartMinute and EndMinute are minutes after local midnight.
type ScheduleEntry struct {
	ID          string
	StaffID     string
	DayOfWeek   *time.Weekday
	Date        *time.Time // calendar date; the location is ignored
	StartMinute int
	EndMinute   int
	IsAvailable bool
	UpdatedAt   time.Time
}

func (e ScheduleEntry) IsOverride() bool {
	return e.Date != nil
}

// OnDate reports whether an override entry applies to the calendar date of day.
func (e ScheduleEntry) OnDate(day time.Time) bool {
	if e.Date == nil {
		return false
	}
	y1, m1, d1 := e.Date.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (e ScheduleEntry) OnWeekday(wd time.Weekday) bool {
	return e.Date == nil && e.DayOfWeek != nil && *e.DayOfWeek == wd
}
