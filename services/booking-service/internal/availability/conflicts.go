package availability

import (
	"iter"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Busy returns the intervals held by appointments. Canceled appointments hold nothing.
func Busy(appts []model.Appointment) []Interval {
	out := make([]Interval, 0, len(appts))
	for _, a := range appts {
		if !a.Occupies() {
			continue
		}
		iv := Interval{Start: a.StartTime, End: a.EndTime}
		if iv.Valid() {
			out = append(out, iv)
		}
	}
	return out
}

// FilterConflicts keeps the candidates that overlap none of busy.
func FilterConflicts(candidates iter.Seq[Slot], busy []Interval) []Slot {
	out := []Slot{}
	for s := range candidates {
		if !overlapsAny(s.Interval(), busy) {
			out = append(out, s)
		}
	}
	return out
}

func overlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}
