package availability

import (
	"iter"
	"time"
)

// DefaultCadence is the spacing between candidate start times.
const DefaultCadence = 30 * time.Minute

// Candidates yields slots of length duration starting at win.Start and every cadence
// after it, stopping at the first slot that would end past win.End. The sequence is
// lazy and may be ranged over more than once.
func Candidates(win Interval, duration, cadence time.Duration) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if duration <= 0 || cadence <= 0 || !win.Valid() {
			return
		}
		for t := win.Start; !t.Add(duration).After(win.End); t = t.Add(cadence) {
			if !yield(NewSlot(t, duration)) {
				return
			}
		}
	}
}

// NotBefore drops slots that start before t.
func NotBefore(seq iter.Seq[Slot], t time.Time) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		for s := range seq {
			if s.Start().Before(t) {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}
