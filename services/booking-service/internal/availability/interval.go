package availability

import (
	"encoding/json"
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Slot is a bookable candidate. It is a value type; fields are fixed at construction.
type Slot struct {
	start time.Time
	end   time.Time
}

func NewSlot(start time.Time, d time.Duration) Slot {
	return Slot{start: start, end: start.Add(d)}
}

func (s Slot) Start() time.Time { return s.start }
func (s Slot) End() time.Time   { return s.end }

func (s Slot) Interval() Interval {
	return Interval{Start: s.start, End: s.end}
}

func (s Slot) String() string {
	return s.start.Format(time.RFC3339) + "/" + s.end.Format(time.RFC3339)
}

type slotJSON struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(slotJSON{
		StartTime: s.start.Format(time.RFC3339),
		EndTime:   s.end.Format(time.RFC3339),
	})
}

func (s *Slot) UnmarshalJSON(b []byte) error {
	var raw slotJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	start, err := time.Parse(time.RFC3339, raw.StartTime)
	if err != nil {
		return fmt.Errorf("slot start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, raw.EndTime)
	if err != nil {
		return fmt.Errorf("slot end: %w", err)
	}
	s.start, s.end = start, end
	return nil
}
