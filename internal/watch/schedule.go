package watch

import "time"

// Schedule produces pass deadlines on a fixed grid anchored at the start
// time. Slow passes do not shift later deadlines.
type Schedule struct {
	next     time.Time
	interval time.Duration
}

// NewSchedule returns a schedule whose first deadline is start+interval.
func NewSchedule(start time.Time, interval time.Duration) *Schedule {
	return &Schedule{next: start.Add(interval), interval: interval}
}

// Deadline is the time the current wait should end.
func (s *Schedule) Deadline() time.Time { return s.next }

// Advance moves the deadline one interval past the previous deadline.
func (s *Schedule) Advance() { s.next = s.next.Add(s.interval) }
