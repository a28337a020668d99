package reservation

import "time"

// Overlaps reports whether [s1, e1] and [s2, e2] intersect. Touching endpoints
// count as overlapping: a session ending at 17:00 blocks one starting at 17:00.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return !s1.After(e2) && !s2.After(e1)
}

// RemainingCapacity returns how many units are still free for the window
// [start, start+duration) given the existing reservations. Cancelled
// reservations are ignored. The result is never negative.
func RemainingCapacity(existing []*Reservation, start time.Time, duration time.Duration, capacity int) int {
	end := start.Add(duration)
	used := 0
	for _, r := range existing {
		if r.Status() == StatusCancelled {
			continue
		}
		if Overlaps(start, end, r.StartTime(), r.EndTime()) {
			used += r.Quantity()
		}
	}
	return max(0, capacity-used)
}
