// Package schedule computes when the next action is allowed relative to the
// account's daily activity windows.
package schedule

import "time"

// NextActive returns the earliest time at or after now that falls inside one
// of the [start,end) hour windows. Past today's last window it rolls to
// tomorrow's first; with no windows at all, now is returned unchanged.
// Windows are assumed sorted by start hour.
func NextActive(now time.Time, windows [][2]int) time.Time {
	if len(windows) == 0 {
		return now
	}
	h := now.Hour()
	for _, w := range windows {
		if h >= w[0] && h < w[1] {
			return now
		}
		if h < w[0] {
			return time.Date(now.Year(), now.Month(), now.Day(), w[0], 0, 0, 0, now.Location())
		}
	}
	next := now.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), windows[0][0], 0, 0, 0, now.Location())
}

// InWindow reports whether t falls inside any window.
func InWindow(t time.Time, windows [][2]int) bool {
	h := t.Hour()
	for _, w := range windows {
		if h >= w[0] && h < w[1] {
			return true
		}
	}
	return false
}
