package utils

import (
	"time"
)

// MonthBounds returns the first and last instant of the calendar month containing t, in UTC.
// The upper bound is exclusive (first instant of the next month).
func MonthBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)
	return first, next
}

// SamePeriod reports whether a and b fall in the same calendar month
func SamePeriod(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}
