// Package calmath holds the pure date arithmetic behind the month grid.
//
// Every function normalizes its input to UTC midnight first. The grid never
// looks at wall-clock hours, so working in a fixed zone keeps DST transitions
// from shifting a date onto its neighbour.
package calmath

import "time"

// DaysPerWeek is the number of day slots in one grid row.
const DaysPerWeek = 7

// Day truncates t to midnight of its calendar day, expressed in UTC.
// The calendar day is read in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FirstDayOfMonth returns the 1st of t's month.
func FirstDayOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// LastDayOfMonth returns the last calendar day of t's month.
func LastDayOfMonth(t time.Time) time.Time {
	return FirstDayOfMonth(t).AddDate(0, 0, DaysInMonth(t)-1)
}

// DaysInMonth returns the number of days in t's month, leap years included.
func DaysInMonth(t time.Time) int {
	y, m, _ := t.Date()
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WeekdayIndex maps t's weekday onto a Monday-first index in [0,6].
// It ignores the host locale on purpose.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % DaysPerWeek
}

// MonthDistance counts whole calendar months from the month of from to the
// month of to. Day and time are ignored; the result is negative when to
// falls in an earlier month.
func MonthDistance(from, to time.Time) int {
	fy, fm, _ := from.Date()
	ty, tm, _ := to.Date()
	return (ty-fy)*12 + int(tm-fm)
}

// AddMonths moves t by n calendar months and returns the 1st of the
// resulting month. Clamping to the 1st avoids time.AddDate overflow, where
// Jan 31 + 1 month lands in March.
func AddMonths(t time.Time, n int) time.Time {
	return FirstDayOfMonth(t).AddDate(0, n, 0)
}

// AddMonthsClamped moves t by n months keeping its day of month, clamped to
// the last day of the target month (Jan 31 + 1 month is Feb 28/29).
func AddMonthsClamped(t time.Time, n int) time.Time {
	first := AddMonths(t, n)
	day := Day(t).Day()
	if last := DaysInMonth(first); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}
