package grid

import (
	"errors"
	"fmt"
	"time"

	"monthgrid/internal/calmath"
)

// ErrInvertedRange is returned when a range's start falls after its end.
// It is a configuration fault: the bounds are never swapped silently.
var ErrInvertedRange = errors.New("grid: range start is after end")

// Range is the span of dates a grid covers. Start and End are stored as UTC
// calendar days; End is inclusive.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange normalizes start and end to calendar days and validates order.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: calmath.Day(start), End: calmath.Day(end)}
	if r.Start.After(r.End) {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrInvertedRange,
			r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	}
	return r, nil
}

// MustRange is NewRange for literals known to be valid. It panics otherwise.
func MustRange(start, end time.Time) Range {
	r, err := NewRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// FirstMonth is the 1st of the month containing Start; section 0 starts here.
func (r Range) FirstMonth() time.Time {
	return calmath.FirstDayOfMonth(r.Start)
}

// LastDay is the last day of the month containing End.
func (r Range) LastDay() time.Time {
	return calmath.LastDayOfMonth(r.End)
}

// SectionCount is the number of month sections, counting both boundary
// months. A range inside a single month yields 1.
func (r Range) SectionCount() int {
	return calmath.MonthDistance(r.FirstMonth(), calmath.FirstDayOfMonth(r.End)) + 1
}

// Covers reports whether the day of t lies inside the months the grid draws,
// i.e. between FirstMonth and LastDay inclusive.
func (r Range) Covers(t time.Time) bool {
	d := calmath.Day(t)
	return !d.Before(r.FirstMonth()) && !d.After(r.LastDay())
}

// Contains reports whether the day of t lies between Start and End inclusive.
func (r Range) Contains(t time.Time) bool {
	d := calmath.Day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r Range) String() string {
	return r.Start.Format(time.DateOnly) + ".." + r.End.Format(time.DateOnly)
}
