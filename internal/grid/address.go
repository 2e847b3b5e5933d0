package grid

import "strconv"

// Address identifies one cell: Section is the month offset from the range's
// first month, Slot the position inside that month's fixed 42-cell block.
type Address struct {
	Section int
	Slot    int
}

// Less orders addresses lexicographically by (Section, Slot).
func (a Address) Less(b Address) bool {
	if a.Section != b.Section {
		return a.Section < b.Section
	}
	return a.Slot < b.Slot
}

func (a Address) String() string {
	return "(" + strconv.Itoa(a.Section) + "," + strconv.Itoa(a.Slot) + ")"
}

// MonthInfo is the layout metadata of one month section.
type MonthInfo struct {
	// FirstWeekdaySlot is the Monday-first weekday of the 1st, in [0,6].
	FirstWeekdaySlot int
	// DaysInMonth is in [28,31].
	DaysInMonth int
}

// InMonth reports whether slot holds a day of the month rather than padding.
func (mi MonthInfo) InMonth(slot int) bool {
	return slot >= mi.FirstWeekdaySlot && slot < mi.FirstWeekdaySlot+mi.DaysInMonth
}

// DayNumber returns the 1-based day of month shown in slot.
func (mi MonthInfo) DayNumber(slot int) (int, bool) {
	if !mi.InMonth(slot) {
		return 0, false
	}
	return slot - mi.FirstWeekdaySlot + 1, true
}
