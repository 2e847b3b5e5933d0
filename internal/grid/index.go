// Package grid maps calendar dates onto a virtualized month grid and back.
//
// A grid is a list of sections, one per month of a Range. Every section has
// DaysPerRow*RowsPerSection slots whatever the month's actual shape, so a
// month never needs a relayout while scrolling. Slots before the 1st and
// after the last day are padding: valid addresses without a date.
package grid

import (
	"time"

	"monthgrid/internal/calmath"
)

// Fixed grid geometry. Changing these is a recompile, not a setting.
const (
	DaysPerRow      = calmath.DaysPerWeek
	RowsPerSection  = 6
	SlotsPerSection = DaysPerRow * RowsPerSection
)

type monthEntry struct {
	info MonthInfo
	ok   bool
}

// Index resolves addresses for one Range and caches MonthInfo per section.
// The cache is filled lazily the first time a section is touched. Index is
// not safe for concurrent use; callers mutate it from a single goroutine.
type Index struct {
	rng    Range
	months []monthEntry
}

// NewIndex builds an empty index over r.
func NewIndex(r Range) *Index {
	return &Index{rng: r}
}

// Range returns the range the index covers.
func (ix *Index) Range() Range { return ix.rng }

// Reset replaces the range and drops every cached MonthInfo.
func (ix *Index) Reset(r Range) {
	ix.rng = r
	ix.months = ix.months[:0]
}

// Invalidate drops the MonthInfo cache while keeping the range.
func (ix *Index) Invalidate() {
	ix.months = ix.months[:0]
}

// SectionCount is recomputed from the range on every call.
func (ix *Index) SectionCount() int {
	return ix.rng.SectionCount()
}

// ItemCount returns SlotsPerSection for a valid section and 0 otherwise.
// It touches the section, so its MonthInfo is cached afterwards.
func (ix *Index) ItemCount(section int) int {
	if _, ok := ix.MonthInfo(section); !ok {
		return 0
	}
	return SlotsPerSection
}

// MonthStart returns the 1st of the month shown by section.
func (ix *Index) MonthStart(section int) (time.Time, bool) {
	if section < 0 || section >= ix.SectionCount() {
		return time.Time{}, false
	}
	return calmath.AddMonths(ix.rng.FirstMonth(), section), true
}

// MonthInfo returns the layout of section, computing and caching it on first
// access. It reports false for sections outside [0, SectionCount).
func (ix *Index) MonthInfo(section int) (MonthInfo, bool) {
	if mi, ok := ix.Cached(section); ok {
		return mi, true
	}
	first, ok := ix.MonthStart(section)
	if !ok {
		return MonthInfo{}, false
	}
	mi := MonthInfo{
		FirstWeekdaySlot: calmath.WeekdayIndex(first),
		DaysInMonth:      calmath.DaysInMonth(first),
	}
	for len(ix.months) <= section {
		ix.months = append(ix.months, monthEntry{})
	}
	ix.months[section] = monthEntry{info: mi, ok: true}
	return mi, true
}

// Cached returns the MonthInfo of section only if it was computed already.
func (ix *Index) Cached(section int) (MonthInfo, bool) {
	if section < 0 || section >= len(ix.months) || !ix.months[section].ok {
		return MonthInfo{}, false
	}
	return ix.months[section].info, true
}

// AddressForDate maps date to its cell. It reports false when the date is
// outside the drawn months or its section has not been touched yet; use
// Locate to compute the section on demand.
func (ix *Index) AddressForDate(date time.Time) (Address, bool) {
	if !ix.rng.Covers(date) {
		return Address{}, false
	}
	d := calmath.Day(date)
	section := calmath.MonthDistance(ix.rng.FirstMonth(), d)
	mi, ok := ix.Cached(section)
	if !ok {
		return Address{}, false
	}
	return Address{Section: section, Slot: d.Day() - 1 + mi.FirstWeekdaySlot}, true
}

// Locate is AddressForDate that touches the date's section first.
func (ix *Index) Locate(date time.Time) (Address, bool) {
	if !ix.rng.Covers(date) {
		return Address{}, false
	}
	ix.MonthInfo(calmath.MonthDistance(ix.rng.FirstMonth(), calmath.Day(date)))
	return ix.AddressForDate(date)
}

// DateForAddress is the inverse of AddressForDate. Padding slots and
// sections without cached MonthInfo resolve to false.
func (ix *Index) DateForAddress(a Address) (time.Time, bool) {
	mi, ok := ix.Cached(a.Section)
	if !ok {
		return time.Time{}, false
	}
	day := a.Slot - mi.FirstWeekdaySlot
	if day < 0 || day >= mi.DaysInMonth {
		return time.Time{}, false
	}
	first, _ := ix.MonthStart(a.Section)
	return first.AddDate(0, 0, day), true
}

// DateAt is DateForAddress that touches the address's section first.
func (ix *Index) DateAt(a Address) (time.Time, bool) {
	if _, ok := ix.MonthInfo(a.Section); !ok {
		return time.Time{}, false
	}
	return ix.DateForAddress(a)
}
