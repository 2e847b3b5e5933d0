package events

import (
	"testing"
	"time"

	"monthgrid/internal/grid"
	"monthgrid/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newGrid(t *testing.T) *grid.Index {
	t.Helper()
	r, err := grid.NewRange(day(2024, time.January, 1), day(2024, time.March, 31))
	if err != nil {
		t.Fatal(err)
	}
	return grid.NewIndex(r)
}

func TestRebuildDropsEventsOutsideGrid(t *testing.T) {
	g := newGrid(t)
	red := model.MustColor("#FF0000")
	evs := []*model.CalendarEvent{
		model.NewEvent("before", day(2023, time.December, 31).Add(10*time.Hour), day(2023, time.December, 31).Add(11*time.Hour), red),
		model.NewEvent("after", day(2024, time.April, 1), day(2024, time.April, 2), red),
	}

	ix := NewIndex()
	if n := ix.Rebuild(evs, g.Locate); n != 0 {
		t.Fatalf("kept %d events, want 0", n)
	}
	for s := 0; s < g.SectionCount(); s++ {
		for slot := 0; slot < grid.SlotsPerSection; slot++ {
			if got := ix.EventsAt(grid.Address{Section: s, Slot: slot}); len(got) != 0 {
				t.Fatalf("events at (%d,%d): %v", s, slot, got)
			}
		}
	}
}

func TestRebuildKeepsInputOrderPerDay(t *testing.T) {
	g := newGrid(t)
	blue := model.MustColor("#0000FF")
	first := model.NewEvent("standup", day(2024, time.February, 14).Add(9*time.Hour), day(2024, time.February, 14).Add(10*time.Hour), blue)
	other := model.NewEvent("other day", day(2024, time.February, 15), day(2024, time.February, 16), blue)
	second := model.NewEvent("dinner", day(2024, time.February, 14).Add(19*time.Hour), day(2024, time.February, 14).Add(21*time.Hour), blue)

	ix := NewIndex()
	ix.Rebuild([]*model.CalendarEvent{first, other, second}, g.Locate)

	a, _ := g.Locate(day(2024, time.February, 14))
	got := ix.EventsAt(a)
	if len(got) != 2 || got[0] != first || got[1] != second {
		t.Fatalf("EventsAt(%v) = %v", a, got)
	}
	if ix.Len() != 3 {
		t.Errorf("Len = %d, want 3", ix.Len())
	}
}

func TestRebuildReplacesPreviousGrouping(t *testing.T) {
	g := newGrid(t)
	c := model.MustColor("#00FF00")
	ev := model.NewEvent("x", day(2024, time.January, 5), day(2024, time.January, 5), c)

	ix := NewIndex()
	ix.Rebuild([]*model.CalendarEvent{ev}, g.Locate)
	ix.Rebuild(nil, g.Locate)

	a, _ := g.Locate(day(2024, time.January, 5))
	if got := ix.EventsAt(a); len(got) != 0 {
		t.Errorf("stale events after rebuild: %v", got)
	}
}

func TestZeroIndexIsUsable(t *testing.T) {
	g := newGrid(t)
	var ix Index
	if got := ix.EventsAt(grid.Address{Section: 1, Slot: 16}); got != nil {
		t.Fatalf("empty index returned %v", got)
	}
	ev := model.NewEvent("standup", day(2024, time.February, 14).Add(9*time.Hour), day(2024, time.February, 14).Add(10*time.Hour), model.Color{})
	if n := ix.Rebuild([]*model.CalendarEvent{ev}, g.Locate); n != 1 {
		t.Fatalf("kept %d events, want 1", n)
	}
	// February 2024 starts on a Thursday.
	if got := ix.EventsAt(grid.Address{Section: 1, Slot: 16}); len(got) != 1 || got[0] != ev {
		t.Errorf("events on Feb 14 = %v", got)
	}
}
