package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "monthgrid/internal/log"
	"monthgrid/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone occurrences are converted to; the grid
	// places an event on its calendar day in this zone. Nil means time.Local.
	DisplayLocation *time.Location

	// RangeStart and RangeEnd bound the occurrences returned, inclusive.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules; zero means 5000.
	MaxOccurrencesPerEvent int

	// Colorize picks the marker color for an occurrence's summary.
	Colorize func(summary string) model.Color
}

// ExpandResult holds expanded occurrences sorted by start time.
type ExpandResult struct {
	Events []*model.CalendarEvent
	// TruncatedUIDs lists events that hit MaxOccurrencesPerEvent.
	TruncatedUIDs []string
}

// ExpandOccurrences turns parsed VEVENTs into concrete calendar events inside
// the configured window, applying RRULE, EXDATE and RECURRENCE-ID overrides.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: expand range end is before start")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	if cfg.Colorize == nil {
		cfg.Colorize = func(string) model.Color { return model.Color{A: 0xFF} }
	}

	var uids []string
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, ok := baseByUID[ev.UID]; !ok {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	for _, uid := range uids {
		truncated := false
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			result.Events = append(result.Events, occ...)
		}
		if truncated {
			result.TruncatedUIDs = append(result.TruncatedUIDs, uid)
			appLog.Warn("ics expand truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(result.Events, func(i, j int) bool {
		return result.Events[i].Start.Before(result.Events[j].Start)
	})
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]*model.CalendarEvent, bool) {
	if ev.RawRRule == "" {
		if !overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		if o, ok := findOverride(overrides, ev.Start); ok {
			ev = o
		}
		return []*model.CalendarEvent{makeEvent(ev, ev.Start, ev.End, cfg)}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event duration so occurrences that began
	// before the window but still run into it are kept.
	dur := ev.End.Sub(ev.Start)
	loc := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]*model.CalendarEvent, 0, len(starts))
	for _, start := range starts {
		end := start.Add(dur)
		if ev.AllDay {
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			end = start.AddDate(0, 0, 1)
		}
		base := ev
		if o, ok := findOverride(overrides, start); ok {
			base, start, end = o, o.Start, o.End
		}
		out = append(out, makeEvent(base, start, end, cfg))
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeEvent(ev ParsedEvent, start, end time.Time, cfg ExpandConfig) *model.CalendarEvent {
	if ev.AllDay {
		// All-day dates are floating; keep the calendar day rather than
		// shifting it through a zone conversion.
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, cfg.DisplayLocation)
		end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, cfg.DisplayLocation)
	} else {
		start = start.In(cfg.DisplayLocation)
		end = end.In(cfg.DisplayLocation)
	}
	e := model.NewEvent(ev.Summary, start, end, cfg.Colorize(ev.Summary))
	e.SourceID = ev.Feed.ID
	if ev.UID != "" {
		// UIDs are global, so a calendar subscribed twice yields equal IDs.
		e.ID = model.StableID(ev.UID, start)
	}
	return e
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
