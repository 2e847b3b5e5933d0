// Package controller drives a month grid: it owns the range, answers the
// view layer's count and cell queries, turns taps and scroll positions into
// selection changes and navigation, and tells a Delegate about them.
//
// A Controller is single-writer. Every method must be called from the same
// goroutine (the UI loop); results of background event fetches are handed
// back to that goroutine before they touch any state.
package controller

import (
	"context"
	"math"
	"strconv"
	"time"

	"monthgrid/internal/calmath"
	"monthgrid/internal/events"
	"monthgrid/internal/grid"
	appLog "monthgrid/internal/log"
	"monthgrid/internal/model"
	"monthgrid/internal/selection"
)

// Direction is the axis months are paged along.
type Direction int

const (
	Horizontal Direction = iota
	Vertical
)

// ParseDirection maps "vertical" to Vertical and anything else to Horizontal.
func ParseDirection(s string) Direction {
	if s == "vertical" {
		return Vertical
	}
	return Horizontal
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithDelegate sets the notification target.
func WithDelegate(d Delegate) Option {
	return func(c *Controller) { c.delegate = withDefaults(d) }
}

// WithMultipleSelection sets whether taps accumulate. The default is true.
func WithMultipleSelection(multi bool) Option {
	return func(c *Controller) { c.multi = multi }
}

// WithDirection sets the paging axis used by scroll offset helpers.
func WithDirection(d Direction) Option {
	return func(c *Controller) { c.direction = d }
}

// WithPageSize sets the size of one month page in view points.
func WithPageSize(size float64) Option {
	return func(c *Controller) { c.pageSize = size }
}

// Controller orchestrates grid.Index, selection.Model and events.Index.
type Controller struct {
	index     *grid.Index
	selection *selection.Model
	events    *events.Index
	delegate  delegates

	multi     bool
	direction Direction
	pageSize  float64
	now       func() time.Time

	today    grid.Address
	hasToday bool
	display  time.Time

	lastEvents []*model.CalendarEvent
	generation uint64
}

// New builds a controller over r. An inverted range is refused with
// grid.ErrInvertedRange before anything can be rendered.
func New(r grid.Range, opts ...Option) (*Controller, error) {
	r, err := grid.NewRange(r.Start, r.End)
	if err != nil {
		appLog.Error("controller: refusing range", err)
		return nil, err
	}
	c := &Controller{
		selection: selection.New(),
		events:    events.NewIndex(),
		multi:     true,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.index = grid.NewIndex(r)
	c.display = r.Start
	c.configure()
	return c, nil
}

// SetRange replaces the range. The MonthInfo cache is rebuilt lazily, today
// is recomputed, in-flight event loads are invalidated and the last event
// list is regrouped. The selection is left alone.
func (c *Controller) SetRange(r grid.Range) error {
	r, err := grid.NewRange(r.Start, r.End)
	if err != nil {
		appLog.Error("controller: refusing range", err)
		return err
	}
	c.index.Reset(r)
	c.generation++
	c.display = r.Start
	c.configure()
	c.events.Rebuild(c.lastEvents, c.resolveInRange)
	return nil
}

// Reload drops cached month layouts and recomputes today, e.g. after
// midnight. Selection and events are kept.
func (c *Controller) Reload() {
	c.index.Invalidate()
	c.configure()
	c.events.Rebuild(c.lastEvents, c.resolveInRange)
}

func (c *Controller) configure() {
	r := c.index.Range()
	c.today, c.hasToday = c.resolveInRange(c.now())
	appLog.Debug("controller configured",
		"range", r.String(),
		"sections", r.SectionCount(),
		"today", c.today,
		"has_today", c.hasToday,
	)
}

// resolveInRange locates dates between Start and End. Days of the boundary
// months outside that span are drawn but carry neither today nor events.
func (c *Controller) resolveInRange(date time.Time) (grid.Address, bool) {
	if !c.index.Range().Contains(date) {
		return grid.Address{}, false
	}
	return c.index.Locate(date)
}

// Range returns the configured range.
func (c *Controller) Range() grid.Range { return c.index.Range() }

// SectionCount is the number of month sections.
func (c *Controller) SectionCount() int { return c.index.SectionCount() }

// ItemCount is SlotsPerSection for valid sections and 0 otherwise.
func (c *Controller) ItemCount(section int) int { return c.index.ItemCount(section) }

// DaySlotsPerRow is the fixed number of columns.
func (c *Controller) DaySlotsPerRow() int { return grid.DaysPerRow }

// RowsPerSection is the fixed number of week rows per month.
func (c *Controller) RowsPerSection() int { return grid.RowsPerSection }

// MonthStart returns the 1st of the month shown by section.
func (c *Controller) MonthStart(section int) (time.Time, bool) {
	return c.index.MonthStart(section)
}

// DisplaySection is the section showing the display date.
func (c *Controller) DisplaySection() int {
	section, _ := c.ScrollTargetFor(c.display)
	return section
}

// MonthInfo exposes the layout of section.
func (c *Controller) MonthInfo(section int) (grid.MonthInfo, bool) {
	return c.index.MonthInfo(section)
}

// TodayAddress is the cell of the current date, if the grid draws it.
func (c *Controller) TodayAddress() (grid.Address, bool) { return c.today, c.hasToday }

// MultipleSelection reports the selection policy.
func (c *Controller) MultipleSelection() bool { return c.multi }

// SetMultipleSelection changes the selection policy for later taps.
func (c *Controller) SetMultipleSelection(multi bool) { c.multi = multi }

// Direction returns the paging axis.
func (c *Controller) Direction() Direction { return c.direction }

// SetDelegate replaces the notification target.
func (c *Controller) SetDelegate(d Delegate) { c.delegate = withDefaults(d) }

// SetPageSize records the size of one month page, e.g. after a resize.
func (c *Controller) SetPageSize(size float64) { c.pageSize = size }

// Classify returns the state of the cell at a. Padding and unknown cells are
// always StateDefault.
func (c *Controller) Classify(a grid.Address) CellState {
	mi, ok := c.index.MonthInfo(a.Section)
	if !ok || !mi.InMonth(a.Slot) {
		return StateDefault
	}
	return classify(a, c.selection.Contains(a), c.today, c.hasToday)
}

// Cell describes the cell at (section, slot). It reports false when the
// address is outside the grid.
func (c *Controller) Cell(section, slot int) (CellDescriptor, bool) {
	if slot < 0 || slot >= grid.SlotsPerSection {
		return CellDescriptor{}, false
	}
	mi, ok := c.index.MonthInfo(section)
	if !ok {
		return CellDescriptor{}, false
	}
	a := grid.Address{Section: section, Slot: slot}
	cell := CellDescriptor{Address: a, State: StateDefault}

	day, inMonth := mi.DayNumber(slot)
	if !inMonth {
		return cell, true
	}
	cell.Day = day
	cell.Date, _ = c.index.DateForAddress(a)
	cell.Visible = true
	cell.State = classify(a, c.selection.Contains(a), c.today, c.hasToday)
	if evs := c.events.EventsAt(a); len(evs) > 0 {
		cell.EventMarkers = make([]model.Color, len(evs))
		for i, ev := range evs {
			cell.EventMarkers[i] = ev.Color
		}
	}
	return cell, true
}

// Section describes every cell of a section in slot order.
func (c *Controller) Section(section int) ([]CellDescriptor, bool) {
	if c.ItemCount(section) == 0 {
		return nil, false
	}
	out := make([]CellDescriptor, 0, grid.SlotsPerSection)
	for slot := 0; slot < grid.SlotsPerSection; slot++ {
		cell, _ := c.Cell(section, slot)
		out = append(out, cell)
	}
	return out, true
}

// AddressForDate resolves date to its cell, computing the month on demand.
func (c *Controller) AddressForDate(date time.Time) (grid.Address, bool) {
	return c.index.Locate(date)
}

// DateForAddress resolves a cell to its date; padding resolves to false.
func (c *Controller) DateForAddress(a grid.Address) (time.Time, bool) {
	return c.index.DateAt(a)
}

// EventsAt returns the events starting on a's date.
func (c *Controller) EventsAt(a grid.Address) []*model.CalendarEvent {
	return c.events.EventsAt(a)
}

// SelectedDates returns the selected dates in grid order.
func (c *Controller) SelectedDates() []time.Time {
	addrs := c.selection.Addresses()
	out := make([]time.Time, 0, len(addrs))
	for _, a := range addrs {
		if d, ok := c.index.DateAt(a); ok {
			out = append(out, d)
		}
	}
	return out
}

// TapResult is the outcome of a tap on a dated cell.
type TapResult struct {
	Date     time.Time
	Selected bool
	// Vetoed is set when the delegate refused the selection; nothing changed.
	Vetoed bool
}

// OnTap handles a tap reported by the view. Padding and unknown cells report
// false and change nothing. A selected cell is deselected; otherwise the
// delegate may veto, and the cell is selected under the current policy.
func (c *Controller) OnTap(a grid.Address) (TapResult, bool) {
	date, ok := c.index.DateAt(a)
	if !ok {
		return TapResult{}, false
	}

	if c.selection.Contains(a) {
		c.selection.Toggle(a, c.multi)
		appLog.Debug("date deselected", "date", date.Format(time.DateOnly), "address", a)
		c.delegate.dateDeselected(date)
		return TapResult{Date: date, Selected: false}, true
	}

	if !c.delegate.canSelect(date) {
		appLog.Debug("selection vetoed", "date", date.Format(time.DateOnly))
		return TapResult{Date: date, Vetoed: true}, true
	}

	c.selection.Toggle(a, c.multi)
	appLog.Debug("date selected", "date", date.Format(time.DateOnly), "address", a, "multi", c.multi)
	c.delegate.dateSelected(date, c.events.EventsAt(a))
	return TapResult{Date: date, Selected: true}, true
}

// SelectDate selects date as if its cell was tapped and returns the section
// to scroll to. Selecting an already selected date changes nothing.
func (c *Controller) SelectDate(date time.Time) (int, bool) {
	a, ok := c.index.Locate(date)
	if !ok {
		return 0, false
	}
	if !c.selection.Contains(a) {
		if res, _ := c.OnTap(a); res.Vetoed {
			return a.Section, false
		}
	}
	return a.Section, true
}

// DeselectDate removes date from the selection, notifying the delegate.
func (c *Controller) DeselectDate(date time.Time) (int, bool) {
	a, ok := c.index.Locate(date)
	if !ok {
		return 0, false
	}
	if c.selection.Contains(a) {
		c.OnTap(a)
	}
	return a.Section, true
}

// ClearSelection drops every selection without notifying the delegate.
func (c *Controller) ClearSelection() { c.selection.Clear() }

// DisplayDate is the date the view is positioned on.
func (c *Controller) DisplayDate() time.Time { return c.display }

// ScrollTargetFor returns the section showing date.
func (c *Controller) ScrollTargetFor(date time.Time) (int, bool) {
	a, ok := c.index.Locate(date)
	return a.Section, ok
}

// MonthOffset moves from by n calendar months, clamping the day of month.
func (c *Controller) MonthOffset(from time.Time, n int) time.Time {
	return calmath.AddMonthsClamped(from, n)
}

// ScrollTarget is where the view should scroll after a navigation.
type ScrollTarget struct {
	Section int
	X, Y    float64
}

// SetDisplayDate positions the view on date. Dates outside [start, end) are
// ignored.
func (c *Controller) SetDisplayDate(date time.Time) (ScrollTarget, bool) {
	r := c.index.Range()
	d := calmath.Day(date)
	if d.Before(r.Start) || !d.Before(r.End) {
		appLog.Debug("navigation ignored", "date", d.Format(time.DateOnly), "range", r.String())
		return ScrollTarget{}, false
	}
	section, ok := c.ScrollTargetFor(d)
	if !ok {
		return ScrollTarget{}, false
	}
	c.display = d
	x, y := c.ScrollOffset(section, c.pageSize)
	appLog.Debug("navigate", "date", d.Format(time.DateOnly), "section", section)
	return ScrollTarget{Section: section, X: x, Y: y}, true
}

// GoToNextMonth moves the display date one month forward.
func (c *Controller) GoToNextMonth() (ScrollTarget, bool) { return c.goToMonthWithOffset(1) }

// GoToPreviousMonth moves the display date one month back.
func (c *Controller) GoToPreviousMonth() (ScrollTarget, bool) { return c.goToMonthWithOffset(-1) }

// goToMonthWithOffset pulls a target that lands in a boundary month but
// outside [start, end) onto the nearest allowed day, so the boundary months
// stay reachable.
func (c *Controller) goToMonthWithOffset(n int) (ScrollTarget, bool) {
	r := c.index.Range()
	target := c.MonthOffset(c.display, n)
	lastAllowed := r.End.AddDate(0, 0, -1)
	switch {
	case target.Before(r.Start) && calmath.MonthDistance(r.Start, target) == 0:
		target = r.Start
	case !target.Before(r.End) && calmath.MonthDistance(r.End, target) == 0 && !lastAllowed.Before(r.Start):
		target = lastAllowed
	}
	return c.SetDisplayDate(target)
}

// ScrollOffset converts a section to a content offset along the paging axis
// for pages of pageSize points.
func (c *Controller) ScrollOffset(section int, pageSize float64) (x, y float64) {
	off := float64(section) * pageSize
	if c.direction == Vertical {
		return 0, off
	}
	return off, 0
}

// SectionForOffset converts a content offset back to a section, flooring and
// clamping into [0, SectionCount).
func (c *Controller) SectionForOffset(offset, pageSize float64) int {
	if pageSize <= 0 {
		return 0
	}
	page := int(math.Floor(offset / pageSize))
	if page < 0 {
		page = 0
	}
	if n := c.SectionCount(); page >= n {
		page = n - 1
	}
	return page
}

// OnScrollSettled records that the view came to rest on section, moves the
// display date to the 1st of that month and notifies the delegate.
func (c *Controller) OnScrollSettled(section int) (time.Time, bool) {
	first, ok := c.index.MonthStart(section)
	if !ok {
		return time.Time{}, false
	}
	c.display = first
	appLog.Debug("scroll settled", "section", section, "month", HeaderTitle(first))
	c.delegate.monthChanged(first)
	return first, true
}

// HeaderTitle formats a month header such as "February 2024".
func HeaderTitle(date time.Time) string {
	return date.Month().String() + " " + strconv.Itoa(date.Year())
}

// ApplyEvents replaces the event list and regroups it. It returns the number
// of events that landed on a cell.
func (c *Controller) ApplyEvents(evs []*model.CalendarEvent) int {
	c.lastEvents = evs
	kept := c.events.Rebuild(evs, c.resolveInRange)
	appLog.Debug("events applied", "received", len(evs), "kept", kept)
	return kept
}

// LoadTicket identifies one event load. Only the newest ticket may apply.
type LoadTicket struct {
	Range      grid.Range
	generation uint64
}

// BeginLoad issues a ticket for a new event load, superseding older ones.
func (c *Controller) BeginLoad() LoadTicket {
	c.generation++
	return LoadTicket{Range: c.index.Range(), generation: c.generation}
}

// CurrentLoad reports whether t is the newest issued ticket.
func (c *Controller) CurrentLoad(t LoadTicket) bool { return t.generation == c.generation }

// CompleteLoad applies the result of the load t on the UI goroutine. Results
// of superseded loads are dropped. An error with no events keeps the current
// events; partial results are applied.
func (c *Controller) CompleteLoad(t LoadTicket, evs []*model.CalendarEvent, err error) bool {
	if !c.CurrentLoad(t) {
		appLog.Debug("stale event load discarded", "ticket", t.generation, "current", c.generation)
		return false
	}
	if err != nil {
		appLog.Error("event load failed", err, "events", len(evs))
		if len(evs) == 0 {
			return false
		}
	}
	c.ApplyEvents(evs)
	return true
}

// LoadEvents fetches from src on a new goroutine and hands the apply step to
// post, which must run it on the UI goroutine.
func (c *Controller) LoadEvents(ctx context.Context, src events.Source, post func(func())) LoadTicket {
	t := c.BeginLoad()
	go func() {
		evs, err := src.Events(ctx, t.Range)
		post(func() { c.CompleteLoad(t, evs, err) })
	}()
	return t
}
