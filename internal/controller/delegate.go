package controller

import (
	"time"

	"monthgrid/internal/model"
)

// Delegate receives notifications from a Controller. Both methods are
// required; the optional behaviors live in SelectionGate and
// DeselectObserver.
type Delegate interface {
	// MonthChanged fires when a scroll settles on a month section. date is
	// the 1st of that month.
	MonthChanged(date time.Time)
	// DateSelected fires after a date joined the selection.
	DateSelected(date time.Time, events []*model.CalendarEvent)
}

// SelectionGate lets a delegate veto a selection before it is committed.
// Delegates that do not implement it allow every selection.
type SelectionGate interface {
	CanSelect(date time.Time) bool
}

// DeselectObserver is told when a date leaves the selection. Delegates that
// do not implement it are not notified.
type DeselectObserver interface {
	DateDeselected(date time.Time)
}

// delegates applies the documented defaults around an optional Delegate.
type delegates struct {
	d        Delegate
	gate     SelectionGate
	deselect DeselectObserver
}

func withDefaults(d Delegate) delegates {
	out := delegates{d: d}
	if d == nil {
		return out
	}
	if g, ok := d.(SelectionGate); ok {
		out.gate = g
	}
	if o, ok := d.(DeselectObserver); ok {
		out.deselect = o
	}
	return out
}

func (w delegates) monthChanged(date time.Time) {
	if w.d != nil {
		w.d.MonthChanged(date)
	}
}

func (w delegates) dateSelected(date time.Time, evs []*model.CalendarEvent) {
	if w.d != nil {
		w.d.DateSelected(date, evs)
	}
}

func (w delegates) canSelect(date time.Time) bool {
	if w.gate == nil {
		return true
	}
	return w.gate.CanSelect(date)
}

func (w delegates) dateDeselected(date time.Time) {
	if w.deselect != nil {
		w.deselect.DateDeselected(date)
	}
}

// Funcs is a Delegate built from optional functions, handy for views that
// only care about a subset of notifications.
type Funcs struct {
	OnMonthChanged   func(time.Time)
	OnDateSelected   func(time.Time, []*model.CalendarEvent)
	OnDateDeselected func(time.Time)
	OnCanSelect      func(time.Time) bool
}

func (f Funcs) MonthChanged(date time.Time) {
	if f.OnMonthChanged != nil {
		f.OnMonthChanged(date)
	}
}

func (f Funcs) DateSelected(date time.Time, evs []*model.CalendarEvent) {
	if f.OnDateSelected != nil {
		f.OnDateSelected(date, evs)
	}
}

func (f Funcs) DateDeselected(date time.Time) {
	if f.OnDateDeselected != nil {
		f.OnDateDeselected(date)
	}
}

func (f Funcs) CanSelect(date time.Time) bool {
	if f.OnCanSelect != nil {
		return f.OnCanSelect(date)
	}
	return true
}
