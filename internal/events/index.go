// Package events groups externally supplied events by grid cell and defines
// the collaborator that supplies them.
package events

import (
	"time"

	"monthgrid/internal/grid"
	"monthgrid/internal/model"
)

// Resolver maps a date to its grid cell, reporting false outside the grid.
type Resolver func(time.Time) (grid.Address, bool)

// Index holds events keyed by the address of their start date. The zero
// value is an empty index ready to use.
type Index struct {
	byAddr map[grid.Address][]*model.CalendarEvent
	total  int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{byAddr: make(map[grid.Address][]*model.CalendarEvent)}
}

// Rebuild discards the current grouping and regroups evs. Events whose start
// does not resolve are dropped; feeds routinely return a wider window than
// the grid shows. It returns the number of events kept.
func (ix *Index) Rebuild(evs []*model.CalendarEvent, resolve Resolver) int {
	if ix.byAddr == nil {
		ix.byAddr = make(map[grid.Address][]*model.CalendarEvent)
	}
	clear(ix.byAddr)
	ix.total = 0
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		a, ok := resolve(ev.Start)
		if !ok {
			continue
		}
		ix.byAddr[a] = append(ix.byAddr[a], ev)
		ix.total++
	}
	return ix.total
}

// EventsAt returns the events starting on a's date in input order.
func (ix *Index) EventsAt(a grid.Address) []*model.CalendarEvent {
	return ix.byAddr[a]
}

// Len returns the number of indexed events.
func (ix *Index) Len() int { return ix.total }
