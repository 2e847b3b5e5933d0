package events

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rdleal/intervalst/interval"

	"monthgrid/internal/grid"
	"monthgrid/internal/model"
)

// Source supplies events for the months a grid draws. Implementations may
// block; callers run them off the UI loop and apply the result on it.
type Source interface {
	Events(ctx context.Context, r grid.Range) ([]*model.CalendarEvent, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, r grid.Range) ([]*model.CalendarEvent, error)

// Events calls f.
func (f SourceFunc) Events(ctx context.Context, r grid.Range) ([]*model.CalendarEvent, error) {
	return f(ctx, r)
}

// Merge combines sources into one. Every source is queried even when one
// fails; the errors are joined and returned with the events that did load.
// Events sharing an ID are kept once, first source first, and the result is
// ordered by start.
func Merge(sources ...Source) Source {
	return SourceFunc(func(ctx context.Context, r grid.Range) ([]*model.CalendarEvent, error) {
		var (
			out  []*model.CalendarEvent
			errs []error
		)
		seen := make(map[uuid.UUID]bool)
		for _, src := range sources {
			if src == nil {
				continue
			}
			evs, err := src.Events(ctx, r)
			if err != nil {
				errs = append(errs, err)
			}
			for _, ev := range evs {
				if ev == nil {
					continue
				}
				if ev.ID != uuid.Nil {
					if seen[ev.ID] {
						continue
					}
					seen[ev.ID] = true
				}
				out = append(out, ev)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
		return out, errors.Join(errs...)
	})
}

// Window returns the half-open instant window [from, to) covering every day
// drawn for r, with day boundaries taken in loc.
func Window(r grid.Range, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	first := r.FirstMonth()
	last := r.LastDay()
	from := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	to := time.Date(last.Year(), last.Month(), last.Day()+1, 0, 0, 0, 0, loc)
	return from, to
}

// spanKey identifies one interval in the tree; events sharing exact bounds
// share a key.
type spanKey struct {
	start, end int64
}

// MemorySource is an in-process Source backed by an interval search tree, so
// range queries only visit overlapping events.
type MemorySource struct {
	mu    sync.RWMutex
	tree  *interval.SearchTree[spanKey, time.Time]
	spans map[spanKey][]*model.CalendarEvent
	seq   map[*model.CalendarEvent]int
	next  int
}

// NewMemorySource returns an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		tree:  interval.NewSearchTree[spanKey](func(x, y time.Time) int { return x.Compare(y) }),
		spans: make(map[spanKey][]*model.CalendarEvent),
		seq:   make(map[*model.CalendarEvent]int),
	}
}

// Add stores events. Events ending before they start are rejected.
func (s *MemorySource) Add(evs ...*model.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range evs {
		if ev == nil {
			continue
		}
		if ev.End.Before(ev.Start) {
			return errors.New("events: event ends before it starts: " + ev.Title)
		}
		end := ev.End
		if !end.After(ev.Start) {
			// The tree stores proper intervals; widen instants by 1ns.
			end = ev.Start.Add(time.Nanosecond)
		}
		key := spanKey{start: ev.Start.UnixNano(), end: end.UnixNano()}
		if _, seen := s.spans[key]; !seen {
			if err := s.tree.Insert(ev.Start, end, key); err != nil {
				return err
			}
		}
		s.spans[key] = append(s.spans[key], ev)
		s.seq[ev] = s.next
		s.next++
	}
	return nil
}

// Len returns the number of stored events.
func (s *MemorySource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seq)
}

// Events returns stored events overlapping the drawn months of r, ordered by
// start time and then by insertion order.
func (s *MemorySource) Events(ctx context.Context, r grid.Range) ([]*model.CalendarEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from, to := Window(r, time.UTC)

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, ok := s.tree.AllIntersections(from, to)
	if !ok {
		return nil, nil
	}
	out := make([]*model.CalendarEvent, 0, len(keys))
	visited := make(map[spanKey]bool, len(keys))
	for _, k := range keys {
		if visited[k] {
			continue
		}
		visited[k] = true
		for _, ev := range s.spans[k] {
			// The tree treats bounds as closed; keep the window half-open.
			if !ev.Start.Before(to) {
				continue
			}
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return s.seq[out[i]] < s.seq[out[j]]
	})
	return out, nil
}
