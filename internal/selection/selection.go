// Package selection tracks which grid cells are selected.
package selection

import (
	"sort"

	"monthgrid/internal/grid"
)

// Toggled is the outcome of a Toggle call.
type Toggled struct {
	Selected bool
}

// Model is a set of selected addresses. The zero value is ready to use.
// It does not react to range changes; callers decide whether to Clear.
type Model struct {
	set map[grid.Address]struct{}
}

// New returns an empty selection.
func New() *Model {
	return &Model{set: make(map[grid.Address]struct{})}
}

// Toggle removes a selected address, or adds an unselected one. When
// multi is false any previous selection is dropped before adding.
func (m *Model) Toggle(a grid.Address, multi bool) Toggled {
	if m.set == nil {
		m.set = make(map[grid.Address]struct{})
	}
	if _, ok := m.set[a]; ok {
		delete(m.set, a)
		return Toggled{Selected: false}
	}
	if !multi {
		clear(m.set)
	}
	m.set[a] = struct{}{}
	return Toggled{Selected: true}
}

// Contains reports whether a is selected.
func (m *Model) Contains(a grid.Address) bool {
	_, ok := m.set[a]
	return ok
}

// Len returns the number of selected addresses.
func (m *Model) Len() int { return len(m.set) }

// Clear empties the selection.
func (m *Model) Clear() { clear(m.set) }

// Addresses returns the selection in grid order.
func (m *Model) Addresses() []grid.Address {
	out := make([]grid.Address, 0, len(m.set))
	for a := range m.set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
