package controller

import (
	"fmt"
	"time"

	"monthgrid/internal/grid"
	"monthgrid/internal/model"
)

// CellState is the visual class of a cell. Exactly one applies.
type CellState int

const (
	StateDefault CellState = iota
	StatePast
	StateToday
	StateSelected
)

func (s CellState) String() string {
	switch s {
	case StatePast:
		return "past"
	case StateToday:
		return "today"
	case StateSelected:
		return "selected"
	default:
		return "default"
	}
}

// MarshalText renders the state name in JSON and YAML.
func (s CellState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *CellState) UnmarshalText(b []byte) error {
	for _, st := range []CellState{StateDefault, StatePast, StateToday, StateSelected} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("controller: unknown cell state %q", b)
}

// CellDescriptor is everything a view needs to draw one cell.
type CellDescriptor struct {
	Address grid.Address
	// Day is the 1-based day of month; 0 for padding.
	Day int
	// Date is zero for padding.
	Date time.Time
	// Visible is false for padding cells, which views hide and ignore taps on.
	Visible      bool
	State        CellState
	EventMarkers []model.Color
}

// classify ranks selection over today over past. Without a today address
// nothing is past.
func classify(a grid.Address, selected bool, today grid.Address, hasToday bool) CellState {
	switch {
	case selected:
		return StateSelected
	case hasToday && a == today:
		return StateToday
	case hasToday && a.Less(today):
		return StatePast
	default:
		return StateDefault
	}
}
