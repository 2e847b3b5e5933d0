// Package style carries the colors view layers paint cells with. A Palette is
// built once and handed to a view at construction; restyling means building
// a new view, never mutating shared state.
package style

import (
	"fmt"

	"monthgrid/internal/model"
)

// Config is the user-facing form of a Palette: hex strings, empty meaning
// "keep the default".
type Config struct {
	CellDefault    string `yaml:"cell_default,omitempty" toml:"cell_default,omitempty" json:"cell_default,omitempty"`
	TextDefault    string `yaml:"text_default,omitempty" toml:"text_default,omitempty" json:"text_default,omitempty"`
	CellToday      string `yaml:"cell_today,omitempty" toml:"cell_today,omitempty" json:"cell_today,omitempty"`
	TextToday      string `yaml:"text_today,omitempty" toml:"text_today,omitempty" json:"text_today,omitempty"`
	CellSelected   string `yaml:"cell_selected,omitempty" toml:"cell_selected,omitempty" json:"cell_selected,omitempty"`
	TextSelected   string `yaml:"text_selected,omitempty" toml:"text_selected,omitempty" json:"text_selected,omitempty"`
	SelectedBorder string `yaml:"selected_border,omitempty" toml:"selected_border,omitempty" json:"selected_border,omitempty"`
	TextPast       string `yaml:"text_past,omitempty" toml:"text_past,omitempty" json:"text_past,omitempty"`
	EventMarker    string `yaml:"event_marker,omitempty" toml:"event_marker,omitempty" json:"event_marker,omitempty"`
	Header         string `yaml:"header,omitempty" toml:"header,omitempty" json:"header,omitempty"`
}

// Palette holds resolved colors per cell state.
type Palette struct {
	CellDefault    model.Color
	TextDefault    model.Color
	CellToday      model.Color
	TextToday      model.Color
	CellSelected   model.Color
	TextSelected   model.Color
	SelectedBorder model.Color
	TextPast       model.Color
	EventMarker    model.Color
	Header         model.Color
}

// Default is the stock palette: light text on a dark, translucent grid with a
// red accent for today, selection and event markers.
func Default() Palette {
	return Palette{
		CellDefault:    model.MustColor("#0000001A"),
		TextDefault:    model.MustColor("#FFFFFF"),
		CellToday:      model.MustColor("#FE49404D"),
		TextToday:      model.MustColor("#FFFFFF"),
		CellSelected:   model.MustColor("#00000000"),
		TextSelected:   model.MustColor("#000000"),
		SelectedBorder: model.MustColor("#FE4940CC"),
		TextPast:       model.MustColor("#AAAAAA"),
		EventMarker:    model.MustColor("#FE4940CC"),
		Header:         model.MustColor("#FFFFFF"),
	}
}

// Resolve applies the non-empty entries of c on top of Default.
func Resolve(c Config) (Palette, error) {
	p := Default()
	fields := []struct {
		name string
		hex  string
		dst  *model.Color
	}{
		{"cell_default", c.CellDefault, &p.CellDefault},
		{"text_default", c.TextDefault, &p.TextDefault},
		{"cell_today", c.CellToday, &p.CellToday},
		{"text_today", c.TextToday, &p.TextToday},
		{"cell_selected", c.CellSelected, &p.CellSelected},
		{"text_selected", c.TextSelected, &p.TextSelected},
		{"selected_border", c.SelectedBorder, &p.SelectedBorder},
		{"text_past", c.TextPast, &p.TextPast},
		{"event_marker", c.EventMarker, &p.EventMarker},
		{"header", c.Header, &p.Header},
	}
	for _, f := range fields {
		if f.hex == "" {
			continue
		}
		col, err := model.ParseColor(f.hex)
		if err != nil {
			return Palette{}, fmt.Errorf("style: %s: %w", f.name, err)
		}
		*f.dst = col
	}
	return p, nil
}
