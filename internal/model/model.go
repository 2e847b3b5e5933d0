package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"monthgrid/internal/calmath"
)

// Color is an 8-bit RGBA color used for event markers and cell styling.
type Color struct {
	R, G, B, A uint8
}

// ParseColor accepts "#RRGGBB" or "#RRGGBBAA" (the leading '#' is optional).
func ParseColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return Color{}, fmt.Errorf("model: invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("model: invalid color %q: %w", s, err)
	}
	if len(h) == 6 {
		v = v<<8 | 0xFF
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// MustColor is ParseColor for literals.
func MustColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats c as "#RRGGBBAA".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

// CalendarEvent is an event supplied by an event source. Events are treated
// as immutable once built; indexes hold pointers to the caller's values.
type CalendarEvent struct {
	ID uuid.UUID

	// SourceID names the feed the event came from, if any.
	SourceID string

	Title string
	Start time.Time
	End   time.Time
	Color Color
}

// NewEvent builds an event with a fresh random ID.
func NewEvent(title string, start, end time.Time, color Color) *CalendarEvent {
	return &CalendarEvent{
		ID:    uuid.New(),
		Title: title,
		Start: start,
		End:   end,
		Color: color,
	}
}

// eventNamespace scopes the name-based IDs from StableID.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("monthgrid:event"))

// StableID derives an event ID from a key and the occurrence start, so the
// same occurrence gets the same ID across reloads and feeds.
func StableID(key string, start time.Time) uuid.UUID {
	return uuid.NewSHA1(eventNamespace, []byte(key+"\x00"+start.UTC().Format(time.RFC3339Nano)))
}

// IsOneDay reports whether the event lies within the calendar day it starts
// on. Days are read in the event's own zone, the way the grid places it, and
// End is exclusive: an all-day event ending at the next midnight is one day.
func (e *CalendarEvent) IsOneDay() bool {
	end := e.End
	if end.After(e.Start) {
		end = end.Add(-time.Nanosecond)
	}
	return calmath.Day(e.Start).Equal(calmath.Day(end))
}
