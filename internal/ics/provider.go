// Package ics turns ICS subscriptions into calendar events for the grid:
// fetch with an HTTP validator cache, parse VEVENTs, expand recurrences.
package ics

import (
	"context"
	"errors"
	"strings"
	"time"

	"monthgrid/internal/events"
	"monthgrid/internal/grid"
	appLog "monthgrid/internal/log"
	"monthgrid/internal/model"
)

// Highlight colors events whose summary contains Keyword (case-insensitive).
type Highlight struct {
	Keyword string
	Color   model.Color
}

// Provider is an events.Source over a set of ICS feeds.
type Provider struct {
	Fetcher  *Fetcher
	Feeds    []Feed
	Location *time.Location

	// Highlights are checked in order; the first match wins.
	Highlights   []Highlight
	DefaultColor model.Color
}

var _ events.Source = (*Provider)(nil)

// Events fetches every feed and expands the occurrences overlapping the
// months drawn for r. A feed that fails is skipped; its error is returned
// alongside the events of the feeds that succeeded.
func (p *Provider) Events(ctx context.Context, r grid.Range) ([]*model.CalendarEvent, error) {
	if len(p.Feeds) == 0 {
		return nil, nil
	}
	if p.Fetcher == nil {
		return nil, errors.New("ics: provider has no fetcher")
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}

	results, fetchErr := p.Fetcher.FetchAll(ctx, p.Feeds)

	var parsed []ParsedEvent
	var parseErrs []error
	for _, res := range results {
		evs, err := ParseICS(res.Feed, res.Body, loc)
		if err != nil {
			parseErrs = append(parseErrs, err)
			continue
		}
		parsed = append(parsed, evs...)
	}

	from, to := events.Window(r, loc)
	expanded, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      from,
		RangeEnd:        to.Add(-time.Nanosecond),
		Colorize:        p.colorFor,
	})
	if err != nil {
		return nil, err
	}

	appLog.Info("ics events loaded",
		"feeds", len(p.Feeds),
		"fetched", len(results),
		"events", len(expanded.Events),
		"range", r.String(),
	)
	return expanded.Events, errors.Join(fetchErr, errors.Join(parseErrs...))
}

func (p *Provider) colorFor(summary string) model.Color {
	s := strings.ToLower(summary)
	for _, h := range p.Highlights {
		if h.Keyword != "" && strings.Contains(s, strings.ToLower(h.Keyword)) {
			return h.Color
		}
	}
	return p.DefaultColor
}
