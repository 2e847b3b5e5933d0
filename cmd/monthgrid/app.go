package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"monthgrid/internal/auth"
	"monthgrid/internal/config"
	"monthgrid/internal/controller"
	"monthgrid/internal/events"
	"monthgrid/internal/ics"
	appLog "monthgrid/internal/log"
	"monthgrid/internal/model"
	"monthgrid/internal/style"
)

// gridApp is the controller plus everything built around it from config.
type gridApp struct {
	conf    *config.Config
	loc     *time.Location
	ctrl    *controller.Controller
	source  events.Source
	palette style.Palette
}

func newGridApp(conf *config.Config) (*gridApp, error) {
	loc, err := conf.Location()
	if err != nil {
		return nil, err
	}
	now := func() time.Time { return time.Now().In(loc) }
	r, err := conf.DateRange(now())
	if err != nil {
		return nil, err
	}
	palette, err := style.Resolve(conf.Style)
	if err != nil {
		return nil, err
	}

	ctrl, err := controller.New(r,
		controller.WithClock(now),
		controller.WithMultipleSelection(conf.MultipleSelection),
		controller.WithDirection(controller.ParseDirection(conf.Direction)),
		controller.WithDelegate(logDelegate{}),
	)
	if err != nil {
		return nil, err
	}
	// Open on the current month when it is part of the calendar.
	ctrl.SetDisplayDate(now())

	app := &gridApp{conf: conf, loc: loc, ctrl: ctrl, palette: palette}
	sources, err := eventSources(conf, loc, palette.EventMarker)
	if err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		app.source = events.Merge(sources...)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"range", r.String(),
		"sections", ctrl.SectionCount(),
		"multiple_selection", conf.MultipleSelection,
		"direction", conf.Direction,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
		"static_events", len(conf.Events),
	)
	return app, nil
}

// eventSources builds the config-declared events and the ICS feeds, in that
// order. Merged, the first copy of an event wins.
func eventSources(conf *config.Config, loc *time.Location, fallback model.Color) ([]events.Source, error) {
	var sources []events.Source

	static, err := conf.StaticEvents(loc, fallback)
	if err != nil {
		return nil, err
	}
	if len(static) > 0 {
		mem := events.NewMemorySource()
		if err := mem.Add(static...); err != nil {
			return nil, err
		}
		sources = append(sources, mem)
	}

	feeds := make([]ics.Feed, 0, len(conf.ICS))
	for _, src := range conf.ICS {
		if src.URL == "" {
			continue
		}
		feeds = append(feeds, ics.Feed{ID: src.FeedID(), URL: src.URL})
	}
	if len(feeds) > 0 {
		rules, err := conf.Highlights()
		if err != nil {
			return nil, err
		}
		highlights := make([]ics.Highlight, 0, len(rules))
		for _, r := range rules {
			highlights = append(highlights, ics.Highlight{Keyword: r.Keyword, Color: r.Color})
		}
		sources = append(sources, &ics.Provider{
			Fetcher:      ics.NewFetcher(filepath.Join(conf.CacheDir, "ics-cache"), nil),
			Feeds:        feeds,
			Location:     loc,
			Highlights:   highlights,
			DefaultColor: fallback,
		})
	}

	appLog.Info("event sources", "static", len(static), "feeds", len(feeds))
	return sources, nil
}

func (a *gridApp) credentials() auth.Credentials {
	if a.conf.BasicAuth == nil {
		return auth.Credentials{}
	}
	return auth.Credentials{
		Username:     a.conf.BasicAuth.Username,
		Password:     a.conf.BasicAuth.Password,
		PasswordHash: a.conf.BasicAuth.PasswordHash,
	}
}

func (a *gridApp) previewPath() string {
	return filepath.Join(a.conf.CacheDir, "preview.png")
}

// loadEventsNow fetches events on the calling goroutine, which must own the
// controller.
func (a *gridApp) loadEventsNow(ctx context.Context) {
	if a.source == nil {
		return
	}
	ticket := a.ctrl.BeginLoad()
	evs, err := a.source.Events(ctx, ticket.Range)
	a.ctrl.CompleteLoad(ticket, evs, err)
}

// startScheduler runs refresh on the configured cron spec and dayChanged at
// local midnight.
func (a *gridApp) startScheduler(refresh, dayChanged func()) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(a.loc))
	if a.source != nil {
		if _, err := c.AddFunc(a.conf.RefreshCron, refresh); err != nil {
			return nil, fmt.Errorf("refresh schedule %q: %w", a.conf.RefreshCron, err)
		}
	}
	if _, err := c.AddFunc("0 0 * * *", dayChanged); err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("scheduler started", "refresh", a.conf.RefreshCron, "entries", len(c.Entries()))
	return c, nil
}

// logDelegate reports grid notifications to the log.
type logDelegate struct{}

func (logDelegate) MonthChanged(date time.Time) {
	appLog.Info("month changed", "month", controller.HeaderTitle(date))
}

func (logDelegate) DateSelected(date time.Time, evs []*model.CalendarEvent) {
	appLog.Info("date selected", "date", date.Format(time.DateOnly), "events", len(evs))
}

func (logDelegate) DateDeselected(date time.Time) {
	appLog.Info("date deselected", "date", date.Format(time.DateOnly))
}
