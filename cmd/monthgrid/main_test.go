package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"monthgrid/internal/grid"
	"monthgrid/internal/ics"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monthgrid.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
listen: "127.0.0.1:9000"
range:
  start: "2024-01-01"
  end: "2024-06-30"
`)
	conf, err := loadConfig(flagConfig{
		configPath: path,
		listen:     "0.0.0.0:8081",
		end:        "2024-12-31",
		logLevel:   "debug",
	})
	if err != nil {
		t.Fatal(err)
	}
	if conf.Listen != "0.0.0.0:8081" || conf.Range.End != "2024-12-31" || conf.Range.Start != "2024-01-01" {
		t.Errorf("overrides not applied: %+v", conf)
	}
}

func TestLoadConfigRejectsInvertedRange(t *testing.T) {
	path := writeConfig(t, "timezone: UTC\n")
	_, err := loadConfig(flagConfig{configPath: path, start: "2025-01-01", end: "2024-01-01"})
	if !errors.Is(err, grid.ErrInvertedRange) {
		t.Fatalf("err = %v, want ErrInvertedRange", err)
	}
}

func TestNewGridApp(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
range:
  start: "2024-01-01"
  end: "2024-12-31"
cache_dir: "`+dir+`"
multiple_selection: false
highlight:
  - keyword: exam
    color: "#00FF00"
ics:
  - url: "https://example.com/a.ics"
    name: school
  - url: ""
`)
	conf, err := loadConfig(flagConfig{configPath: path})
	if err != nil {
		t.Fatal(err)
	}
	app, err := newGridApp(conf)
	if err != nil {
		t.Fatal(err)
	}
	if app.ctrl.SectionCount() != 12 {
		t.Errorf("sections = %d", app.ctrl.SectionCount())
	}
	if app.ctrl.MultipleSelection() {
		t.Error("multiple_selection: false ignored")
	}
	if app.source == nil {
		t.Fatal("no event source with a feed configured")
	}
	loc, err := conf.Location()
	if err != nil {
		t.Fatal(err)
	}
	sources, err := eventSources(conf, loc, app.palette.EventMarker)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 {
		t.Fatalf("sources = %d, want the feed only", len(sources))
	}
	p, ok := sources[0].(*ics.Provider)
	if !ok {
		t.Fatalf("source = %T", sources[0])
	}
	if len(p.Feeds) != 1 || p.Feeds[0].ID != "school" {
		t.Errorf("feeds = %+v", p.Feeds)
	}
	if len(p.Highlights) != 1 || p.Highlights[0].Keyword != "exam" {
		t.Errorf("highlights = %+v", p.Highlights)
	}
	if got := app.previewPath(); got != filepath.Join(dir, "preview.png") {
		t.Errorf("previewPath = %s", got)
	}
	if app.credentials().Enabled() {
		t.Error("credentials enabled without basic_auth")
	}
}

func TestNewGridAppWithoutFeeds(t *testing.T) {
	path := writeConfig(t, "cache_dir: \""+t.TempDir()+"\"\n")
	conf, err := loadConfig(flagConfig{configPath: path})
	if err != nil {
		t.Fatal(err)
	}
	app, err := newGridApp(conf)
	if err != nil {
		t.Fatal(err)
	}
	if app.source != nil {
		t.Errorf("source = %T, want nil", app.source)
	}
	app.loadEventsNow(context.Background())
}

func TestNewGridAppServesConfigEvents(t *testing.T) {
	path := writeConfig(t, `
range:
  start: "2024-01-01"
  end: "2024-12-31"
cache_dir: "`+t.TempDir()+`"
events:
  - title: Sports day
    start: "2024-05-01"
    color: "#00FF00"
  - title: Long ago
    start: "2023-05-01"
`)
	conf, err := loadConfig(flagConfig{configPath: path})
	if err != nil {
		t.Fatal(err)
	}
	app, err := newGridApp(conf)
	if err != nil {
		t.Fatal(err)
	}
	if app.source == nil {
		t.Fatal("config events did not produce a source")
	}
	app.loadEventsNow(context.Background())

	a, ok := app.ctrl.AddressForDate(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("May 1 not on the grid")
	}
	evs := app.ctrl.EventsAt(a)
	if len(evs) != 1 || evs[0].Title != "Sports day" {
		t.Fatalf("events on May 1 = %v", evs)
	}
	cell, _ := app.ctrl.Cell(a.Section, a.Slot)
	if len(cell.EventMarkers) != 1 || cell.EventMarkers[0].Hex() != "#00FF00FF" {
		t.Errorf("markers = %v", cell.EventMarkers)
	}
}

func TestWaitHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	if err := waitHealthy(context.Background(), srv.URL+"/health", make(chan error)); err != nil {
		t.Fatal(err)
	}

	stopped := make(chan error, 1)
	stopped <- errors.New("address in use")
	if err := waitHealthy(context.Background(), "http://127.0.0.1:1/health", stopped); err == nil {
		t.Error("stopped server reported healthy")
	}
}

func TestParseCommonRejectsExtraArgs(t *testing.T) {
	if _, err := parseCommon("serve", []string{"-listen", ":1", "extra"}, nil); err == nil {
		t.Error("extra argument accepted")
	}
}
