package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"monthgrid/internal/grid"
	"monthgrid/internal/model"
)

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//monthgrid//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:single@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240214T090000Z\r\n" +
	"DTEND:20240214T100000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240205T120000Z\r\n" +
	"DTEND:20240205T130000Z\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=4\r\n" +
	"EXDATE:20240212T120000Z\r\n" +
	"SUMMARY:Important review\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:holiday@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240301\r\n" +
	"DTEND;VALUE=DATE:20240302\r\n" +
	"SUMMARY:Holiday\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	evs, err := ParseICS(Feed{ID: "t"}, []byte(sampleICS), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 3 {
		t.Fatalf("parsed %d events, want 3", len(evs))
	}
	var weekly, holiday ParsedEvent
	for _, ev := range evs {
		switch ev.UID {
		case "weekly@test":
			weekly = ev
		case "holiday@test":
			holiday = ev
		}
	}
	if weekly.RawRRule == "" || len(weekly.ExDates) != 1 {
		t.Errorf("weekly event = %+v", weekly)
	}
	if !holiday.AllDay || holiday.Start.Day() != 1 || holiday.Start.Month() != time.March {
		t.Errorf("holiday event = %+v", holiday)
	}
}

func TestExpandOccurrences(t *testing.T) {
	evs, err := ParseICS(Feed{ID: "t"}, []byte(sampleICS), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	red := model.MustColor("#FF0000")
	res, err := ExpandOccurrences(evs, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC),
		Colorize: func(s string) model.Color {
			if strings.Contains(s, "Important") {
				return red
			}
			return model.Color{}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	// Weekly: Feb 5, (12 excluded), 19, 26 plus the single standup.
	if len(res.Events) != 4 {
		for _, e := range res.Events {
			t.Logf("%s %s", e.Title, e.Start)
		}
		t.Fatalf("expanded %d events, want 4", len(res.Events))
	}
	for i := 1; i < len(res.Events); i++ {
		if res.Events[i].Start.Before(res.Events[i-1].Start) {
			t.Errorf("events not sorted at %d", i)
		}
	}
	if res.Events[0].Color != red || res.Events[0].SourceID != "t" {
		t.Errorf("first event = %+v", res.Events[0])
	}
}

func TestExpandRejectsInvertedWindow(t *testing.T) {
	now := time.Now()
	if _, err := ExpandOccurrences(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)}); err == nil {
		t.Fatal("expected error")
	}
}

func TestProviderFetchesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	red := model.MustColor("#FF0000")
	p := &Provider{
		Fetcher:      NewFetcher(t.TempDir(), srv.Client()),
		Feeds:        []Feed{{ID: "work", URL: srv.URL + "/cal.ics?token=secret"}},
		Location:     time.UTC,
		Highlights:   []Highlight{{Keyword: "important", Color: red}},
		DefaultColor: model.MustColor("#0000FF"),
	}
	r := grid.MustRange(time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC))

	first, err := p.Events(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	// Feb: 3 weekly + standup; Mar: holiday.
	if len(first) != 5 {
		t.Fatalf("got %d events, want 5", len(first))
	}

	second, err := p.Events(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != len(first) {
		t.Errorf("cached fetch returned %d events", len(second))
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}

	var highlighted int
	for _, ev := range second {
		if ev.Color == red {
			highlighted++
		}
	}
	if highlighted != 3 {
		t.Errorf("highlighted %d events, want 3", highlighted)
	}

	// Occurrences keep their IDs across reloads and differ from each other.
	ids := make(map[uuid.UUID]bool, len(first))
	for i, ev := range first {
		if ev.ID != second[i].ID {
			t.Errorf("%s on %s changed ID between loads", ev.Title, ev.Start)
		}
		ids[ev.ID] = true
	}
	if len(ids) != len(first) {
		t.Errorf("%d distinct IDs for %d occurrences", len(ids), len(first))
	}
}

func TestFetchFallsBackToCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	feed := Feed{ID: "x", URL: srv.URL}
	if _, err := f.FetchOne(context.Background(), feed); err != nil {
		t.Fatal(err)
	}
	fail.Store(true)
	res, err := f.FetchOne(context.Background(), feed)
	if err != nil {
		t.Fatal(err)
	}
	if !res.FromCache || len(res.Body) == 0 {
		t.Errorf("expected cached body, got %+v", res)
	}

	if _, err := f.FetchOne(context.Background(), Feed{ID: "empty"}); err == nil {
		t.Error("empty URL accepted")
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL("https://example.com/private.ics?token=abc"); got != "https://example.com/...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
	if got := redactURL("not a url"); got != "ics://...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
}
