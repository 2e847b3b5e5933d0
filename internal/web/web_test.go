package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"monthgrid/internal/auth"
	"monthgrid/internal/controller"
	"monthgrid/internal/events"
	"monthgrid/internal/grid"
	"monthgrid/internal/loop"
	"monthgrid/internal/model"
	"monthgrid/internal/style"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	srv  *httptest.Server
	ctrl *controller.Controller
	loop *loop.Loop
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	ctrl, err := controller.New(grid.MustRange(day(2024, 1, 10), day(2024, 12, 20)),
		controller.WithClock(func() time.Time { return time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC) }),
		controller.WithDelegate(controller.Funcs{
			OnCanSelect: func(d time.Time) bool { return d.Weekday() != time.Sunday },
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	l := loop.New(16)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	opts := Options{Controller: ctrl, Loop: l, Palette: style.Default()}
	if mutate != nil {
		mutate(&opts)
	}
	srv := httptest.NewServer(NewServer(opts).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &fixture{srv: srv, ctrl: ctrl, loop: l}
}

func (f *fixture) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.do(t, http.MethodGet, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestGridSection(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.do(t, http.MethodGet, "/api/grid?section=4")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	g := decode[gridResponse](t, resp)
	if g.Title != "May 2024" || g.FirstWeekdaySlot != 2 || g.DaysInMonth != 31 {
		t.Errorf("header = %+v", g)
	}
	if len(g.Cells) != grid.SlotsPerSection {
		t.Fatalf("cells = %d", len(g.Cells))
	}
	if c := g.Cells[16]; c.State != controller.StateToday || c.Day != 15 || c.Date != "2024-05-15" {
		t.Errorf("today cell = %+v", c)
	}
	if c := g.Cells[0]; c.Visible || c.Day != 0 {
		t.Errorf("padding cell = %+v", c)
	}

	if resp := f.do(t, http.MethodGet, "/api/grid?section=12"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown section status = %d", resp.StatusCode)
	}
}

func TestSections(t *testing.T) {
	f := newFixture(t, nil)
	s := decode[sectionsResponse](t, f.do(t, http.MethodGet, "/api/sections"))
	if s.Count != 12 || s.DisplaySection != 0 || s.Title != "January 2024" {
		t.Errorf("sections = %+v", s)
	}
}

func TestTap(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/tap?section=4&slot=20")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("tap on a vetoed Sunday status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodPost, "/api/tap?section=4&slot=17")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tap status = %d", resp.StatusCode)
	}
	tr := decode[tapResponse](t, resp)
	if !tr.Selected || tr.Date != "2024-05-16" {
		t.Errorf("tap = %+v", tr)
	}

	sel := decode[map[string][]string](t, f.do(t, http.MethodGet, "/api/selection"))
	if got := sel["dates"]; len(got) != 1 || got[0] != "2024-05-16" {
		t.Errorf("selection = %v", got)
	}

	tr = decode[tapResponse](t, f.do(t, http.MethodPost, "/api/tap?section=4&slot=17"))
	if tr.Selected {
		t.Error("second tap did not deselect")
	}

	if resp := f.do(t, http.MethodPost, "/api/tap?section=4&slot=0"); resp.StatusCode != http.StatusConflict {
		t.Errorf("tap on padding status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/tap?section=4"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("tap without slot status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/tap?section=4&slot=17"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET tap status = %d", resp.StatusCode)
	}
}

func TestNavigateAndSettle(t *testing.T) {
	f := newFixture(t, nil)

	if resp := f.do(t, http.MethodPost, "/api/navigate?dir=prev"); resp.StatusCode != http.StatusConflict {
		t.Errorf("prev from first month status = %d", resp.StatusCode)
	}
	nav := decode[navigateResponse](t, f.do(t, http.MethodPost, "/api/navigate?dir=next"))
	if nav.Section != 1 || nav.Title != "February 2024" {
		t.Errorf("next = %+v", nav)
	}
	if resp := f.do(t, http.MethodPost, "/api/navigate?dir=up"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad dir status = %d", resp.StatusCode)
	}

	nav = decode[navigateResponse](t, f.do(t, http.MethodPost, "/api/settle?offset=1250&page=400"))
	if nav.Section != 3 || nav.Title != "April 2024" {
		t.Errorf("settle = %+v", nav)
	}
	s := decode[sectionsResponse](t, f.do(t, http.MethodGet, "/api/sections"))
	if s.DisplayDate != "2024-04-01" {
		t.Errorf("display after settle = %s", s.DisplayDate)
	}
}

func TestGridPage(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.do(t, http.MethodGet, "/grid?section=1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	for _, want := range []string{`data-ready="true"`, "February 2024", `class="past"`, `class="padding"`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestReloadEvents(t *testing.T) {
	src := events.NewMemorySource()
	err := src.Add(model.NewEvent("dentist",
		time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 20, 11, 0, 0, 0, time.UTC),
		model.MustColor("#FF0000")))
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, func(o *Options) { o.Source = src })

	if resp := f.do(t, http.MethodPost, "/api/reload-events"); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		g := decode[gridResponse](t, f.do(t, http.MethodGet, "/api/grid?section=4"))
		if m := g.Cells[21].Markers; len(m) == 1 {
			if m[0] != "#FF0000FF" {
				t.Errorf("marker = %s", m[0])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("events never reached the grid")
}

func TestCellEvents(t *testing.T) {
	f := newFixture(t, nil)
	dentist := model.NewEvent("dentist",
		time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 20, 11, 0, 0, 0, time.UTC),
		model.MustColor("#FF0000"))
	if err := f.loop.Do(context.Background(), func() {
		f.ctrl.ApplyEvents([]*model.CalendarEvent{dentist})
	}); err != nil {
		t.Fatal(err)
	}

	// May 2024 starts on a Wednesday, so May 20 is slot 21.
	resp := f.do(t, http.MethodGet, "/api/events?section=4&slot=21")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[cellEventsResponse](t, resp)
	if got.Date != "2024-05-20" || len(got.Events) != 1 {
		t.Fatalf("events = %+v", got)
	}
	ev := got.Events[0]
	if ev.ID != dentist.ID.String() || ev.Title != "dentist" || !ev.OneDay || ev.Color != "#FF0000FF" {
		t.Errorf("event = %+v", ev)
	}

	empty := decode[cellEventsResponse](t, f.do(t, http.MethodGet, "/api/events?section=4&slot=22"))
	if empty.Events == nil || len(empty.Events) != 0 {
		t.Errorf("empty cell events = %#v", empty.Events)
	}
	if resp := f.do(t, http.MethodGet, "/api/events?section=4&slot=0"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("padding status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/events?section=4"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing slot status = %d", resp.StatusCode)
	}
}

func TestReloadWithoutSource(t *testing.T) {
	f := newFixture(t, nil)
	if resp := f.do(t, http.MethodPost, "/api/reload-events"); resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestPreview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.png")
	if err := os.WriteFile(path, []byte("\x89PNG fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, func(o *Options) { o.PreviewPath = path })
	if resp := f.do(t, http.MethodGet, "/preview.png"); resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := auth.HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, func(o *Options) {
		o.Auth = auth.Credentials{Username: "admin", PasswordHash: hash}
	})

	if resp := f.do(t, http.MethodGet, "/health"); resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}
	resp := f.do(t, http.MethodGet, "/api/sections")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate")
	}

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/sections", nil)
	req.SetBasicAuth("admin", "pw")
	ok, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer ok.Body.Close()
	if ok.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d", ok.StatusCode)
	}
}
