package web

import (
	"net/http"
	"time"

	"monthgrid/internal/controller"
	"monthgrid/internal/grid"
	"monthgrid/internal/model"
)

type cellDTO struct {
	Slot    int                  `json:"slot"`
	Day     int                  `json:"day"`
	Date    string               `json:"date,omitempty"`
	Visible bool                 `json:"visible"`
	State   controller.CellState `json:"state"`
	Markers []string             `json:"markers,omitempty"`
}

type gridResponse struct {
	Section          int       `json:"section"`
	Title            string    `json:"title"`
	FirstWeekdaySlot int       `json:"first_weekday_slot"`
	DaysInMonth      int       `json:"days_in_month"`
	Cells            []cellDTO `json:"cells"`
}

type sectionsResponse struct {
	Count          int    `json:"count"`
	DisplaySection int    `json:"display_section"`
	DisplayDate    string `json:"display_date"`
	Title          string `json:"title"`
}

type tapResponse struct {
	Selected bool   `json:"selected"`
	Date     string `json:"date"`
}

type eventDTO struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Color  string `json:"color"`
	Source string `json:"source,omitempty"`
	OneDay bool   `json:"one_day"`
}

type cellEventsResponse struct {
	Date   string               `json:"date"`
	State  controller.CellState `json:"state"`
	Events []eventDTO           `json:"events"`
}

type navigateResponse struct {
	Section int     `json:"section"`
	Title   string  `json:"title"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// sectionView is one month snapshot taken on the loop.
type sectionView struct {
	info  grid.MonthInfo
	first time.Time
	cells []controller.CellDescriptor
}

func readSection(c *controller.Controller, section int) (sectionView, bool) {
	info, ok := c.MonthInfo(section)
	if !ok {
		return sectionView{}, false
	}
	first, _ := c.MonthStart(section)
	cells, _ := c.Section(section)
	return sectionView{info: info, first: first, cells: cells}, true
}

func toGridResponse(section int, v sectionView) gridResponse {
	resp := gridResponse{
		Section:          section,
		Title:            controller.HeaderTitle(v.first),
		FirstWeekdaySlot: v.info.FirstWeekdaySlot,
		DaysInMonth:      v.info.DaysInMonth,
		Cells:            make([]cellDTO, 0, len(v.cells)),
	}
	for _, cell := range v.cells {
		dto := cellDTO{
			Slot:    cell.Address.Slot,
			Day:     cell.Day,
			Visible: cell.Visible,
			State:   cell.State,
		}
		if cell.Visible {
			dto.Date = cell.Date.Format(time.DateOnly)
		}
		for _, m := range cell.EventMarkers {
			dto.Markers = append(dto.Markers, m.Hex())
		}
		resp.Cells = append(resp.Cells, dto)
	}
	return resp
}

// handleGrid returns one month section.
//
// GET /api/grid?section=N   (defaults to the displayed section)
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	section, explicit := queryInt(r, "section")
	var (
		view  sectionView
		found bool
	)
	if !s.do(w, r, func(c *controller.Controller) {
		if !explicit {
			section = c.DisplaySection()
		}
		view, found = readSection(c, section)
	}) {
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown section")
		return
	}
	writeJSON(w, http.StatusOK, toGridResponse(section, view))
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	var resp sectionsResponse
	if !s.do(w, r, func(c *controller.Controller) {
		display := c.DisplayDate()
		resp = sectionsResponse{
			Count:          c.SectionCount(),
			DisplaySection: c.DisplaySection(),
			DisplayDate:    display.Format(time.DateOnly),
			Title:          controller.HeaderTitle(display),
		}
	}) {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var dates []string
	if !s.do(w, r, func(c *controller.Controller) {
		for _, d := range c.SelectedDates() {
			dates = append(dates, d.Format(time.DateOnly))
		}
	}) {
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"dates": dates})
}

// handleTap toggles the cell at section/slot.
//
// POST /api/tap?section=N&slot=M
//   - 409 when the cell is padding or the selection was vetoed.
func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	section, ok1 := queryInt(r, "section")
	slot, ok2 := queryInt(r, "slot")
	if !ok1 || !ok2 {
		writeError(w, http.StatusBadRequest, "section and slot are required")
		return
	}
	var (
		res     controller.TapResult
		handled bool
	)
	if !s.do(w, r, func(c *controller.Controller) {
		res, handled = c.OnTap(grid.Address{Section: section, Slot: slot})
	}) {
		return
	}
	switch {
	case !handled:
		writeError(w, http.StatusConflict, "cell has no date")
	case res.Vetoed:
		writeError(w, http.StatusConflict, "selection refused")
	default:
		writeJSON(w, http.StatusOK, tapResponse{Selected: res.Selected, Date: res.Date.Format(time.DateOnly)})
	}
}

// handleEvents lists the events of one cell, the payload a date selection
// reports.
//
// GET /api/events?section=N&slot=M
//   - 404 when the cell is padding or outside the grid.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	section, ok1 := queryInt(r, "section")
	slot, ok2 := queryInt(r, "slot")
	if !ok1 || !ok2 {
		writeError(w, http.StatusBadRequest, "section and slot are required")
		return
	}
	var (
		cell  controller.CellDescriptor
		found bool
		evs   []*model.CalendarEvent
	)
	if !s.do(w, r, func(c *controller.Controller) {
		cell, found = c.Cell(section, slot)
		if found && cell.Visible {
			evs = c.EventsAt(cell.Address)
		}
	}) {
		return
	}
	if !found || !cell.Visible {
		writeError(w, http.StatusNotFound, "cell has no date")
		return
	}
	resp := cellEventsResponse{
		Date:   cell.Date.Format(time.DateOnly),
		State:  cell.State,
		Events: make([]eventDTO, 0, len(evs)),
	}
	for _, ev := range evs {
		resp.Events = append(resp.Events, eventDTO{
			ID:     ev.ID.String(),
			Title:  ev.Title,
			Start:  ev.Start.Format(time.RFC3339),
			End:    ev.End.Format(time.RFC3339),
			Color:  ev.Color.Hex(),
			Source: ev.SourceID,
			OneDay: ev.IsOneDay(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNavigate pages one month.
//
// POST /api/navigate?dir=next|prev
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir != "next" && dir != "prev" {
		writeError(w, http.StatusBadRequest, "dir must be next or prev")
		return
	}
	var (
		target  controller.ScrollTarget
		moved   bool
		display time.Time
	)
	if !s.do(w, r, func(c *controller.Controller) {
		if dir == "next" {
			target, moved = c.GoToNextMonth()
		} else {
			target, moved = c.GoToPreviousMonth()
		}
		display = c.DisplayDate()
	}) {
		return
	}
	if !moved {
		writeError(w, http.StatusConflict, "no month in that direction")
		return
	}
	writeJSON(w, http.StatusOK, navigateResponse{
		Section: target.Section,
		Title:   controller.HeaderTitle(display),
		X:       target.X,
		Y:       target.Y,
	})
}

// handleSettle reports that a client came to rest on a section.
//
// POST /api/settle?section=N   or   ?offset=F&page=P
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	section, hasSection := queryInt(r, "section")
	offset, hasOffset := queryFloat(r, "offset")
	page, hasPage := queryFloat(r, "page")
	if !hasSection && !(hasOffset && hasPage) {
		writeError(w, http.StatusBadRequest, "section or offset+page required")
		return
	}
	var (
		first time.Time
		ok    bool
	)
	if !s.do(w, r, func(c *controller.Controller) {
		if !hasSection {
			section = c.SectionForOffset(offset, page)
		}
		first, ok = c.OnScrollSettled(section)
	}) {
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown section")
		return
	}
	writeJSON(w, http.StatusOK, navigateResponse{Section: section, Title: controller.HeaderTitle(first)})
}
