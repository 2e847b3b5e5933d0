package web

import (
	"html/template"
	"net/http"

	"monthgrid/internal/controller"
	"monthgrid/internal/grid"
	appLog "monthgrid/internal/log"
	"monthgrid/internal/style"
)

var weekdayNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var gridPage = template.Must(template.New("grid").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { margin: 0; font-family: sans-serif; background: {{.Palette.CellDefault}}; }
h1 { color: {{.Palette.Header}}; font-size: 28px; margin: 16px; }
table { border-collapse: collapse; margin: 0 16px; }
th { color: {{.Palette.Header}}; width: 64px; font-weight: normal; }
td { width: 64px; height: 56px; text-align: center; vertical-align: top; }
td.default { background: {{.Palette.CellDefault}}; color: {{.Palette.TextDefault}}; }
td.past { background: {{.Palette.CellDefault}}; color: {{.Palette.TextPast}}; }
td.today { background: {{.Palette.CellToday}}; color: {{.Palette.TextToday}}; }
td.selected { background: {{.Palette.CellSelected}}; color: {{.Palette.TextSelected}}; outline: 2px solid {{.Palette.SelectedBorder}}; }
td.padding { visibility: hidden; }
.dot { display: inline-block; width: 6px; height: 6px; border-radius: 3px; margin: 0 1px; }
</style>
</head>
<body>
<main id="grid" data-ready="true" data-section="{{.Section}}">
<h1>{{.Title}}</h1>
<table>
<thead><tr>{{range .Weekdays}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}{{if .Visible}}<td class="{{.State}}" data-slot="{{.Slot}}">{{.Day}}<br>{{range .Markers}}<span class="dot" style="background: {{.}}"></span>{{end}}</td>{{else}}<td class="padding" data-slot="{{.Slot}}"></td>{{end}}{{end}}</tr>
{{end}}</tbody>
</table>
</main>
</body>
</html>
`))

type pagePalette struct {
	CellDefault, TextDefault, CellToday, TextToday template.CSS
	CellSelected, TextSelected, SelectedBorder     template.CSS
	TextPast, Header                               template.CSS
}

type pageData struct {
	Section  int
	Title    string
	Weekdays []string
	Rows     [][]cellDTO
	Palette  pagePalette
}

func cssPalette(p style.Palette) pagePalette {
	return pagePalette{
		CellDefault:    template.CSS(p.CellDefault.Hex()),
		TextDefault:    template.CSS(p.TextDefault.Hex()),
		CellToday:      template.CSS(p.CellToday.Hex()),
		TextToday:      template.CSS(p.TextToday.Hex()),
		CellSelected:   template.CSS(p.CellSelected.Hex()),
		TextSelected:   template.CSS(p.TextSelected.Hex()),
		SelectedBorder: template.CSS(p.SelectedBorder.Hex()),
		TextPast:       template.CSS(p.TextPast.Hex()),
		Header:         template.CSS(p.Header.Hex()),
	}
}

// handleGridPage renders one month as HTML. The root carries
// data-ready="true" so the headless capture knows the page is complete.
//
// GET /grid?section=N   (defaults to the displayed section)
func (s *Server) handleGridPage(w http.ResponseWriter, r *http.Request) {
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
		http.NotFound(w, r)
		return
	}

	resp := toGridResponse(section, view)
	data := pageData{
		Section:  section,
		Title:    resp.Title,
		Weekdays: weekdayNames,
		Palette:  cssPalette(s.opts.Palette),
	}
	for row := 0; row+grid.DaysPerRow <= len(resp.Cells); row += grid.DaysPerRow {
		data.Rows = append(data.Rows, resp.Cells[row:row+grid.DaysPerRow])
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := gridPage.Execute(w, data); err != nil {
		appLog.Error("grid page render failed", err, "section", section)
	}
}
