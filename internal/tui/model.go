// Package tui is the terminal view of the month grid, built on Bubble Tea.
// The Bubble Tea update loop is the controller's UI goroutine: event loads
// run as commands and come back as messages.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"monthgrid/internal/controller"
	"monthgrid/internal/events"
	"monthgrid/internal/grid"
	appLog "monthgrid/internal/log"
	"monthgrid/internal/model"
)

// RefreshMsg asks the model to reload events, e.g. from a cron job via
// Program.Send.
type RefreshMsg struct{}

// DayChangedMsg asks the model to recompute today.
type DayChangedMsg struct{}

type eventsLoadedMsg struct {
	ticket controller.LoadTicket
	events []*model.CalendarEvent
	err    error
}

var weekdayLabels = []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// Model is the Bubble Tea model. It also acts as the controller's delegate
// so notifications land in the status line.
type Model struct {
	ctrl   *controller.Controller
	src    events.Source
	ctx    context.Context
	styles Styles

	section int
	cursor  int
	status  string
	loading bool
	err     error
}

// New builds a model over ctrl and registers itself as its delegate. src may
// be nil when no event source is configured.
func New(ctx context.Context, ctrl *controller.Controller, src events.Source, styles Styles) *Model {
	m := &Model{
		ctrl:   ctrl,
		src:    src,
		ctx:    ctx,
		styles: styles,
	}
	ctrl.SetDelegate(m)
	m.section = ctrl.DisplaySection()
	m.placeCursor()
	return m
}

// MonthChanged implements controller.Delegate.
func (m *Model) MonthChanged(date time.Time) {
	m.status = controller.HeaderTitle(date)
}

// DateSelected implements controller.Delegate.
func (m *Model) DateSelected(date time.Time, evs []*model.CalendarEvent) {
	if len(evs) == 0 {
		m.status = "selected " + date.Format(time.DateOnly)
		return
	}
	titles := make([]string, 0, len(evs))
	for _, ev := range evs {
		titles = append(titles, ev.Title)
	}
	m.status = fmt.Sprintf("selected %s: %s", date.Format(time.DateOnly), strings.Join(titles, ", "))
}

// DateDeselected implements controller.DeselectObserver.
func (m *Model) DateDeselected(date time.Time) {
	m.status = "deselected " + date.Format(time.DateOnly)
}

// Section is the month currently shown.
func (m *Model) Section() int { return m.section }

// Cursor is the focused cell.
func (m *Model) Cursor() grid.Address {
	return grid.Address{Section: m.section, Slot: m.cursor}
}

// Status is the text of the status line.
func (m *Model) Status() string { return m.status }

func (m *Model) Init() tea.Cmd {
	return m.reload()
}

func (m *Model) reload() tea.Cmd {
	if m.src == nil {
		return nil
	}
	ticket := m.ctrl.BeginLoad()
	m.loading = true
	src, ctx := m.src, m.ctx
	return func() tea.Msg {
		evs, err := src.Events(ctx, ticket.Range)
		return eventsLoadedMsg{ticket: ticket, events: evs, err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventsLoadedMsg:
		current := m.ctrl.CurrentLoad(msg.ticket)
		m.ctrl.CompleteLoad(msg.ticket, msg.events, msg.err)
		if current {
			m.loading = false
			m.err = msg.err
		}
		return m, nil

	case RefreshMsg:
		return m, m.reload()

	case DayChangedMsg:
		m.ctrl.Reload()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "left", "h":
		m.moveDays(-1)
	case "right", "l":
		m.moveDays(1)
	case "up", "k":
		m.moveDays(-7)
	case "down", "j":
		m.moveDays(7)
	case "enter", " ":
		m.tap()
	case "n", "pgdown":
		if target, ok := m.ctrl.GoToNextMonth(); ok {
			m.settle(target.Section)
		}
	case "p", "pgup":
		if target, ok := m.ctrl.GoToPreviousMonth(); ok {
			m.settle(target.Section)
		}
	case "t":
		m.jumpToToday()
	case "r":
		m.status = "reloading events"
		return m, m.reload()
	}
	return m, nil
}

// settle scrolls the view to section and reports it to the controller.
func (m *Model) settle(section int) {
	if _, ok := m.ctrl.OnScrollSettled(section); !ok {
		return
	}
	m.section = section
	m.placeCursor()
}

// placeCursor focuses today when it is in the shown month, else the 1st.
func (m *Model) placeCursor() {
	if a, ok := m.ctrl.TodayAddress(); ok && a.Section == m.section {
		m.cursor = a.Slot
		return
	}
	if mi, ok := m.ctrl.MonthInfo(m.section); ok {
		m.cursor = mi.FirstWeekdaySlot
	}
}

func (m *Model) moveDays(n int) {
	date, ok := m.ctrl.DateForAddress(m.Cursor())
	if !ok {
		return
	}
	a, ok := m.ctrl.AddressForDate(date.AddDate(0, 0, n))
	if !ok {
		return
	}
	if a.Section != m.section {
		if _, ok := m.ctrl.OnScrollSettled(a.Section); !ok {
			return
		}
		m.section = a.Section
	}
	m.cursor = a.Slot
}

func (m *Model) tap() {
	res, ok := m.ctrl.OnTap(m.Cursor())
	if !ok {
		return
	}
	if res.Vetoed {
		m.status = res.Date.Format(time.DateOnly) + " cannot be selected"
	}
}

func (m *Model) jumpToToday() {
	a, ok := m.ctrl.TodayAddress()
	if !ok {
		m.status = "today is outside the calendar"
		return
	}
	if a.Section != m.section {
		m.settle(a.Section)
	}
	m.cursor = a.Slot
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(Render(m.ctrl, m.section, m.cursor, m.styles))
	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(m.styles.Status.Render("events: " + m.err.Error()))
	case m.loading:
		b.WriteString(m.styles.Status.Render("loading events..."))
	default:
		b.WriteString(m.styles.Status.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("←↑↓→ move • enter select • n/p month • t today • r reload • q quit"))
	b.WriteString("\n")
	return b.String()
}

// Render draws one month section: a header, the weekday row and six week
// rows. cursor is the highlighted slot; pass -1 for none.
func Render(ctrl *controller.Controller, section, cursor int, styles Styles) string {
	first, ok := ctrl.MonthStart(section)
	if !ok {
		return "empty calendar\n"
	}
	cells, _ := ctrl.Section(section)

	var b strings.Builder
	b.WriteString(styles.Header.Render(fmt.Sprintf("%s  (%d/%d)",
		controller.HeaderTitle(first), section+1, ctrl.SectionCount())))
	b.WriteString("\n")

	labels := make([]string, 0, len(weekdayLabels))
	for _, l := range weekdayLabels {
		labels = append(labels, styles.Weekday.Render(l))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labels...))
	b.WriteString("\n")

	for row := 0; row < grid.RowsPerSection; row++ {
		rendered := make([]string, 0, grid.DaysPerRow)
		for col := 0; col < grid.DaysPerRow; col++ {
			cell := cells[row*grid.DaysPerRow+col]
			rendered = append(rendered, renderCell(cell, cell.Address.Slot == cursor, styles))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
		b.WriteString("\n")
	}
	return b.String()
}

func renderCell(cell controller.CellDescriptor, focused bool, styles Styles) string {
	if !cell.Visible {
		return styles.Padding.Render("")
	}
	label := fmt.Sprintf("%d", cell.Day)
	if len(cell.EventMarkers) > 0 {
		label = styles.Marker.Render("•") + label
	}
	var st lipgloss.Style
	switch cell.State {
	case controller.StateSelected:
		st = styles.Selected
	case controller.StateToday:
		st = styles.Today
	case controller.StatePast:
		st = styles.Past
	default:
		st = styles.Default
	}
	if focused {
		st = st.Inherit(styles.Cursor)
	}
	return st.Render(label)
}

// Run starts the program on the terminal and blocks until the user quits.
// refresh, when non-nil, receives the program so external schedulers can
// Send messages to it.
func Run(ctx context.Context, m *Model, refresh func(*tea.Program)) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if refresh != nil {
		refresh(p)
	}
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		appLog.Error("tui exited", err)
		return err
	}
	return nil
}
