package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nodectl/internal/storage/models"
)

// historyView selects which records the history tab lists.
type historyView int

const (
	historySpeedTests historyView = iota
	historyIPLookups
)

type historyModel struct {
	view    historyView
	table   table.Model
	tests   []*models.SpeedTest
	lookups []*models.IPLookup
	width   int
	height  int
}

func newHistoryModel() historyModel {
	t := table.New(
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(colorPurple)
	s.Selected = s.Selected.
		Foreground(colorHighlight).
		Background(lipgloss.AdaptiveColor{Light: "#E8E0F0", Dark: "#2A1A3E"}).
		Bold(true)
	t.SetStyles(s)

	hm := historyModel{table: t}
	hm.refreshTable()
	return hm
}

func (hm *historyModel) setSize(w, h int) {
	hm.width = w
	hm.height = h
	// One line for the view switcher above the table.
	hm.table.SetHeight(max(h-1, 1))
	hm.refreshTable()
}

func (hm *historyModel) setHistory(tests []*models.SpeedTest, lookups []*models.IPLookup) {
	hm.tests = tests
	hm.lookups = lookups
	hm.refreshTable()
	hm.table.GotoTop()
}

func (hm *historyModel) toggle() {
	if hm.view == historySpeedTests {
		hm.view = historyIPLookups
	} else {
		hm.view = historySpeedTests
	}
	hm.refreshTable()
	hm.table.GotoTop()
}

// refreshTable rebuilds columns and rows for the current view. Rows are
// cleared first so the table never holds rows wider than its columns.
func (hm *historyModel) refreshTable() {
	hm.table.SetRows(nil)

	wide := max(hm.width/4, 20)
	if hm.view == historySpeedTests {
		hm.table.SetColumns([]table.Column{
			{Title: "Time", Width: 19},
			{Title: "Latency", Width: 10},
			{Title: "Download", Width: 14},
			{Title: "Upload", Width: 14},
			{Title: "Colo", Width: 6},
			{Title: "Status", Width: wide},
		})
		rows := make([]table.Row, len(hm.tests))
		for i, t := range hm.tests {
			rows[i] = speedTestRow(t, wide)
		}
		hm.table.SetRows(rows)
		return
	}

	hm.table.SetColumns([]table.Column{
		{Title: "Time", Width: 19},
		{Title: "Address", Width: 40},
		{Title: "Service", Width: wide},
		{Title: "Elapsed", Width: 9},
		{Title: "Status", Width: 8},
	})
	rows := make([]table.Row, len(hm.lookups))
	for i, l := range hm.lookups {
		rows[i] = ipLookupRow(l, wide)
	}
	hm.table.SetRows(rows)
}

func speedTestRow(t *models.SpeedTest, statusWidth int) table.Row {
	at := t.TestedAt.Local().Format(time.DateTime)
	if !t.Success {
		return table.Row{at, "-", "-", "-", "-", truncate("fail: "+t.ErrorMessage, statusWidth)}
	}
	return table.Row{
		at,
		fmt.Sprintf("%.1f ms", t.LatencyMS),
		formatMbps(t.DownloadBps),
		formatMbps(t.UploadBps),
		t.ServerColo,
		"ok",
	}
}

func ipLookupRow(l *models.IPLookup, serviceWidth int) table.Row {
	at := l.ResolvedAt.Local().Format(time.DateTime)
	if !l.Success {
		return table.Row{at, "-", "-", "-", "fail"}
	}
	return table.Row{
		at,
		l.Address,
		truncate(l.Service, serviceWidth),
		fmt.Sprintf("%d ms", l.ElapsedMS),
		"ok",
	}
}

func (hm *historyModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Enter) {
		hm.toggle()
		return nil
	}

	var cmd tea.Cmd
	hm.table, cmd = hm.table.Update(msg)
	return cmd
}

func (hm *historyModel) View() string {
	var b strings.Builder

	tests, lookups := "Speed tests", "IP lookups"
	if hm.view == historySpeedTests {
		tests = activeTabStyle.Render(tests)
		lookups = inactiveTabStyle.Render(lookups)
	} else {
		tests = inactiveTabStyle.Render(tests)
		lookups = activeTabStyle.Render(lookups)
	}
	b.WriteString(tests + lookups + dimStyle.Render("  (enter to switch)"))
	b.WriteString("\n")
	b.WriteString(hm.table.View())

	return forceHeight(b.String(), hm.width, hm.height)
}
