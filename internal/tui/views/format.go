package views

import (
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/ringcore/internal/tui/ui"
)

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// shortURI trims the scheme and long hashes for table cells.
func shortURI(uri string) string {
	if i := strings.IndexByte(uri, ':'); i >= 0 {
		uri = uri[i+1:]
	}
	if len(uri) > 16 {
		return uri[:8] + ".." + uri[len(uri)-6:]
	}
	return uri
}

// newTable builds a selectable table in the theme's colors.
func newTable(theme *ui.Theme, title string) *tview.Table {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(title)
	table.SetTitleColor(theme.TitleColor)
	return table
}

type column struct {
	text string
	exp  int
}

func setHeader(table *tview.Table, theme *ui.Theme, cols []column) {
	for i, c := range cols {
		table.SetCell(0, i, tview.NewTableCell(c.text).
			SetSelectable(false).
			SetTextColor(theme.TableHeaderFg).
			SetBackgroundColor(theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(c.exp))
	}
}

// cell escapes and sanitizes text for a table cell.
func cell(theme *ui.Theme, text string) *tview.TableCell {
	return tview.NewTableCell(" " + tview.Escape(sanitizeForTerminal(text))).SetTextColor(theme.FgColor)
}

// selectedIndex maps the table selection to a data index, skipping the
// header row.
func selectedIndex(table *tview.Table, n int) int {
	row, _ := table.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= n {
		return -1
	}
	return idx
}
