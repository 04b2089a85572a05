package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/ringcore/internal/tui/model"
	"github.com/matheus3301/ringcore/internal/tui/ui"
)

// RequestsView lists pending trust requests of the active account.
type RequestsView struct {
	*tview.Table
	theme *ui.Theme
	reqs  []model.Request
}

// NewRequestsView creates a new requests table.
func NewRequestsView(theme *ui.Theme) *RequestsView {
	return &RequestsView{
		Table: newTable(theme, " Requests "),
		theme: theme,
	}
}

// Name implements Component.
func (rv *RequestsView) Name() string { return "Requests" }

// Hints implements Component.
func (rv *RequestsView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update refreshes the table.
func (rv *RequestsView) Update(reqs []model.Request) {
	rv.reqs = reqs
	rv.Clear()
	setHeader(rv.Table, rv.theme, []column{
		{" FROM", 1},
		{" NAME", 1},
		{" RECEIVED", 0},
	})
	for i, r := range reqs {
		row := i + 1
		rv.SetCell(row, 0, cell(rv.theme, r.From).SetExpansion(1))
		rv.SetCell(row, 1, cell(rv.theme, r.Name).SetExpansion(1))
		rv.SetCell(row, 2, cell(rv.theme, formatTimestamp(r.Received)).SetAlign(tview.AlignRight))
	}
	rv.SetTitle(fmt.Sprintf(" Requests (%d) ", len(reqs)))
}

// Selected returns the selected request.
func (rv *RequestsView) Selected() (model.Request, bool) {
	if idx := selectedIndex(rv.Table, len(rv.reqs)); idx >= 0 {
		return rv.reqs[idx], true
	}
	return model.Request{}, false
}
