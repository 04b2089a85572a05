package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/ringcore/internal/tui/model"
	"github.com/matheus3301/ringcore/internal/tui/ui"
)

// SearchView runs full-text queries over stored history.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	onQuery func(query string)
	hits    []model.SearchHit
}

// NewSearchView creates a new search view.
func NewSearchView(theme *ui.Theme) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	results := newTable(theme, " Results ")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	sv := &SearchView{
		Flex:    flex,
		theme:   theme,
		input:   input,
		results: results,
	}
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil && sv.input.GetText() != "" {
			sv.onQuery(sv.input.GetText())
		}
	})
	return sv
}

// Name implements Component.
func (sv *SearchView) Name() string { return "Search" }

// Hints implements Component.
func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Search/Open"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnQuery sets the callback when a search query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
}

// SetQuery fills the input, for searches started from the command bar.
func (sv *SearchView) SetQuery(q string) {
	sv.input.SetText(q)
}

// Update refreshes search results.
func (sv *SearchView) Update(hits []model.SearchHit) {
	sv.hits = hits
	sv.results.Clear()
	setHeader(sv.results, sv.theme, []column{
		{" CONVERSATION", 0},
		{" FROM", 0},
		{" SNIPPET", 1},
		{" TIME", 0},
	})
	for i, h := range hits {
		row := i + 1
		from := "me"
		if h.Author != "" {
			from = shortURI(h.Author)
		}
		sv.results.SetCell(row, 0, cell(sv.theme, shortURI(h.Conversation)).SetMaxWidth(25))
		sv.results.SetCell(row, 1, cell(sv.theme, from))
		sv.results.SetCell(row, 2, cell(sv.theme, h.Snippet).SetExpansion(1))
		sv.results.SetCell(row, 3, cell(sv.theme, formatTimestamp(h.Timestamp)).SetMaxWidth(12))
	}
	sv.results.SetTitle(fmt.Sprintf(" Results (%d) ", len(hits)))
}

// Selected returns the selected hit.
func (sv *SearchView) Selected() (model.SearchHit, bool) {
	if idx := selectedIndex(sv.results, len(sv.hits)); idx >= 0 {
		return sv.hits[idx], true
	}
	return model.SearchHit{}, false
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table {
	return sv.results
}
