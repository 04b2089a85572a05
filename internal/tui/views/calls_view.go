package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/ringcore/internal/tui/model"
	"github.com/matheus3301/ringcore/internal/tui/ui"
)

// CallsView lists live calls across accounts.
type CallsView struct {
	*tview.Table
	theme *ui.Theme
	calls []model.Call
}

// NewCallsView creates a new calls table.
func NewCallsView(theme *ui.Theme) *CallsView {
	return &CallsView{
		Table: newTable(theme, " Calls "),
		theme: theme,
	}
}

// Name implements Component.
func (cv *CallsView) Name() string { return "Calls" }

// Hints implements Component.
func (cv *CallsView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update refreshes the table.
func (cv *CallsView) Update(calls []model.Call) {
	cv.calls = calls
	cv.Clear()
	setHeader(cv.Table, cv.theme, []column{
		{" PEER", 1},
		{" STATE", 0},
		{" DIR", 0},
		{" MEDIA", 0},
		{" CONF", 0},
		{" TIME", 0},
	})
	for i, c := range calls {
		row := i + 1
		peer := c.PeerName
		if peer == "" {
			peer = shortURI(c.Peer)
		}
		media := "a+v"
		switch {
		case c.AudioMuted && c.VideoMuted:
			media = "muted"
		case c.AudioMuted:
			media = "v"
		case c.VideoMuted:
			media = "a"
		}
		state := cell(cv.theme, c.State)
		if c.Ringing() {
			state.SetTextColor(cv.theme.RingingColor)
		}
		conf := "-"
		if c.Conference != "" {
			conf = shortURI(c.Conference)
		}

		cv.SetCell(row, 0, cell(cv.theme, peer).SetExpansion(1))
		cv.SetCell(row, 1, state)
		cv.SetCell(row, 2, cell(cv.theme, c.Direction))
		cv.SetCell(row, 3, cell(cv.theme, media))
		cv.SetCell(row, 4, cell(cv.theme, conf))
		cv.SetCell(row, 5, cell(cv.theme, callTime(c)).SetAlign(tview.AlignRight))
	}
	cv.SetTitle(fmt.Sprintf(" Calls (%d) ", len(calls)))
}

func callTime(c model.Call) string {
	if c.Started.IsZero() {
		return "-"
	}
	return time.Since(c.Started).Round(time.Second).String()
}

// Selected returns the selected call.
func (cv *CallsView) Selected() (model.Call, bool) {
	if idx := selectedIndex(cv.Table, len(cv.calls)); idx >= 0 {
		return cv.calls[idx], true
	}
	return model.Call{}, false
}
