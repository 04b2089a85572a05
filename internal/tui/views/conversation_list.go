package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/ringcore/internal/tui/model"
	"github.com/matheus3301/ringcore/internal/tui/ui"
)

// ConversationList is the main conversation table of the active account.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	convs   []model.Conversation
	visible []model.Conversation
	filter  string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	return &ConversationList{
		Table: newTable(theme, " Conversations "),
		theme: theme,
	}
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Hints implements Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "0-9", Description: "Jump", Numeric: true},
	}
}

// Update refreshes the list, keeping the selected conversation selected.
func (cl *ConversationList) Update(convs []model.Conversation) {
	selected := cl.SelectedKey()
	cl.convs = convs
	cl.render()
	for i, c := range cl.visible {
		if c.Key == selected {
			cl.Select(i+1, 0)
			break
		}
	}
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.SetFilter("")
}

func (cl *ConversationList) matches(c model.Conversation) bool {
	return cl.filter == "" || containsFold(c.Name(), cl.filter) || containsFold(c.Preview(), cl.filter)
}

func (cl *ConversationList) render() {
	cl.Clear()
	setHeader(cl.Table, cl.theme, []column{
		{" NAME", 1},
		{" LAST", 2},
		{" TIME", 0},
		{" MODE", 0},
	})

	cl.visible = cl.visible[:0]
	for _, c := range cl.convs {
		if !cl.matches(c) {
			continue
		}
		cl.visible = append(cl.visible, c)
		row := len(cl.visible)

		name := c.Name()
		if c.Unread > 0 {
			name = fmt.Sprintf("(%d) %s", c.Unread, name)
		}
		if len(c.Conferences) > 0 {
			name = "☎ " + name
		}
		mode := c.Mode
		if !c.Swarm {
			mode = "legacy"
		}

		cl.SetCell(row, 0, cell(cl.theme, name).SetExpansion(1))
		cl.SetCell(row, 1, cell(cl.theme, c.Preview()).SetExpansion(2))
		cl.SetCell(row, 2, cell(cl.theme, formatTimestamp(c.LastEvent)).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, cell(cl.theme, mode).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.visible), len(cl.convs), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// SelectedKey returns the key of the selected conversation.
func (cl *ConversationList) SelectedKey() string {
	if idx := selectedIndex(cl.Table, len(cl.visible)); idx >= 0 {
		return cl.visible[idx].Key
	}
	return ""
}

// KeyByIndex returns the key of the Nth visible conversation (1-based).
func (cl *ConversationList) KeyByIndex(n int) string {
	if n < 1 || n > len(cl.visible) {
		return ""
	}
	return cl.visible[n-1].Key
}
