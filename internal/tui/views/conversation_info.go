package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/ringcore/internal/tui/model"
	"github.com/matheus3301/ringcore/internal/tui/ui"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(c model.Conversation) {
	ci.Clear()

	fg := ui.ColorName(ci.theme.FgColor)
	ct := ui.ColorName(ci.theme.CounterColor)

	kind := "Legacy (daemon text messages)"
	if c.Swarm {
		kind = "Swarm, " + c.Mode
	}
	last := formatTimestamp(c.LastEvent)
	if last == "" {
		last = "-"
	}
	confs := "-"
	if len(c.Conferences) > 0 {
		confs = strings.Join(c.Conferences, ", ")
	}

	rows := []struct{ label, value string }{
		{"Name:", c.Name()},
		{"Key:", c.Key},
		{"Type:", kind},
		{"Unread:", fmt.Sprint(c.Unread)},
		{"Last Active:", last},
		{"Last:", c.Preview()},
		{"Conferences:", confs},
	}
	_, _ = fmt.Fprint(ci, "\n")
	for _, r := range rows {
		_, _ = fmt.Fprintf(ci, " [%s::b]%-13s[-:-:-] [%s]%s[-]\n", fg, r.label, ct, tview.Escape(sanitizeForTerminal(r.value)))
	}
	_, _ = fmt.Fprintf(ci, "\n [%s::b]Members (%d)[-:-:-]\n", fg, len(c.Members))
	for _, m := range c.Members {
		_, _ = fmt.Fprintf(ci, "   [%s]%s[-]\n", ct, tview.Escape(m))
	}
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(sanitizeForTerminal(c.Name()))))
}
