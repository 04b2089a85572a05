package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	core "github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/tui/model"
	"github.com/matheus3301/ringcore/internal/tui/ui"
)

// MessageThread displays one conversation's interactions and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	title    string
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := strings.TrimSpace(composer.GetText())
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.title != "" {
		return mt.title
	}
	return "Messages"
}

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// SetTitle updates the conversation name shown in the border.
func (mt *MessageThread) SetTitle(name string) {
	mt.title = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update renders the interactions, oldest first. names resolves member
// URIs to display names.
func (mt *MessageThread) Update(items []model.Interaction, hasMore bool, names func(uri string) string) {
	mt.messages.Clear()
	if hasMore {
		_, _ = fmt.Fprintf(mt.messages, "[%s::d]  (older messages: press L)[-:-:-]\n\n", ui.ColorName(mt.theme.EventColor))
	}
	for _, it := range items {
		_, _ = fmt.Fprint(mt.messages, mt.line(it, names))
	}
	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) line(it model.Interaction, names func(string) string) string {
	ts := formatTimestamp(it.Timestamp)
	switch core.Kind(it.Kind) {
	case core.KindText, core.KindDataTransfer:
		sender, color := "You", mt.theme.SelfColor
		if !it.Mine() {
			sender, color = names(it.Author), mt.theme.PeerColor
		}
		body := it.Preview()
		if it.OnlyEmoji {
			body = "[::b]" + tview.Escape(body) + "[-:-:-]"
		} else {
			body = tview.Escape(sanitizeForTerminal(body))
		}
		suffix := ""
		if it.Edited {
			suffix += " [::d](edited)[-:-:-]"
		}
		if it.Mine() {
			suffix += " " + statusMark(core.Status(it.Status))
		}
		return fmt.Sprintf("[%s::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			ui.ColorName(color), tview.Escape(sanitizeForTerminal(sender)), ts, suffix, body)
	case core.KindCall:
		color := mt.theme.EventColor
		if it.Missed {
			color = mt.theme.MissedColor
		}
		return fmt.Sprintf("[%s]  ☎ %s  %s[-]\n\n", ui.ColorName(color), it.Preview(), ts)
	default:
		text := it.Preview()
		if it.Peer != "" {
			text = strings.Replace(text, it.Peer, names(it.Peer), 1)
		}
		return fmt.Sprintf("[%s::i]  %s  %s[-:-:-]\n\n", ui.ColorName(mt.theme.EventColor), tview.Escape(text), ts)
	}
}

func statusMark(s core.Status) string {
	switch s {
	case core.StatusSending:
		return "[::d]…[-:-:-]"
	case core.StatusSuccess:
		return "[::d]✓[-:-:-]"
	case core.StatusDisplayed:
		return "✓✓"
	case core.StatusFailure, core.StatusCanceled:
		return "[red]✗[-]"
	}
	return ""
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
