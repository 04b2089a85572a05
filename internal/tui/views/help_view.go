package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/ringcore/internal/tui/ui"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

var helpSections = []struct {
	title string
	keys  [][2]string
}{
	{"Global", [][2]string{
		{":", "Command mode"},
		{"/", "Filter conversations"},
		{"?", "Help"},
		{"c", "Calls"},
		{"r", "Trust requests"},
		{"S", "Share account QR"},
		{"Esc", "Go back"},
		{"q", "Quit"},
	}},
	{"Conversation List", [][2]string{
		{"Enter", "Open conversation"},
		{"1-9", "Jump to Nth conversation"},
		{"0", "Clear filter"},
	}},
	{"Thread", [][2]string{
		{"i", "Focus composer"},
		{"d", "Conversation details"},
		{"p", "Call this conversation"},
		{"L", "Load older history"},
	}},
	{"Calls", [][2]string{
		{"a", "Accept"},
		{"x", "Refuse"},
		{"h", "Hang up"},
		{"o", "Hold / resume"},
		{"m", "Mute / unmute audio"},
		{"v", "Mute / unmute video"},
	}},
	{"Requests", [][2]string{
		{"a", "Accept"},
		{"x", "Discard"},
	}},
	{"Commands", [][2]string{
		{":search <query>", "Search history"},
		{":open <name>", "Open conversation by name"},
		{":call <uri>", "Call an address"},
		{":add <uri>", "Add a contact"},
		{":account <id>", "Switch account"},
		{":quit", "Quit"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.ColorName(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, k := range s.keys {
			fmt.Fprintf(&b, "  [%s]%-18s[-:-:-] %s\n", kc, tview.Escape(k[0]), k[1])
		}
	}
	_, _ = fmt.Fprint(hv, b.String())
}
