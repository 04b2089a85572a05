package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// ProfileData holds what the header shows about the running profile.
type ProfileData struct {
	Profile       string
	Account       string
	Registration  string
	Status        string
	Conversations int64
	Unread        int64
	Calls         int
	Uptime        time.Duration
}

// ProfileInfo displays profile and account metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(data *ProfileData) {
	pi.Clear()
	if data == nil {
		return
	}

	fg := colorName(pi.theme.FgColor)
	counter := colorName(pi.theme.CounterColor)

	account := orDash(data.Account)
	if data.Registration != "" {
		account += " (" + data.Registration + ")"
	}

	rows := []struct {
		label string
		value string
	}{
		{"Profile:", data.Profile},
		{"Account:", tview.Escape(account)},
		{"Status:", orDash(data.Status)},
		{"Convs:", fmt.Sprintf("%d (%d unread)", data.Conversations, data.Unread)},
		{"Calls:", fmt.Sprint(data.Calls)},
		{"Uptime:", formatDuration(data.Uptime)},
	}
	for i, r := range rows {
		if i > 0 {
			_, _ = fmt.Fprint(pi, "\n")
		}
		_, _ = fmt.Fprintf(pi, "[%s::b]%-8s[-:-:-] [%s]%s[-]", fg, r.label, counter, r.value)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
