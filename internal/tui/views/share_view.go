package views

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/rivo/tview"

	"github.com/matheus3301/ringcore/internal/tui/ui"
)

// ShareView shows the active account's address as a QR code so another
// device can add it as a contact.
type ShareView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewShareView creates a new share view.
func NewShareView(theme *ui.Theme) *ShareView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Share Account ")
	tv.SetTitleColor(theme.TitleColor)

	return &ShareView{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (sv *ShareView) Name() string { return "Share" }

// Hints implements Component.
func (sv *ShareView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// ShowAccount renders uri as a scannable QR block.
func (sv *ShareView) ShowAccount(uri, registration string) {
	sv.Clear()
	if uri == "" {
		_, _ = fmt.Fprint(sv, "\n\nNo account loaded yet.")
		return
	}
	_, _ = fmt.Fprintf(sv, "\n  Scan to add this account:\n\n%s\n  [::b]%s[-:-:-]\n  [::d]registration: %s",
		RenderQR(uri), tview.Escape(uri), registration)
}

// RenderQR converts a string to a compact QR code using Unicode
// half-block characters. Two bitmap rows become one terminal line.
func RenderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	qr.DisableBorder = false

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x] // true = black module
			bot := y+1 < rows && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('\u2588') // █
			case top:
				sb.WriteRune('\u2580') // ▀
			case bot:
				sb.WriteRune('\u2584') // ▄
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
