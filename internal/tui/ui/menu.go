package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// menuRows is how many hints fit the header before wrapping into a
// second column.
const menuRows = 6

// Menu displays keyboard shortcut hints in up to two columns.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders menu hints, one per line, wrapping after menuRows.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()

	keyColor := colorName(m.theme.MenuKeyColor)
	numColor := colorName(m.theme.NumericKeyColor)

	cells := make([]string, len(hints))
	width := 0
	for i, h := range hints {
		kc := keyColor
		if h.Numeric {
			kc = numColor
		}
		cells[i] = fmt.Sprintf("[%s::b]<%s>[-:-:-] %s", kc, h.Key, h.Description)
		width = max(width, len(h.Key)+len(h.Description)+3)
	}

	rows := min(len(cells), menuRows)
	for r := 0; r < rows; r++ {
		line := cells[r]
		if second := r + menuRows; second < len(cells) {
			pad := width - (len(hints[r].Key) + len(hints[r].Description) + 3)
			line += strings.Repeat(" ", pad+2) + cells[second]
		}
		_, _ = fmt.Fprintln(m, line)
	}
}
