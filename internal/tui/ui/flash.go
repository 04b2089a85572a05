package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

var flashTTL = map[FlashLevel]time.Duration{
	FlashInfo: 5 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  10 * time.Second,
}

// FlashMessage is one notification shown under the page stack.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the current notification. Action results and
// host-side failures all report through it.
type FlashModel struct {
	mu      sync.Mutex
	current FlashMessage
	now     func() time.Time
	watchCh chan FlashMessage
}

func NewFlashModel() *FlashModel {
	return &FlashModel{
		now:     time.Now,
		watchCh: make(chan FlashMessage, 8),
	}
}

func (f *FlashModel) Info(msg string) { f.set(msg, FlashInfo) }

func (f *FlashModel) Warn(msg string) { f.set(msg, FlashWarn) }

// Err reports a failed action as "what: err". A nil err is ignored.
func (f *FlashModel) Err(what string, err error) {
	if err == nil {
		return
	}
	f.set(what+": "+err.Error(), FlashErr)
}

// set replaces the current message. Repeating the message on screen
// only extends it, so retry loops do not flood the watch channel.
func (f *FlashModel) set(msg string, level FlashLevel) {
	now := f.now()
	fm := FlashMessage{Text: msg, Level: level, Expires: now.Add(flashTTL[level])}

	f.mu.Lock()
	repeat := f.current.Text == msg && f.current.Level == level && now.Before(f.current.Expires)
	f.current = fm
	f.mu.Unlock()
	if repeat {
		return
	}
	select {
	case f.watchCh <- fm:
	default:
	}
}

// Current returns the message on screen, or nil once it expired.
func (f *FlashModel) Current() *FlashMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current.Text == "" || f.now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// Watch delivers new messages as they are set.
func (f *FlashModel) Watch() <-chan FlashMessage {
	return f.watchCh
}

// FlashBar renders the current flash message.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// Update shows msg, or empties the bar for nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}
	color := fb.theme.FlashInfoColor
	switch msg.Level {
	case FlashWarn:
		color = fb.theme.FlashWarnColor
	case FlashErr:
		color = fb.theme.FlashErrColor
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", colorName(color), tview.Escape(msg.Text))
}
