package keys

import (
	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/ringcore/internal/tui/ui"
)

// Action represents a keybinding action.
type Action struct {
	Key     tcell.Key
	Rune    rune
	Label   string // key as shown in the menu, e.g. "a" or "Enter"
	Help    string
	Handler func()
	Visible bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Rune builds an action bound to a printable key.
func Rune(r rune, help string, handler func()) *Action {
	return &Action{Key: tcell.KeyRune, Rune: r, Label: string(r), Help: help, Handler: handler, Visible: true}
}

// Registry holds keybindings organized by scope. Bindings keep their
// registration order, which is also the order of the menu hints.
type Registry struct {
	global []*Action
	views  map[string][]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{
		views: make(map[string][]*Action),
	}
}

// AddGlobal registers a global keybinding.
func (r *Registry) AddGlobal(action *Action) {
	r.global = append(r.global, action)
}

// AddView registers a view-specific keybinding.
func (r *Registry) AddView(view string, action *Action) {
	r.views[view] = append(r.views[view], action)
}

// Hints returns the visible bindings of a view followed by the global
// ones.
func (r *Registry) Hints(view string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, a := range r.views[view] {
		if a.Visible {
			hints = append(hints, ui.MenuHint{Key: a.Label, Description: a.Help})
		}
	}
	for _, a := range r.global {
		if a.Visible {
			hints = append(hints, ui.MenuHint{Key: a.Label, Description: a.Help})
		}
	}
	return hints
}

// HandleEvent dispatches a key event to the matching action in the given
// view. View bindings shadow global ones. Returns true if a handler matched.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	for _, a := range r.views[view] {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	for _, a := range r.global {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	return false
}
