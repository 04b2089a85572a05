package ui

import "testing"

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.Activate(PromptCommand)
	p.remember("search foo")
	p.remember("calls")
	p.remember("calls")

	if len(p.history) != 2 {
		t.Fatalf("history = %v, want duplicates collapsed", p.history)
	}

	p.browse(-1)
	if got := p.GetText(); got != "calls" {
		t.Errorf("first step back = %q, want %q", got, "calls")
	}
	p.browse(-1)
	p.browse(-1)
	if got := p.GetText(); got != "search foo" {
		t.Errorf("oldest = %q, want %q", got, "search foo")
	}
	p.browse(1)
	p.browse(1)
	if got := p.GetText(); got != "" {
		t.Errorf("past newest = %q, want empty", got)
	}
}

func TestFilterModeKeepsNoHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.Activate(PromptFilter)
	p.remember("alice")
	if len(p.history) != 0 {
		t.Errorf("filter text recorded in history: %v", p.history)
	}
}

func TestPagesRaise(t *testing.T) {
	p := NewPages()
	for _, name := range []string{"conversations", "thread", "info"} {
		p.AddPage(name, NewMenu(DefaultTheme()), true, false)
	}
	p.Push("conversations")
	p.Push("thread")
	p.Push("info")

	p.Raise("thread")
	if got := p.Stack(); len(got) != 2 || got[1] != "thread" {
		t.Errorf("stack after Raise(thread) = %v", got)
	}
	p.Raise("info")
	if p.Current() != "info" || p.Depth() != 3 {
		t.Errorf("Raise of a page not on the stack should push, stack = %v", p.Stack())
	}
}
