package ui

import (
	"errors"
	"testing"
	"time"
)

func TestFlashRepeatOnlyExtends(t *testing.T) {
	f := NewFlashModel()
	clock := time.Unix(1700000000, 0)
	f.now = func() time.Time { return clock }

	f.Err("event stream", errors.New("connection refused"))
	clock = clock.Add(2 * time.Second)
	f.Err("event stream", errors.New("connection refused"))

	if n := len(f.Watch()); n != 1 {
		t.Errorf("watch got %d messages, want 1", n)
	}
	m := f.Current()
	if m == nil || m.Text != "event stream: connection refused" {
		t.Fatalf("Current() = %+v", m)
	}
	if want := clock.Add(10 * time.Second); !m.Expires.Equal(want) {
		t.Errorf("expires = %v, want %v", m.Expires, want)
	}

	f.Info("calling jami:aa")
	if n := len(f.Watch()); n != 2 {
		t.Errorf("watch got %d messages, want 2", n)
	}
}

func TestFlashExpires(t *testing.T) {
	f := NewFlashModel()
	clock := time.Unix(1700000000, 0)
	f.now = func() time.Time { return clock }

	if f.Current() != nil {
		t.Error("empty model returned a message")
	}
	f.Err("open", nil)
	if f.Current() != nil {
		t.Error("nil error produced a message")
	}
	f.Warn("usage: add <uri>")
	clock = clock.Add(9 * time.Second)
	if f.Current() != nil {
		t.Error("warning still shown after it expired")
	}
}
