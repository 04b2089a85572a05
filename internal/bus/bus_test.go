package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("host.", 10)
	defer unsub()

	b.Publish(Event{Kind: "host.status_changed", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "host.status_changed" {
			t.Errorf("got kind %q, want host.status_changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	b.Publish(Event{Kind: "host.status_changed"})
	b.Publish(Event{Kind: "conversation.updated", Key: "acc1"})

	select {
	case evt := <-ch:
		if evt.Kind != "conversation.updated" {
			t.Errorf("got kind %q, want conversation.updated", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure session event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("host.", 10)
	unsub()

	b.Publish(Event{Kind: "host.status_changed"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}

func TestRetainedReplay(t *testing.T) {
	b := New()
	b.Publish(NewEvent("conversation.list_changed", "acc1", 1).Retained())
	b.Publish(NewEvent("conversation.list_changed", "acc1", 2).Retained())
	b.Publish(NewEvent("conversation.list_changed", "acc2", 3).Retained())
	b.Publish(NewEvent("interaction.added", "acc1", 4))

	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	got := map[any]bool{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-ch:
			got[evt.Payload] = true
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for retained event")
		}
	}
	if !got[2] || !got[3] {
		t.Errorf("replayed payloads = %v, want latest per key (2 and 3)", got)
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLatestAndForget(t *testing.T) {
	b := New()
	b.Publish(NewEvent("host.status_changed", "", "READY").Retained())
	b.Publish(NewEvent("account.unread_changed", "acc1", 5).Retained())

	evt, ok := b.Latest("account.unread_changed", "acc1")
	if !ok || evt.Payload != 5 {
		t.Fatalf("Latest() = %v, %v", evt, ok)
	}

	b.Forget("acc1")
	if _, ok := b.Latest("account.unread_changed", "acc1"); ok {
		t.Error("Forget() left retained event behind")
	}
	if _, ok := b.Latest("host.status_changed", ""); !ok {
		t.Error("Forget() removed an unrelated key")
	}
}
