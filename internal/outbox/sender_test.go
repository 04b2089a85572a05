package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/account"
	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/ring/ringtest"
	"github.com/matheus3301/ringcore/internal/store"
)

const (
	peerURI  = "jami:abcdefabcdefabcdefabcdefabcdefabcdefabcd"
	selfURI  = "jami:1111111111111111111111111111111111111111"
	swarmKey = "swarm:5e1f"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixture struct {
	db  *store.DB
	rec *ringtest.Recorder
	bus *bus.Bus
	acc *account.Account
	s   *Sender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: testDB(t), rec: ringtest.New(), bus: bus.New()}
	logger, _ := zap.NewDevelopment()
	f.acc = account.New(account.Config{ID: "acc", URI: selfURI}, f.rec, f.bus, logger)
	scope := ring.Scope{AccountID: "acc"}
	f.acc.Apply(ring.ContactAdded{Scope: scope, URI: peerURI, Confirmed: true})
	f.acc.Apply(ring.ConversationReady{Scope: scope, ConversationID: "5e1f", Members: []string{selfURI, peerURI}})
	timelines := func(id string) (Timeline, error) {
		if id != "acc" {
			return nil, account.ErrUnknownAccount
		}
		return f.acc, nil
	}
	f.s = NewSender(f.db, f.rec, timelines, f.bus, logger)
	return f
}

func waitEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return bus.Event{}
	}
}

func TestSenderSendsSwarmMessage(t *testing.T) {
	f := newFixture(t)
	ch, unsub := f.bus.Subscribe(KindSendAck, 10)
	defer unsub()

	id, err := f.s.Queue("acc", swarmKey, "hello")
	if err != nil {
		t.Fatal(err)
	}

	f.s.Start(context.Background())
	defer f.s.Stop()

	evt := waitEvent(t, ch)
	res := evt.Payload.(SendResult)
	if res.ClientMsgID != id || res.ConversationID != swarmKey {
		t.Errorf("ack = %+v, want client id %q in %q", res, id, swarmKey)
	}

	calls := f.rec.Invocations("SendMessage")
	if len(calls) != 1 {
		t.Fatalf("got %d SendMessage calls, want 1", len(calls))
	}
	if calls[0].Args[1] != "5e1f" || calls[0].Args[2] != "hello" {
		t.Errorf("args = %v, want [acc 5e1f hello]", calls[0].Args)
	}

	// Swarm messages show up once the daemon commits them.
	c, err := f.acc.Conversation(swarmKey)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("swarm has %d interactions, want 0 before commit", c.Len())
	}

	entry, err := f.db.GetOutbox(id)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != "sent" {
		t.Errorf("outbox status = %q, want sent", entry.Status)
	}
}

func TestSenderLegacyOptimisticInsert(t *testing.T) {
	f := newFixture(t)
	// Dropping the swarm sends the peer back to its legacy conversation.
	f.acc.Apply(ring.ConversationRemoved{Scope: ring.Scope{AccountID: "acc"}, ConversationID: "5e1f"})

	ch, unsub := f.bus.Subscribe(KindSendAck, 10)
	defer unsub()

	id, err := f.s.Queue("acc", peerURI, "optimistic")
	if err != nil {
		t.Fatal(err)
	}

	f.s.Start(context.Background())
	defer f.s.Stop()

	res := waitEvent(t, ch).Payload.(SendResult)
	if res.DaemonMsgID != "msg1" {
		t.Errorf("daemon id = %q, want msg1", res.DaemonMsgID)
	}

	calls := f.rec.Invocations("SendTextMessage")
	if len(calls) != 1 || calls[0].Args[1] != peerURI {
		t.Fatalf("SendTextMessage calls = %v, want one to %s", calls, peerURI)
	}

	c, err := f.acc.Conversation(peerURI)
	if err != nil {
		t.Fatal(err)
	}
	i, ok := c.Get(id)
	if !ok {
		t.Fatal("optimistic interaction missing")
	}
	if i.Text() != "optimistic" {
		t.Errorf("body = %q, want optimistic", i.Text())
	}
	if i.DaemonID != "msg1" || i.Status != model.StatusSending {
		t.Errorf("interaction = {%s %s}, want {msg1 sending}", i.DaemonID, i.Status)
	}
	if i.IsIncoming() {
		t.Error("outgoing interaction has an author")
	}
}

func TestSenderHandlesFailure(t *testing.T) {
	f := newFixture(t)
	f.acc.Apply(ring.ConversationRemoved{Scope: ring.Scope{AccountID: "acc"}, ConversationID: "5e1f"})
	f.rec.Fail("SendTextMessage", errors.New("network error"))

	ch, unsub := f.bus.Subscribe(KindSendFailed, 10)
	defer unsub()

	id, err := f.s.Queue("acc", peerURI, "will-fail")
	if err != nil {
		t.Fatal(err)
	}

	f.s.Start(context.Background())
	defer f.s.Stop()

	res := waitEvent(t, ch).Payload.(SendResult)
	if res.Error == "" {
		t.Error("failure event has no error")
	}

	pending, err := f.db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0 (should be marked failed)", len(pending))
	}
	entry, err := f.db.GetOutbox(id)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Status != "failed" || entry.ErrorMessage == "" {
		t.Errorf("outbox = {%s %q}, want failed with a message", entry.Status, entry.ErrorMessage)
	}

	c, err := f.acc.Conversation(peerURI)
	if err != nil {
		t.Fatal(err)
	}
	i, ok := c.Get(id)
	if !ok {
		t.Fatal("optimistic interaction missing")
	}
	if i.Status != model.StatusFailure {
		t.Errorf("status = %q, want failure", i.Status)
	}
}

func TestQueueRejectsUnknownTargets(t *testing.T) {
	f := newFixture(t)

	if _, err := f.s.Queue("other", peerURI, "x"); !errors.Is(err, account.ErrUnknownAccount) {
		t.Errorf("unknown account: err = %v", err)
	}
	if _, err := f.s.Queue("acc", "swarm:dead", "x"); !errors.Is(err, account.ErrUnknownConversation) {
		t.Errorf("unknown conversation: err = %v", err)
	}
	pending, err := f.db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending, want 0", len(pending))
	}
}
