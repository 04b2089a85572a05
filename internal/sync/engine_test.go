package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/ringcore/internal/account"
	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/call"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/ring/ringtest"
	"github.com/matheus3301/ringcore/internal/status"
	"github.com/matheus3301/ringcore/internal/store"
)

const (
	selfURI  = "jami:1111111111111111111111111111111111111111"
	aliceURI = "jami:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bobURI   = "jami:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
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
	rec      *ringtest.Recorder
	bus      *bus.Bus
	host     *status.Host
	accounts *account.Set
	calls    *call.Engine
	engine   *Engine
}

func newFixture(t *testing.T, restorer Restorer) *fixture {
	t.Helper()
	f := &fixture{
		rec:      ringtest.New(),
		bus:      bus.New(),
		accounts: account.NewSet(),
	}
	f.host = status.NewHost(f.bus)
	f.calls = call.NewEngine(f.bus, nil, nil)
	f.rec.AccountList = []ring.AccountDetails{{ID: "acc", URI: selfURI, Enabled: true}}
	f.rec.ContactList["acc"] = []ring.ContactDetails{
		{URI: aliceURI, Confirmed: true, Added: 1700000000},
		{URI: bobURI, Confirmed: true, Added: 1700000000},
	}
	f.engine = NewEngine(f.rec, f.accounts, f.calls, f.bus, f.host, restorer, Options{}, nil)
	t.Cleanup(f.engine.Stop)
	return f
}

func (f *fixture) load(t *testing.T) *account.Account {
	t.Helper()
	if err := f.host.Transition(status.Connecting); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	a, err := f.accounts.Get("acc")
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.engine.Flush(ctx); err != nil {
		t.Fatal(err)
	}
}

func scope() ring.Scope { return ring.Scope{AccountID: "acc"} }

func TestLoadReachesReady(t *testing.T) {
	f := newFixture(t, nil)
	a := f.load(t)

	if got := f.host.Current(); got != status.Ready {
		t.Errorf("host = %s, want READY", got)
	}
	if n := len(a.Conversations()); n != 2 {
		t.Errorf("got %d conversations, want 2 (one per contact)", n)
	}
}

func TestLoadRequiresConnecting(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.engine.Load(context.Background()); err == nil {
		t.Fatal("Load from BOOTING should fail")
	}
}

func TestReloadDropsVanishedAccounts(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)

	f.rec.AccountList = nil
	if err := f.engine.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.accounts.Get("acc"); err == nil {
		t.Error("account still present after reload")
	}
}

func TestRouteAccountEventsInOrder(t *testing.T) {
	f := newFixture(t, nil)
	a := f.load(t)

	f.engine.Route(ring.TrustRequestReceived{Scope: scope(), From: "jami:cccccccccccccccccccccccccccccccccccccccc", Received: 1700000000})
	f.engine.Route(ring.ContactAdded{Scope: scope(), URI: "jami:cccccccccccccccccccccccccccccccccccccccc", Confirmed: true})
	f.engine.Route(ring.ContactAdded{Scope: ring.Scope{AccountID: "ghost"}, URI: aliceURI})
	f.flush(t)

	if n := len(a.Requests()); n != 0 {
		t.Errorf("got %d requests, want 0 after contact added", n)
	}
	if n := len(a.Conversations()); n != 3 {
		t.Errorf("got %d conversations, want 3", n)
	}
}

func TestEndedCallLeavesRecord(t *testing.T) {
	f := newFixture(t, nil)
	a := f.load(t)

	f.engine.Route(ring.IncomingCall{Scope: scope(), CallID: "c1", From: aliceURI})
	f.engine.Route(ring.CallStateChanged{Scope: scope(), CallID: "c1", State: "CURRENT"})
	f.engine.Route(ring.CallStateChanged{Scope: scope(), CallID: "c1", State: "OVER"})
	f.flush(t)

	c, err := a.Conversation(aliceURI)
	if err != nil {
		t.Fatal(err)
	}
	var rec *model.CallRecord
	for _, i := range c.History() {
		if p, ok := i.Payload.(model.CallRecord); ok {
			rec = &p
		}
	}
	if rec == nil {
		t.Fatal("no call record in history")
	}
	if rec.Missed || rec.Direction != model.Incoming {
		t.Errorf("record = %+v, want answered incoming", rec)
	}
	if len(f.calls.Calls()) != 0 {
		t.Error("call still live")
	}
}

func TestConferenceMirroredOnConversations(t *testing.T) {
	f := newFixture(t, nil)
	a := f.load(t)

	f.engine.Route(ring.IncomingCall{Scope: scope(), CallID: "c1", From: aliceURI})
	f.engine.Route(ring.IncomingCall{Scope: scope(), CallID: "c2", From: bobURI})
	f.engine.Route(ring.ConferenceCreated{Scope: scope(), ConfID: "conf1", Participants: []string{"c1", "c2"}})
	f.flush(t)

	for _, peer := range []string{aliceURI, bobURI} {
		c, err := a.Conversation(peer)
		if err != nil {
			t.Fatal(err)
		}
		got := c.Conferences()
		if len(got) != 1 || got[0] != "conf1" {
			t.Errorf("%s conferences = %v, want [conf1]", peer, got)
		}
	}

	f.engine.Route(ring.CallStateChanged{Scope: scope(), CallID: "c2", State: "HUNGUP"})
	f.flush(t)

	c, _ := a.Conversation(bobURI)
	if got := c.Conferences(); len(got) != 0 {
		t.Errorf("bob conferences = %v, want none", got)
	}
}

func TestCallMessageGoesToCallConversation(t *testing.T) {
	f := newFixture(t, nil)
	a := f.load(t)

	f.engine.Route(ring.IncomingCall{Scope: scope(), CallID: "c1", From: aliceURI})
	f.engine.Route(ring.IncomingMessage{Scope: scope(), CallID: "c1", From: aliceURI, MsgID: "d1", Payloads: map[string]string{"text/plain": "can you hear me"}})
	f.engine.Route(ring.IncomingMessage{Scope: scope(), CallID: "nope", From: aliceURI, MsgID: "d2", Payloads: map[string]string{"text/plain": "lost"}})
	f.flush(t)

	c, _ := a.Conversation(aliceURI)
	found := false
	for _, i := range c.History() {
		if i.Text() == "can you hear me" {
			found = true
		}
		if i.Text() == "lost" {
			t.Error("message for unknown call was applied")
		}
	}
	if !found {
		t.Error("call message missing")
	}
}

func TestPlaceCall(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)

	id, err := f.engine.PlaceCall(context.Background(), "acc", aliceURI)
	if err != nil {
		t.Fatal(err)
	}
	c, ok := f.calls.Call(id)
	if !ok {
		t.Fatalf("call %s not tracked", id)
	}
	if c.Direction != model.Outgoing || c.ConversationID != aliceURI {
		t.Errorf("call = %+v", c)
	}
}

func TestUnknownCallerIsLookedUp(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)
	const carol = "jami:cccccccccccccccccccccccccccccccccccccccc"

	f.engine.Route(ring.IncomingCall{Scope: scope(), CallID: "c1", From: carol})

	deadline := time.Now().Add(time.Second)
	for {
		var found bool
		for _, inv := range f.rec.Invocations("LookupAddress") {
			if inv.Args[1] == carol {
				found = true
			}
		}
		if found {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no name lookup for the caller")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCallCommandsAfterStop(t *testing.T) {
	f := newFixture(t, nil)
	f.load(t)
	f.engine.Route(ring.IncomingCall{Scope: scope(), CallID: "c1", From: aliceURI})
	f.flush(t)

	f.engine.Stop()
	f.engine.Stop()

	// Late commands still reach the call engine but queue nothing.
	f.engine.Route(ring.CallStateChanged{Scope: scope(), CallID: "c1", State: "OVER"})
	if _, err := f.engine.PlaceCall(context.Background(), "acc", bobURI); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Flush(context.Background()); err != nil {
		t.Errorf("Flush after Stop = %v", err)
	}
}
