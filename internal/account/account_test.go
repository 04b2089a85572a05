package account

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/call"
	"github.com/matheus3301/ringcore/internal/conversation"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/ring/ringtest"
)

const (
	selfHex  = "1111111111111111111111111111111111111111"
	peerHex  = "abcdefabcdefabcdefabcdefabcdefabcdefabcd"
	selfURI  = "jami:" + selfHex
	peerURI  = "jami:" + peerHex
	swarmID  = "5e1f"
	swarmKey = "swarm:5e1f"
)

func scope() ring.Scope { return ring.Scope{AccountID: "acc"} }

func newAccount(t *testing.T) (*Account, *ringtest.Recorder, *bus.Bus) {
	t.Helper()
	rec := ringtest.New()
	b := bus.New()
	a := New(Config{ID: "acc", URI: selfURI, BackfillPage: 10}, rec, b, nil)
	return a, rec, b
}

func keys(cs []*conversation.Conversation) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Key())
	}
	return out
}

func textRecord(id, parent, author string) map[string]string {
	return map[string]string{
		model.RecordID:               id,
		model.RecordType:             model.TypeText,
		model.RecordAuthor:           author,
		model.RecordLinearizedParent: parent,
		model.RecordBody:             "body of " + id,
		model.RecordTimestamp:        "1700000000",
	}
}

func ready(a *Account) {
	a.Apply(ring.ConversationReady{
		Scope:          scope(),
		ConversationID: swarmID,
		Mode:           0,
		Members:        []string{selfURI, peerURI},
	})
}

func TestContactsAreUniquePerCanonicalURI(t *testing.T) {
	a, _, _ := newAccount(t)

	a.Apply(ring.ContactAdded{Scope: scope(), URI: strings.ToUpper(peerHex), Confirmed: true})
	a.Apply(ring.ContactAdded{Scope: scope(), URI: "ring:" + peerHex, Confirmed: true})

	contacts := a.Contacts().Contacts()
	require.Len(t, contacts, 1)
	assert.Equal(t, peerURI, contacts[0].Key())
	assert.Equal(t, []string{peerURI}, keys(a.Conversations()))
}

func TestContactAddedPromotesLegacyConversation(t *testing.T) {
	a, _, _ := newAccount(t)

	a.Apply(ring.ContactAdded{Scope: scope(), URI: peerURI, Confirmed: true})

	c, err := a.Conversation(peerURI)
	require.NoError(t, err)
	history := c.History()
	require.Len(t, history, 1)
	ev, ok := history[0].Payload.(model.ContactEvent)
	require.True(t, ok)
	assert.Equal(t, model.ContactAdded, ev.Event)
	assert.Equal(t, 0, a.UnreadTotal())
}

func TestOneToOneSwarmReplacesLegacyConversation(t *testing.T) {
	a, _, _ := newAccount(t)
	a.Apply(ring.ContactAdded{Scope: scope(), URI: peerURI, Confirmed: true})
	require.Equal(t, []string{peerURI}, keys(a.Conversations()))

	ready(a)

	assert.Equal(t, []string{swarmKey}, keys(a.Conversations()))
	ct, ok := a.Contacts().Find(peerURI)
	require.True(t, ok)
	assert.Equal(t, swarmKey, ct.ConversationURI())

	// A contact represented by a swarm is not promoted again.
	a.Apply(ring.ContactAdded{Scope: scope(), URI: peerURI, Confirmed: true})
	assert.Equal(t, []string{swarmKey}, keys(a.Conversations()))

	a.Apply(ring.ConversationRemoved{Scope: scope(), ConversationID: swarmID})

	assert.Equal(t, []string{peerURI}, keys(a.Conversations()))
	assert.Equal(t, peerURI, ct.ConversationURI())
	_, err := a.Conversation(swarmKey)
	assert.ErrorIs(t, err, ErrUnknownConversation)
}

func TestTrustRequestAccept(t *testing.T) {
	a, rec, _ := newAccount(t)
	a.Apply(ring.TrustRequestReceived{Scope: scope(), From: peerURI, Received: 1700000000})
	a.Apply(ring.TrustRequestReceived{Scope: scope(), From: peerHex, Received: 1700000001})

	require.Len(t, a.Requests(), 1)
	assert.Equal(t, []string{peerURI}, keys(a.Pending()))
	assert.Empty(t, a.Conversations())

	require.NoError(t, a.AcceptRequest(context.Background(), peerURI))

	assert.Len(t, rec.Invocations("AcceptTrustRequest"), 1)
	assert.Empty(t, a.Requests())
	assert.Empty(t, a.Pending())
	assert.Equal(t, []string{peerURI}, keys(a.Conversations()))
	ct, _ := a.Contacts().Find(peerURI)
	assert.Equal(t, model.TrustConfirmed, ct.Status())
}

func TestTrustRequestAcceptFailureKeepsRequest(t *testing.T) {
	a, rec, _ := newAccount(t)
	a.Apply(ring.TrustRequestReceived{Scope: scope(), From: peerURI, Received: 1700000000})
	rec.Fail("AcceptTrustRequest", errors.New("daemon busy"))

	err := a.AcceptRequest(context.Background(), peerURI)

	require.Error(t, err)
	assert.Len(t, a.Requests(), 1)
	assert.Equal(t, []string{peerURI}, keys(a.Pending()))
	assert.Empty(t, a.Conversations())
}

func TestTrustRequestDiscard(t *testing.T) {
	a, rec, b := newAccount(t)
	events, unsub := b.Subscribe("history.", 8)
	defer unsub()
	a.Apply(ring.TrustRequestReceived{Scope: scope(), From: peerURI, Received: 1700000000})

	require.NoError(t, a.DiscardRequest(context.Background(), peerURI))

	assert.Len(t, rec.Invocations("DiscardTrustRequest"), 1)
	assert.Empty(t, a.Requests())
	assert.Empty(t, a.Pending())
	_, err := a.Conversation(peerURI)
	assert.ErrorIs(t, err, ErrUnknownConversation)
	select {
	case ev := <-events:
		assert.Equal(t, KindHistoryCleared, ev.Kind)
	default:
		t.Fatal("expected history.clear")
	}
}

func TestUnknownRequest(t *testing.T) {
	a, rec, _ := newAccount(t)

	err := a.AcceptRequest(context.Background(), peerURI)

	assert.ErrorIs(t, err, ErrUnknownRequest)
	assert.Empty(t, rec.Invocations("AcceptTrustRequest"))
}

func TestConversationRequestAccept(t *testing.T) {
	a, rec, _ := newAccount(t)
	a.Apply(ring.ConversationRequestReceived{Scope: scope(), ConversationID: swarmID, From: peerURI, Received: 1700000000})

	require.Equal(t, []string{swarmKey}, keys(a.Pending()))
	c, err := a.Conversation(swarmKey)
	require.NoError(t, err)
	assert.Equal(t, conversation.ModeRequest, c.Mode())

	require.NoError(t, a.AcceptRequest(context.Background(), swarmKey))

	inv := rec.Invocations("AcceptConversationRequest")
	require.Len(t, inv, 1)
	assert.Equal(t, []any{"acc", swarmID}, inv[0].Args)
	assert.Empty(t, a.Pending())
	assert.Equal(t, []string{swarmKey}, keys(a.Conversations()))
	assert.Equal(t, conversation.ModeSyncing, c.Mode())
}

func TestSwarmMessagesAndMarkRead(t *testing.T) {
	a, rec, b := newAccount(t)
	ready(a)

	a.Apply(ring.MessageReceived{Scope: scope(), ConversationID: swarmID, Message: textRecord("m1", "", peerURI)})
	a.Apply(ring.MessageReceived{Scope: scope(), ConversationID: swarmID, Message: textRecord("m2", "m1", peerURI)})
	a.Apply(ring.MessageReceived{Scope: scope(), ConversationID: swarmID, Message: textRecord("m2", "m1", peerURI)})

	assert.Equal(t, 2, a.UnreadTotal())
	ev, ok := b.Latest(KindUnreadChanged, "acc")
	require.True(t, ok)
	assert.Equal(t, 2, ev.Payload.(UnreadChanged).Total)

	require.NoError(t, a.MarkRead(context.Background(), swarmKey))

	assert.Equal(t, 0, a.UnreadTotal())
	inv := rec.Invocations("SetMessageDisplayed")
	require.Len(t, inv, 1)
	assert.Equal(t, []any{"acc", swarmID, "m2"}, inv[0].Args)
}

func TestVisibleConversationStaysRead(t *testing.T) {
	a, _, _ := newAccount(t)
	ready(a)
	require.NoError(t, a.SetVisible(swarmKey, true))

	a.Apply(ring.MessageReceived{Scope: scope(), ConversationID: swarmID, Message: textRecord("m1", "", peerURI)})

	assert.Equal(t, 0, a.UnreadTotal())
	c, _ := a.Conversation(swarmKey)
	assert.Equal(t, "m1", c.LastRead())
}

func TestLegacyMessageFromStrangerIsPending(t *testing.T) {
	a, _, _ := newAccount(t)

	a.Apply(ring.IncomingMessage{
		Scope:    scope(),
		From:     peerHex,
		MsgID:    "d1",
		Payloads: map[string]string{"text/plain": "hi"},
	})
	a.Apply(ring.IncomingMessage{
		Scope:    scope(),
		From:     peerHex,
		MsgID:    "d1",
		Payloads: map[string]string{"text/plain": "hi"},
	})

	assert.Empty(t, a.Conversations())
	require.Equal(t, []string{peerURI}, keys(a.Pending()))
	c, _ := a.Conversation(peerURI)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, a.UnreadTotal())
}

func TestLegacyTrafficFromSwarmPeerStaysOutOfPending(t *testing.T) {
	a, _, _ := newAccount(t)
	a.Apply(ring.ContactAdded{Scope: scope(), URI: peerURI, Confirmed: true})
	ready(a)

	a.Apply(ring.IncomingMessage{
		Scope:    scope(),
		From:     peerHex,
		MsgID:    "d1",
		Payloads: map[string]string{"text/plain": "hi"},
	})
	ct, ok := a.Contacts().Find(peerURI)
	require.True(t, ok)
	a.OnCallEnded(call.Call{
		ID:             "c1",
		AccountID:      "acc",
		ConversationID: peerURI,
		Peer:           ct,
		Direction:      model.Incoming,
		Created:        time.Unix(1700000000, 0),
	})

	assert.Equal(t, []string{swarmKey}, keys(a.Conversations()))
	assert.Empty(t, a.Pending())
	legacy, err := a.Conversation(peerURI)
	require.NoError(t, err)
	assert.Equal(t, 3, legacy.Len())
}

func TestLoadMoreRequestsNewestPage(t *testing.T) {
	a, rec, _ := newAccount(t)
	ready(a)

	bf, err := a.LoadMore(context.Background(), swarmKey)
	require.NoError(t, err)
	again, err := a.LoadMore(context.Background(), swarmKey)
	require.NoError(t, err)
	assert.Same(t, bf, again)

	require.Eventually(t, func() bool {
		return len(rec.LoadRequestIDs()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []any{"acc", swarmID, "", 10}, rec.Invocations("LoadConversationMessages")[0].Args)
	reqID := rec.LoadRequestIDs()[0]

	// A page loaded for someone else leaves the back-fill open.
	a.Apply(ring.ConversationLoaded{Scope: scope(), RequestID: reqID + 100, ConversationID: swarmID})
	select {
	case <-bf.Done():
		t.Fatal("back-fill settled by an unrelated page")
	default:
	}

	a.Apply(ring.ConversationLoaded{
		Scope:          scope(),
		RequestID:      reqID,
		ConversationID: swarmID,
		Messages: []map[string]string{
			textRecord("m2", "m1", peerURI),
			textRecord("m1", "", selfURI),
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bf.Wait(ctx))
	c, _ := a.Conversation(swarmKey)
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.IsLoaded())
}

func TestBackfillMatchesRepliesInAnyOrder(t *testing.T) {
	bf := newBackfill(swarmKey, 2)

	assert.False(t, bf.deliver(7), "reply before its request returned")
	assert.True(t, bf.expect(7))
	assert.False(t, bf.settle(nil))

	assert.False(t, bf.expect(8))
	assert.False(t, bf.deliver(9))
	assert.True(t, bf.deliver(8))
	assert.True(t, bf.settle(nil))
	assert.NoError(t, bf.Err())
}

func TestLoadMoreFromMissingParents(t *testing.T) {
	a, rec, _ := newAccount(t)
	ready(a)
	a.Apply(ring.MessageReceived{Scope: scope(), ConversationID: swarmID, Message: textRecord("m9", "m8", peerURI)})

	_, err := a.LoadMore(context.Background(), swarmKey)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(rec.Invocations("LoadConversationMessages")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "m8", rec.Invocations("LoadConversationMessages")[0].Args[2])
}

func TestRemovingSwarmAbortsBackfill(t *testing.T) {
	a, _, _ := newAccount(t)
	ready(a)
	bf, err := a.LoadMore(context.Background(), swarmKey)
	require.NoError(t, err)

	a.Apply(ring.ConversationRemoved{Scope: scope(), ConversationID: swarmID})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, bf.Wait(ctx), ErrUnknownConversation)
}

func TestLoadMoreRejectsLegacy(t *testing.T) {
	a, _, _ := newAccount(t)
	a.Apply(ring.ContactAdded{Scope: scope(), URI: peerURI, Confirmed: true})

	_, err := a.LoadMore(context.Background(), peerURI)

	assert.ErrorIs(t, err, ErrNotSwarm)
}

func TestRegistrationIsRetained(t *testing.T) {
	a, _, b := newAccount(t)

	a.Apply(ring.RegistrationStateChanged{Scope: scope(), State: "REGISTERED"})

	assert.Equal(t, "REGISTERED", a.Registration())
	ev, ok := b.Latest(KindRegistration, "acc")
	require.True(t, ok)
	assert.Equal(t, "REGISTERED", ev.Payload.(RegistrationChanged).State)
}

func TestSet(t *testing.T) {
	s := NewSet()
	a, _, _ := newAccount(t)
	assert.Nil(t, s.Add(a))

	got, err := s.Get("acc")
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = s.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownAccount)
	assert.True(t, s.Remove("acc"))
	assert.Empty(t, s.List())
}
