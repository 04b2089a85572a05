package call

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/model"
)

const (
	alice = "jami:00000000000000000000000000000000000000aa"
	bob   = "jami:00000000000000000000000000000000000000bb"
)

type countHooks struct{ n int }

func (h *countHooks) NoMoreCalls() { h.n++ }

func newTestEngine(t *testing.T) (*Engine, *countHooks) {
	t.Helper()
	h := &countHooks{}
	return NewEngine(nil, nil, h), h
}

func mustSimple(t *testing.T, e *Engine, callID string) {
	t.Helper()
	conf, ok := e.Conference(callID)
	require.True(t, ok, "call %s has no simple conference", callID)
	assert.True(t, conf.Simple)
	c, ok := e.Call(callID)
	require.True(t, ok)
	assert.Empty(t, c.ConfID)
}

func TestIncomingCallToConference(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Outgoing("acc", "c2", model.NewContact(bob), bob)
	require.NoError(t, err)
	_, err = e.Incoming("acc", "c1", model.NewContact(alice), alice)
	require.NoError(t, err)
	_, err = e.StateChanged("c1", "RINGING", 0)
	require.NoError(t, err)
	_, err = e.StateChanged("c1", "CURRENT", 0)
	require.NoError(t, err)

	changes, err := e.ConferenceCreated("conf1", []string{"c1", "c2"})
	require.NoError(t, err)

	confs := e.Conferences()
	require.Len(t, confs, 1)
	assert.Equal(t, "conf1", confs[0].ID)
	assert.Len(t, confs[0].Calls, 2)
	assert.False(t, confs[0].Simple)
	for _, id := range []string{"c1", "c2"} {
		_, ok := e.Conference(id)
		assert.False(t, ok, "simple wrapper for %s must be gone", id)
		c, _ := e.Call(id)
		assert.Equal(t, "conf1", c.ConfID)
	}

	removed := 0
	for _, ch := range changes {
		if ch.Kind == ConferenceRemoved {
			removed++
		}
	}
	assert.Equal(t, 2, removed)
}

func TestStateChangedStartsClock(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Incoming("acc", "c1", model.NewContact(alice), alice)
	require.NoError(t, err)

	c, _ := e.Call("c1")
	assert.Equal(t, StateRinging, c.State)
	assert.True(t, c.Started.IsZero())

	_, err = e.StateChanged("c1", "CURRENT", 0)
	require.NoError(t, err)
	c, _ = e.Call("c1")
	assert.False(t, c.Started.IsZero())
	conf, _ := e.Conference("c1")
	assert.Equal(t, "CURRENT", conf.State)
}

func TestConferenceAutoSplit(t *testing.T) {
	e, _ := newTestEngine(t)
	for _, id := range []string{"c1", "c2"} {
		_, err := e.Outgoing("acc", id, model.NewContact(alice), alice)
		require.NoError(t, err)
	}
	_, err := e.ConferenceCreated("conf1", []string{"c1", "c2"})
	require.NoError(t, err)

	_, err = e.ConferenceChanged("conf1", "ACTIVE_ATTACHED", []string{"c1"})
	require.NoError(t, err)

	_, ok := e.Conference("conf1")
	assert.False(t, ok, "conference with one foreign member must dissolve")
	mustSimple(t, e, "c1")
	mustSimple(t, e, "c2")
	assert.Len(t, e.Conferences(), 2)
}

func TestConferenceChangedAddsCalls(t *testing.T) {
	e, _ := newTestEngine(t)
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := e.Outgoing("acc", id, model.NewContact(alice), alice)
		require.NoError(t, err)
	}
	_, err := e.ConferenceCreated("conf1", []string{"c1", "c2"})
	require.NoError(t, err)

	_, err = e.ConferenceChanged("conf1", "ACTIVE_DETACHED", []string{"c1", "c2", "c3"})
	require.NoError(t, err)

	conf, ok := e.Conference("conf1")
	require.True(t, ok)
	assert.Len(t, conf.Calls, 3)
	assert.Equal(t, "ACTIVE_DETACHED", conf.State)
	_, ok = e.Conference("c3")
	assert.False(t, ok)
}

func TestConferenceRemovedRewrapsMembers(t *testing.T) {
	e, _ := newTestEngine(t)
	for _, id := range []string{"c1", "c2"} {
		_, err := e.Outgoing("acc", id, model.NewContact(alice), alice)
		require.NoError(t, err)
	}
	_, err := e.ConferenceCreated("conf1", []string{"c1", "c2"})
	require.NoError(t, err)

	changes, err := e.ConferenceRemoved("conf1")
	require.NoError(t, err)
	require.NotEmpty(t, changes)

	mustSimple(t, e, "c1")
	mustSimple(t, e, "c2")

	_, err = e.ConferenceRemoved("conf1")
	assert.ErrorIs(t, err, ErrUnknownConference)
}

func TestDetachLeavesOthers(t *testing.T) {
	e, _ := newTestEngine(t)
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := e.Outgoing("acc", id, model.NewContact(alice), alice)
		require.NoError(t, err)
	}
	_, err := e.ConferenceCreated("conf1", []string{"c1", "c2", "c3"})
	require.NoError(t, err)

	_, err = e.Detach("c3")
	require.NoError(t, err)
	mustSimple(t, e, "c3")

	conf, ok := e.Conference("conf1")
	require.True(t, ok)
	assert.Len(t, conf.Calls, 2)

	_, err = e.Detach("c2")
	require.NoError(t, err)
	conf, ok = e.Conference("conf1")
	require.True(t, ok, "detach never splits the remaining conference")
	assert.Len(t, conf.Calls, 1)
}

func TestHangUpBookkeeping(t *testing.T) {
	e, hooks := newTestEngine(t)
	for _, id := range []string{"c1", "c2"} {
		_, err := e.Outgoing("acc", id, model.NewContact(alice), alice)
		require.NoError(t, err)
	}
	_, err := e.ConferenceCreated("conf1", []string{"c1", "c2"})
	require.NoError(t, err)

	changes, err := e.StateChanged("c1", "HUNGUP", 0)
	require.NoError(t, err)
	_, ok := e.Call("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, hooks.n)

	var ended []Call
	for _, ch := range changes {
		if ch.Kind == CallEnded {
			ended = append(ended, ch.Call)
		}
	}
	require.Len(t, ended, 1)
	assert.Equal(t, StateHungup, ended[0].State)

	_, err = e.StateChanged("c2", "OVER", 0)
	require.NoError(t, err)
	assert.Empty(t, e.Conferences())
	assert.Empty(t, e.Calls())
	assert.Equal(t, 1, hooks.n)
}

func TestUnknownIDs(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.StateChanged("nope", "CURRENT", 0)
	assert.ErrorIs(t, err, ErrUnknownCall)
	_, err = e.ConferenceChanged("nope", "", nil)
	assert.ErrorIs(t, err, ErrUnknownConference)
	_, err = e.ConferenceCreated("conf", []string{"nope"})
	assert.ErrorIs(t, err, ErrUnknownCall)
	assert.Empty(t, e.Conferences())
}

func TestIncomingDuplicate(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Incoming("acc", "c1", model.NewContact(alice), alice)
	require.NoError(t, err)
	_, err = e.Incoming("acc", "c1", model.NewContact(alice), alice)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Len(t, e.Calls(), 1)
}

func TestConferenceInfo(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Outgoing("acc", "c1", model.NewContact(alice), alice)
	require.NoError(t, err)
	_, err = e.ConferenceInfo("c1", []Participant{
		{URI: alice, Active: true},
		{URI: bob, Recording: true},
	})
	require.NoError(t, err)

	conf, _ := e.Conference("c1")
	assert.Equal(t, alice, conf.Maximized)
	assert.True(t, conf.Recording)
}

func TestConferencesFor(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Outgoing("acc", "c1", model.NewContact(alice), alice)
	require.NoError(t, err)
	_, err = e.Outgoing("acc", "c2", model.NewContact(bob), bob)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, e.ConferencesFor("acc", alice))

	_, err = e.ConferenceCreated("conf1", []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"conf1"}, e.ConferencesFor("acc", alice))
	assert.Equal(t, []string{"conf1"}, e.ConferencesFor("acc", bob))
}

func TestPublishesEvents(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("call.", 10)
	defer unsub()

	e := NewEngine(b, nil, nil)
	_, err := e.Incoming("acc", "c1", model.NewContact(alice), alice)
	require.NoError(t, err)
	_, err = e.StateChanged("c1", "HUNGUP", 0)
	require.NoError(t, err)

	var kinds []string
	timeout := time.After(time.Second)
	for len(kinds) < 3 {
		select {
		case evt := <-ch:
			kinds = append(kinds, evt.Kind)
		case <-timeout:
			t.Fatalf("got %v before timeout", kinds)
		}
	}
	assert.Equal(t, []string{KindCallUpdated, KindCallUpdated, KindNoActiveCall}, kinds)
}

func TestCallRecord(t *testing.T) {
	start := time.Unix(1700000000, 0)
	c := Call{Direction: model.Incoming, Started: start, Ended: start.Add(90 * time.Second)}
	assert.Equal(t, model.CallRecord{Direction: model.Incoming, Duration: 90 * time.Second}, c.Record())

	missed := Call{Direction: model.Incoming}
	assert.True(t, missed.Record().Missed)
	assert.False(t, (&Call{Direction: model.Outgoing}).Missed())
}
