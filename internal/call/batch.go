package call

import (
	"time"

	"github.com/matheus3301/ringcore/internal/bus"
)

// batch collects what one engine operation touched so changes are
// reported once, with the state at the end of the operation.
type batch struct {
	e           *Engine
	calls       []string
	confs       []string
	seen        map[string]bool
	removed     map[string]ConferenceSnapshot
	ended       []Call
	noMoreCalls bool
}

// begin locks the engine. commit or an early return must unlock it.
func (e *Engine) begin() *batch {
	e.mu.Lock()
	return &batch{
		e:       e,
		seen:    make(map[string]bool),
		removed: make(map[string]ConferenceSnapshot),
	}
}

func (b *batch) touchCall(id string) {
	if !b.seen["call/"+id] {
		b.seen["call/"+id] = true
		b.calls = append(b.calls, id)
	}
}

func (b *batch) touchConf(id string) {
	if !b.seen["conf/"+id] {
		b.seen["conf/"+id] = true
		b.confs = append(b.confs, id)
	}
}

func (b *batch) removeConf(conf *Conference) {
	b.removed[conf.ID] = conf.snapshot()
	delete(b.e.conferences, conf.ID)
	b.touchConf(conf.ID)
}

// wrap gives c its own simple conference.
func (b *batch) wrap(c *Call) {
	c.ConfID = ""
	b.e.conferences[c.ID] = &Conference{ID: c.ID, State: string(c.State), Members: []*Call{c}}
	b.touchConf(c.ID)
}

// unlink removes c from whatever conference holds it, dropping that
// conference when it becomes empty.
func (b *batch) unlink(c *Call) {
	conf := b.e.owner(c)
	if conf == nil {
		return
	}
	conf.remove(c.ID)
	if len(conf.Members) == 0 {
		b.removeConf(conf)
	} else {
		b.touchConf(conf.ID)
	}
}

// settle removes an empty conference and splits one left with a single
// call that does not share its id.
func (b *batch) settle(conf *Conference) {
	switch {
	case len(conf.Members) == 0:
		b.removeConf(conf)
	case len(conf.Members) == 1 && conf.Members[0].ID != conf.ID:
		sole := conf.Members[0]
		b.removeConf(conf)
		b.wrap(sole)
		b.touchCall(sole.ID)
	default:
		b.touchConf(conf.ID)
	}
}

// commit unlocks the engine, publishes the changes and runs hooks.
func (e *Engine) commit(b *batch) []Change {
	var changes []Change
	for _, id := range b.calls {
		if c, ok := e.calls[id]; ok {
			changes = append(changes, Change{Kind: CallUpdated, Call: *c})
		}
	}
	for _, c := range b.ended {
		changes = append(changes, Change{Kind: CallEnded, Call: c})
	}
	for _, id := range b.confs {
		if conf, ok := e.conferences[id]; ok {
			changes = append(changes, Change{Kind: ConferenceUpdated, Conference: conf.snapshot()})
		} else if snap, ok := b.removed[id]; ok {
			changes = append(changes, Change{Kind: ConferenceRemoved, Conference: snap})
		}
	}
	e.mu.Unlock()

	if e.bus != nil {
		now := time.Now()
		for _, ch := range changes {
			switch ch.Kind {
			case CallUpdated, CallEnded:
				e.bus.Publish(bus.Event{Kind: KindCallUpdated, Key: ch.Call.AccountID, Timestamp: now, Payload: ch.Call})
			case ConferenceUpdated:
				e.bus.Publish(bus.Event{Kind: KindConferenceUpdated, Timestamp: now, Payload: ch.Conference})
			case ConferenceRemoved:
				e.bus.Publish(bus.Event{Kind: KindConferenceRemoved, Timestamp: now, Payload: ch.Conference})
			}
		}
		if b.noMoreCalls {
			e.bus.Publish(bus.Event{Kind: KindNoActiveCall, Timestamp: now})
		}
	}
	if b.noMoreCalls && e.hooks != nil {
		e.hooks.NoMoreCalls()
	}
	return changes
}
