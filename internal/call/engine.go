package call

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/model"
)

var (
	ErrUnknownCall       = errors.New("unknown call")
	ErrUnknownConference = errors.New("unknown conference")
	ErrDuplicate         = errors.New("call already known")
)

// Bus event kinds published by the engine.
const (
	KindCallUpdated       = "call.updated"
	KindNoActiveCall      = "call.none_active"
	KindConferenceUpdated = "conference.updated"
	KindConferenceRemoved = "conference.removed"
)

// Hooks lets the host react to engine-wide transitions.
type Hooks interface {
	// NoMoreCalls is called once the last live call ends.
	NoMoreCalls()
}

// HooksFunc adapts a function to Hooks.
type HooksFunc func()

func (f HooksFunc) NoMoreCalls() { f() }

// ChangeKind tells what a Change describes.
type ChangeKind int

const (
	CallUpdated ChangeKind = iota
	CallEnded
	ConferenceUpdated
	ConferenceRemoved
)

// Change is one observable effect of an engine operation. Call and
// Conference are copies taken when the operation completed.
type Change struct {
	Kind       ChangeKind
	Call       Call
	Conference ConferenceSnapshot
}

// ConferenceSnapshot is a copy of a conference and its calls.
type ConferenceSnapshot struct {
	ID           string
	State        string
	Simple       bool
	Calls        []Call
	Participants []Participant
	Maximized    string
	Recording    bool
}

// Engine tracks every live call and conference across accounts. Calls
// and conferences are created and destroyed only in response to daemon
// notifications; the daemon is authoritative.
type Engine struct {
	mu          sync.Mutex
	calls       map[string]*Call
	conferences map[string]*Conference

	bus    *bus.Bus
	logger *zap.Logger
	hooks  Hooks
}

// NewEngine creates an engine. hooks may be nil.
func NewEngine(b *bus.Bus, logger *zap.Logger, hooks Hooks) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		calls:       make(map[string]*Call),
		conferences: make(map[string]*Conference),
		bus:         b,
		logger:      logger.Named("call"),
		hooks:       hooks,
	}
}

// Incoming registers a call offered by a peer.
func (e *Engine) Incoming(accountID, callID string, peer *model.Contact, conversationID string) ([]Change, error) {
	return e.add(accountID, callID, peer, conversationID, model.Incoming, StateRinging)
}

// Outgoing registers a call the local user placed.
func (e *Engine) Outgoing(accountID, callID string, peer *model.Contact, conversationID string) ([]Change, error) {
	return e.add(accountID, callID, peer, conversationID, model.Outgoing, StateConnecting)
}

func (e *Engine) add(accountID, callID string, peer *model.Contact, conversationID string, dir model.Direction, st State) ([]Change, error) {
	b := e.begin()
	if _, ok := e.calls[callID]; ok {
		e.mu.Unlock()
		return nil, errors.Wrap(ErrDuplicate, callID)
	}
	c := &Call{
		ID:             callID,
		AccountID:      accountID,
		ConversationID: conversationID,
		Peer:           peer,
		Direction:      dir,
		State:          st,
		Created:        time.Now(),
	}
	e.calls[callID] = c
	b.touchCall(callID)
	b.wrap(c)
	return e.commit(b), nil
}

// StateChanged applies a daemon call state. Terminal states remove the
// call and, when it leaves its conference empty, the conference.
func (e *Engine) StateChanged(callID, state string, code int) ([]Change, error) {
	b := e.begin()
	c, ok := e.calls[callID]
	if !ok {
		e.mu.Unlock()
		return nil, errors.Wrapf(ErrUnknownCall, "%s -> %s", callID, state)
	}
	to := ParseState(state)
	if !Transitions.Allows(c.State, to) {
		e.logger.Debug("unusual call transition",
			zap.String("call", callID),
			zap.String("from", string(c.State)),
			zap.String("to", string(to)),
		)
	}
	c.State = to
	c.Code = code
	if to == StateCurrent && c.Started.IsZero() {
		c.Started = time.Now()
	}

	if !to.IsTerminal() {
		b.touchCall(callID)
		if conf := e.owner(c); conf != nil {
			if conf.IsSimple() {
				conf.State = string(to)
			}
			b.touchConf(conf.ID)
		}
		return e.commit(b), nil
	}

	c.Ended = time.Now()
	if conf := e.owner(c); conf != nil {
		conf.remove(callID)
		if len(conf.Members) == 0 {
			b.removeConf(conf)
		} else {
			b.touchConf(conf.ID)
		}
	}
	delete(e.calls, callID)
	b.ended = append(b.ended, *c)
	b.noMoreCalls = len(e.calls) == 0
	return e.commit(b), nil
}

// ConferenceCreated groups the listed calls into a new conference, pulling
// each out of the conference it belonged to.
func (e *Engine) ConferenceCreated(confID string, callIDs []string) ([]Change, error) {
	b := e.begin()
	if existing, ok := e.conferences[confID]; ok && !existing.IsSimple() {
		e.mu.Unlock()
		return e.ConferenceChanged(confID, existing.State, callIDs)
	}

	conf := &Conference{ID: confID, State: "ACTIVE_ATTACHED"}
	for _, id := range callIDs {
		c, ok := e.calls[id]
		if !ok {
			e.logger.Warn("conference lists unknown call", zap.String("conference", confID), zap.String("call", id))
			continue
		}
		b.unlink(c)
		c.ConfID = confID
		conf.Members = append(conf.Members, c)
		b.touchCall(id)
	}
	if len(conf.Members) == 0 {
		e.mu.Unlock()
		return nil, errors.Wrapf(ErrUnknownCall, "conference %s has no known calls", confID)
	}
	e.conferences[confID] = conf
	b.touchConf(confID)
	return e.commit(b), nil
}

// ConferenceChanged reconciles a conference against the daemon's current
// participant list. A conference left with a single call whose id differs
// from the conference id is dissolved and the call stands alone again.
func (e *Engine) ConferenceChanged(confID, state string, callIDs []string) ([]Change, error) {
	b := e.begin()
	conf, ok := e.conferences[confID]
	if !ok {
		if len(callIDs) == 0 {
			e.mu.Unlock()
			return nil, errors.Wrap(ErrUnknownConference, confID)
		}
		conf = &Conference{ID: confID}
		e.conferences[confID] = conf
	}
	if state != "" {
		conf.State = state
	}

	listed := make(map[string]bool, len(callIDs))
	for _, id := range callIDs {
		listed[id] = true
		c, ok := e.calls[id]
		if !ok {
			e.logger.Warn("conference lists unknown call", zap.String("conference", confID), zap.String("call", id))
			continue
		}
		if e.owner(c) == conf {
			continue
		}
		b.unlink(c)
		c.ConfID = confID
		conf.Members = append(conf.Members, c)
		b.touchCall(id)
	}
	for _, m := range append([]*Call(nil), conf.Members...) {
		if listed[m.ID] {
			continue
		}
		conf.remove(m.ID)
		b.wrap(m)
		b.touchCall(m.ID)
	}
	b.settle(conf)
	return e.commit(b), nil
}

// ConferenceRemoved dissolves a conference; its calls stand alone again.
func (e *Engine) ConferenceRemoved(confID string) ([]Change, error) {
	b := e.begin()
	conf, ok := e.conferences[confID]
	if !ok {
		e.mu.Unlock()
		return nil, errors.Wrap(ErrUnknownConference, confID)
	}
	if conf.IsSimple() {
		e.mu.Unlock()
		return nil, nil
	}
	b.removeConf(conf)
	for _, m := range conf.Members {
		b.wrap(m)
		b.touchCall(m.ID)
	}
	return e.commit(b), nil
}

// Detach takes a call out of its conference into a fresh standalone
// conference. The remaining members are left as they are.
func (e *Engine) Detach(callID string) ([]Change, error) {
	b := e.begin()
	c, ok := e.calls[callID]
	if !ok {
		e.mu.Unlock()
		return nil, errors.Wrap(ErrUnknownCall, callID)
	}
	conf := e.owner(c)
	if conf == nil || conf.IsSimple() {
		e.mu.Unlock()
		return nil, nil
	}
	conf.remove(callID)
	if len(conf.Members) == 0 {
		b.removeConf(conf)
	} else {
		b.touchConf(conf.ID)
	}
	b.wrap(c)
	b.touchCall(callID)
	return e.commit(b), nil
}

// ConferenceInfo replaces the live participant layout of a conference.
func (e *Engine) ConferenceInfo(confID string, participants []Participant) ([]Change, error) {
	b := e.begin()
	conf, ok := e.conferences[confID]
	if !ok {
		e.mu.Unlock()
		return nil, errors.Wrap(ErrUnknownConference, confID)
	}
	conf.Participants = append([]Participant(nil), participants...)
	b.touchConf(confID)
	return e.commit(b), nil
}

// MediaMuted records a local mute toggle for "audio" or "video".
func (e *Engine) MediaMuted(callID, media string, muted bool) ([]Change, error) {
	b := e.begin()
	c, ok := e.calls[callID]
	if !ok {
		e.mu.Unlock()
		return nil, errors.Wrap(ErrUnknownCall, callID)
	}
	switch media {
	case "audio":
		c.AudioMuted = muted
	case "video":
		c.VideoMuted = muted
	default:
		e.mu.Unlock()
		return nil, errors.Errorf("unknown media %q", media)
	}
	b.touchCall(callID)
	if conf := e.owner(c); conf != nil {
		b.touchConf(conf.ID)
	}
	return e.commit(b), nil
}

// Reset drops every call, as when the daemon connection is lost.
func (e *Engine) Reset() []Change {
	b := e.begin()
	for id, c := range e.calls {
		c.State = StateOver
		c.Ended = time.Now()
		b.ended = append(b.ended, *c)
		delete(e.calls, id)
	}
	for _, conf := range e.conferences {
		b.removeConf(conf)
	}
	b.noMoreCalls = len(b.ended) > 0
	return e.commit(b)
}

// Call returns a copy of a live call.
func (e *Engine) Call(id string) (Call, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.calls[id]
	if !ok {
		return Call{}, false
	}
	return *c, true
}

// Calls returns copies of every live call, oldest first.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, 0, len(e.calls))
	for _, c := range e.calls {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// Conference returns a snapshot of a conference.
func (e *Engine) Conference(id string) (ConferenceSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	conf, ok := e.conferences[id]
	if !ok {
		return ConferenceSnapshot{}, false
	}
	return conf.snapshot(), true
}

// Conferences returns snapshots of every conference sorted by id.
func (e *Engine) Conferences() []ConferenceSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ConferenceSnapshot, 0, len(e.conferences))
	for _, conf := range e.conferences {
		out = append(out, conf.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConferencesFor returns the ids of conferences holding a call of the
// given conversation, sorted.
func (e *Engine) ConferencesFor(accountID, conversationID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for id, conf := range e.conferences {
		for _, m := range conf.Members {
			if m.AccountID == accountID && m.ConversationID == conversationID {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// owner returns the conference currently holding c.
func (e *Engine) owner(c *Call) *Conference {
	id := c.ID
	if c.ConfID != "" {
		id = c.ConfID
	}
	conf, ok := e.conferences[id]
	if !ok || conf.indexOf(c.ID) < 0 {
		return nil
	}
	return conf
}

func (conf *Conference) snapshot() ConferenceSnapshot {
	s := ConferenceSnapshot{
		ID:           conf.ID,
		State:        conf.State,
		Simple:       conf.IsSimple(),
		Participants: append([]Participant(nil), conf.Participants...),
		Maximized:    conf.Maximized(),
		Recording:    conf.Recording(),
	}
	for _, m := range conf.Members {
		s.Calls = append(s.Calls, *m)
	}
	return s
}
