package account

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/matheus3301/ringcore/internal/conversation"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/uri"
)

// Requests returns the pending trust and conversation requests, oldest
// first.
func (a *Account) Requests() []model.TrustRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.TrustRequest, 0, len(a.requests))
	for _, r := range a.requests {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Received.Equal(out[j].Received) {
			return out[i].Received.Before(out[j].Received)
		}
		return out[i].From < out[j].From
	})
	return out
}

// onTrustRequest records a contact request. A request for a peer already
// pending is ignored. Requests that do not invite to a swarm get a pending
// legacy conversation.
func (a *Account) onTrustRequest(ev ring.TrustRequestReceived) {
	from := uri.Canonical(ev.From)
	if _, ok := a.requests[from]; ok {
		return
	}
	ct := a.contact(from)
	req := &model.TrustRequest{
		AccountID:      a.id,
		From:           from,
		ConversationID: ev.ConversationID,
		Received:       time.Unix(ev.Received, 0),
		Profile:        ct.Profile(),
	}
	a.requests[from] = req

	if req.IsSwarm() || !ct.HasOwnConversation() {
		a.publishPending()
		return
	}
	c := a.conversationFor(from)
	if _, ok := a.active[c.Key()]; ok {
		a.publishPending()
		return
	}
	c.SetRequest(req)
	a.markPending(c)
	ev2 := &model.Interaction{
		ID:        model.NewLocalID(),
		Author:    from,
		Timestamp: req.Received,
		Read:      true,
		Status:    model.StatusSuccess,
		Payload:   model.ContactEvent{Event: model.ContactIncomingReq, Peer: from},
	}
	if ins := c.AddInteraction(ev2); !ins.Duplicate {
		a.publishInteraction(KindInteractionAdded, c, ev2)
	}
	a.touch(c)
}

// onConversationRequest records an invitation to a swarm.
func (a *Account) onConversationRequest(ev ring.ConversationRequestReceived) {
	key := uri.FromSwarmID(ev.ConversationID).RawURI()
	if _, ok := a.requests[key]; ok {
		return
	}
	if _, ok := a.active[key]; ok {
		return
	}
	c := a.conversationFor(key)
	c.SetMode(conversation.ModeRequest)
	req := &model.TrustRequest{
		AccountID:      a.id,
		From:           uri.Canonical(ev.From),
		ConversationID: ev.ConversationID,
		Received:       time.Unix(ev.Received, 0),
	}
	if ev.From != "" {
		c.AddMember(a.contact(ev.From))
	}
	c.SetRequest(req)
	a.requests[key] = req
	a.markPending(c)
	a.touch(c)
}

func (a *Account) clearRequest(key string) {
	if _, ok := a.requests[key]; ok {
		delete(a.requests, key)
		a.publishPending()
	}
}

// AcceptRequest accepts the request identified by the sender's URI or, for
// conversation requests, the swarm URI. The daemon is told first; local
// state changes only once it accepts.
func (a *Account) AcceptRequest(ctx context.Context, address string) error {
	key := uri.Canonical(address)
	req, err := a.request(key)
	if err != nil {
		return err
	}

	swarmInvite := uri.Parse(key).IsSwarm()
	if swarmInvite {
		err = a.cmds.AcceptConversationRequest(ctx, a.id, req.ConversationID)
	} else {
		err = a.cmds.AcceptTrustRequest(ctx, a.id, req.From)
	}
	if err != nil {
		return errors.Wrap(err, "accept request")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.requests[key]; !ok {
		return nil
	}
	a.clearRequest(key)

	switch {
	case swarmInvite:
		c := a.conversationFor(key)
		c.SetRequest(nil)
		c.SetMode(conversation.ModeSyncing)
		a.markActive(c)
		a.touch(c)
	case req.IsSwarm():
		swarmKey := uri.FromSwarmID(req.ConversationID).RawURI()
		a.clearRequest(swarmKey)
		c := a.conversationFor(swarmKey)
		c.SetRequest(nil)
		if c.Mode() == conversation.ModeRequest {
			c.SetMode(conversation.ModeSyncing)
		}
		ct := a.contact(req.From)
		c.AddMember(ct)
		a.repoint(ct, swarmKey)
		a.markActive(c)
		a.touch(c)
	default:
		ct := a.contacts.Add(req.From, true, a.now())
		a.promote(ct)
		a.publishContact(ct)
	}
	return nil
}

// DiscardRequest declines a request and clears whatever conversation it
// created.
func (a *Account) DiscardRequest(ctx context.Context, address string) error {
	key := uri.Canonical(address)
	req, err := a.request(key)
	if err != nil {
		return err
	}

	swarmInvite := uri.Parse(key).IsSwarm()
	if swarmInvite {
		err = a.cmds.DeclineConversationRequest(ctx, a.id, req.ConversationID)
	} else {
		err = a.cmds.DiscardTrustRequest(ctx, a.id, req.From)
	}
	if err != nil {
		return errors.Wrap(err, "discard request")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.requests[key]; !ok {
		return nil
	}
	a.clearRequest(key)

	c, ok := a.cache[key]
	if !ok {
		return nil
	}
	if _, active := a.active[key]; active {
		c.SetRequest(nil)
		return nil
	}
	c.Clear()
	a.publish(KindHistoryCleared, HistoryCleared{AccountID: a.id, ConversationID: key})
	a.forget(c)
	return nil
}

func (a *Account) request(key string) (*model.TrustRequest, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	req, ok := a.requests[key]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRequest, "%s/%s", a.id, key)
	}
	cp := *req
	return &cp, nil
}

// LoadRequests seeds pending requests from the daemon.
func (a *Account) LoadRequests(trust []ring.TrustRequestReceived, invites []ring.ConversationRequestReceived) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range trust {
		a.onTrustRequest(r)
	}
	for _, r := range invites {
		a.onConversationRequest(r)
	}
}
