package account

import (
	"github.com/matheus3301/ringcore/internal/call"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/uri"
)

// OnCallEnded adds a call record to legacy conversations. Swarms receive
// their call records from the daemon.
func (a *Account) OnCallEnded(cl call.Call) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := cl.ConversationID
	if key == "" && cl.Peer != nil {
		key = cl.Peer.ConversationURI()
	}
	if key == "" || uri.Parse(key).IsSwarm() {
		return
	}
	c := a.conversationFor(key)
	rec := cl.Record()
	i := &model.Interaction{
		ID:        model.NewLocalID(),
		Timestamp: cl.Created,
		Read:      !rec.Missed,
		Status:    model.StatusSuccess,
		Payload:   rec,
	}
	if cl.Direction == model.Incoming && cl.Peer != nil {
		i.Author = cl.Peer.Key()
	}
	c.AddInteraction(i)
	a.publishInteraction(KindInteractionAdded, c, i)
	a.markStranger(c)
	a.touch(c)
}

// SetConferences mirrors the call engine's conferences onto a
// conversation.
func (a *Account) SetConferences(key string, ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.cache[uri.Canonical(key)]
	if !ok {
		return
	}
	if c.SetConferences(ids) {
		a.touch(c)
	}
}
