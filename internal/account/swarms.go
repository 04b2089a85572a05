package account

import (
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/conversation"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/uri"
)

// startSwarm makes a joined swarm active. For one-to-one swarms the peer
// is re-pointed at it, hiding the legacy conversation.
func (a *Account) startSwarm(id string, mode conversation.Mode, members []string) *conversation.Conversation {
	key := uri.FromSwarmID(id).RawURI()
	c := a.conversationFor(key)
	c.SetMode(mode)
	c.SetRequest(nil)
	a.clearRequest(key)
	a.swarmMembers(c, members)
	a.markActive(c)
	a.touch(c)
	return c
}

func (a *Account) onConversationReady(ev ring.ConversationReady) {
	a.startSwarm(ev.ConversationID, conversation.ModeFromDaemon(ev.Mode), ev.Members)
}

// removeSwarm forgets a swarm. Peers it represented fall back to their
// legacy conversation while they remain contacts.
func (a *Account) removeSwarm(id string) {
	key := uri.FromSwarmID(id).RawURI()
	c, ok := a.swarms[key]
	if !ok {
		a.logger.Debug("removal of unknown swarm", zap.String("conversation", key))
		return
	}
	a.clearRequest(key)
	members := c.Members()
	a.publish(KindHistoryCleared, HistoryCleared{AccountID: a.id, ConversationID: key})
	a.forget(c)
	for _, ct := range members {
		if ct.ConversationURI() != key {
			continue
		}
		ct.SetConversationURI(ct.Key())
		switch ct.Status() {
		case model.TrustNone, model.TrustBanned:
		default:
			a.promote(ct)
		}
		a.publishContact(ct)
	}
}

func (a *Account) onMemberEvent(ev ring.ConversationMemberEvent) {
	key := uri.FromSwarmID(ev.ConversationID).RawURI()
	c, ok := a.swarms[key]
	if !ok {
		a.logger.Debug("member event for unknown swarm", zap.String("conversation", key))
		return
	}
	if a.contacts.IsSelf(ev.Member) {
		return
	}
	changed := false
	switch ev.Action {
	case ring.MemberAdd, ring.MemberJoin:
		ct := a.contact(ev.Member)
		changed = c.AddMember(ct)
		if c.Mode() == conversation.ModeOneToOne && a.repoint(ct, key) {
			a.publishContact(ct)
		}
	case ring.MemberLeave, ring.MemberBan:
		changed = c.RemoveMember(uri.Canonical(ev.Member))
	default:
		a.logger.Warn("unknown member action", zap.Int("action", ev.Action))
	}
	if changed {
		a.touch(c)
	}
}

// LoadConversations seeds the joined swarms from the daemon.
func (a *Account) LoadConversations(details []ring.ConversationDetails) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range details {
		a.startSwarm(d.ID, conversation.ModeFromDaemon(d.Mode), d.Members)
	}
}
