package account

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/conversation"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/uri"
)

// AddContact asks the daemon to add a contact. The local state follows
// when the daemon confirms with a contact-added event.
func (a *Account) AddContact(ctx context.Context, address string) error {
	return errors.Wrap(a.cmds.AddContact(ctx, a.id, uri.Canonical(address)), "add contact")
}

// RemoveContact asks the daemon to remove, and optionally ban, a contact.
func (a *Account) RemoveContact(ctx context.Context, address string, ban bool) error {
	return errors.Wrap(a.cmds.RemoveContact(ctx, a.id, uri.Canonical(address), ban), "remove contact")
}

func (a *Account) onContactAdded(address string, confirmed bool, at time.Time) {
	ct := a.contacts.Add(address, confirmed, at)
	a.clearRequest(ct.Key())
	a.promote(ct)
	a.publishContact(ct)
}

func (a *Account) onContactRemoved(address string, banned bool) {
	ct, ok := a.contacts.Remove(address, banned)
	if !ok {
		a.logger.Warn("contact removed for unknown peer", zap.String("uri", address))
		return
	}
	a.clearRequest(ct.Key())
	if ct.HasOwnConversation() {
		if c, ok := a.cache[ct.Key()]; ok {
			c.SetRequest(nil)
			a.drop(c)
		}
	}
	a.publishContact(ct)
}

// promote makes the legacy conversation of ct active. Contacts whose
// conversation is a swarm are represented by the swarm and are left
// alone.
func (a *Account) promote(ct *model.Contact) {
	if !ct.HasOwnConversation() {
		return
	}
	c := a.conversationFor(ct.Key())
	if _, ok := a.active[c.Key()]; ok {
		return
	}
	c.SetRequest(nil)
	a.markActive(c)

	ev := &model.Interaction{
		ID:        model.NewLocalID(),
		Author:    ct.Key(),
		Timestamp: a.now(),
		Read:      true,
		Status:    model.StatusSuccess,
		Payload:   model.ContactEvent{Event: model.ContactAdded, Peer: ct.Key()},
	}
	if ins := c.AddInteraction(ev); !ins.Duplicate {
		a.publishInteraction(KindInteractionAdded, c, ev)
	}
	a.touch(c)
}

func (a *Account) onUsername(ev ring.RegisteredNameFound) {
	name := ev.Name
	if ev.State != 0 {
		name = ""
	}
	ct, changed := a.contacts.SetUsername(ev.Address, name)
	if ct == nil || !changed {
		return
	}
	a.contactChanged(ct)
}

func (a *Account) onPresence(ev ring.PresenceChanged) {
	ct, ok := a.contacts.Find(ev.URI)
	if !ok || !ct.SetOnline(ev.Online) {
		return
	}
	a.publishContact(ct)
}

func (a *Account) onProfile(ev ring.ProfileReceived) {
	ct := a.contact(ev.From)
	if !ct.SetProfile(model.Profile{DisplayName: ev.DisplayName, Avatar: ev.Avatar}) {
		return
	}
	a.contactChanged(ct)
}

// contactChanged announces a contact and the conversation titled after it.
func (a *Account) contactChanged(ct *model.Contact) {
	a.publishContact(ct)
	if c, ok := a.cache[uri.Canonical(ct.ConversationURI())]; ok {
		a.touch(c)
	}
}

func (a *Account) publishContact(ct *model.Contact) {
	a.publish(KindContactUpdated, ContactUpdated{AccountID: a.id, Contact: ct})
}

// repoint makes the swarm key represent ct, hiding its legacy
// conversation. It reports whether the pointer moved.
func (a *Account) repoint(ct *model.Contact, swarmKey string) bool {
	if !ct.SetConversationURI(swarmKey) {
		return false
	}
	if legacy, ok := a.cache[ct.Key()]; ok {
		a.drop(legacy)
	}
	return true
}

// LoadContacts seeds the registry from the daemon's persisted contacts.
func (a *Account) LoadContacts(details []ring.ContactDetails) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range details {
		if d.Banned {
			ct, _ := a.contacts.GetOrCreate(d.URI)
			ct.SetStatus(model.TrustBanned)
			continue
		}
		ct := a.contact(d.URI)
		a.contacts.Add(d.URI, d.Confirmed, time.Unix(d.Added, 0))
		if d.ConversationID != "" {
			swarm := a.conversationFor(uri.FromSwarmID(d.ConversationID).RawURI())
			swarm.AddMember(ct)
			a.repoint(ct, swarm.Key())
			continue
		}
		a.promote(ct)
	}
}

// swarmMembers attaches members to a swarm, re-pointing the peer of a
// one-to-one swarm at it.
func (a *Account) swarmMembers(c *conversation.Conversation, members []string) {
	for _, m := range members {
		if a.contacts.IsSelf(m) {
			continue
		}
		ct := a.contact(m)
		c.AddMember(ct)
		if c.Mode() == conversation.ModeOneToOne {
			a.repoint(ct, c.Key())
		}
	}
}
