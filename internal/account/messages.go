package account

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/conversation"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/uri"
)

func (a *Account) onMessageReceived(ev ring.MessageReceived) {
	c := a.conversationFor(uri.FromSwarmID(ev.ConversationID).RawURI())
	i, err := model.FromRecord(c.Key(), a.self, ev.Message)
	if err != nil {
		a.logger.Warn("dropping message", zap.Error(err))
		return
	}
	if a.addSwarm(c, i) {
		a.touch(c)
	}
}

// addSwarm merges one DAG message and announces its effects.
func (a *Account) addSwarm(c *conversation.Conversation, i *model.Interaction) bool {
	if i.IsIncoming() {
		a.contact(i.Author)
	}
	ins := c.AddSwarmElement(i)
	if ins.Duplicate {
		a.logger.Debug("duplicate message", zap.String("conversation", c.Key()), zap.String("message", i.MessageID))
		return false
	}
	for _, p := range ins.Placed {
		a.publishInteraction(KindInteractionAdded, c, p)
	}
	for _, u := range ins.Updated {
		a.publishInteraction(KindInteractionUpdated, c, u)
	}
	if ins.NewLeaf && c.Visible() {
		a.publish(KindReadMoved, ReadMoved{AccountID: a.id, ConversationID: c.Key(), MessageID: c.LastRead()})
	}
	return len(ins.Placed) > 0 || len(ins.Updated) > 0
}

func (a *Account) onConversationLoaded(ev ring.ConversationLoaded) {
	key := uri.FromSwarmID(ev.ConversationID).RawURI()
	c, ok := a.swarms[key]
	if !ok {
		a.logger.Debug("dropping history for untracked conversation", zap.String("conversation", key))
		return
	}
	changed := false
	for _, rec := range ev.Messages {
		i, err := model.FromRecord(key, a.self, rec)
		if err != nil {
			a.logger.Warn("dropping loaded message", zap.Error(err))
			continue
		}
		if a.addSwarm(c, i) {
			changed = true
		}
	}
	if changed {
		a.touch(c)
	}
	if bf, ok := a.backfills[key]; ok && bf.deliver(ev.RequestID) && bf.settle(nil) {
		delete(a.backfills, key)
	}
}

// onIncomingMessage handles a legacy text message. key names the
// conversation of the call it was sent in, if any.
func (a *Account) onIncomingMessage(ev ring.IncomingMessage, key string) {
	body, ok := ev.Payloads["text/plain"]
	if !ok {
		for _, v := range ev.Payloads {
			body = v
			break
		}
	}
	from := uri.Canonical(ev.From)
	if key == "" {
		key = from
	}
	c := a.conversationFor(key)
	if c.IsSwarm() {
		c = a.conversationFor(from)
	}
	i := &model.Interaction{
		ID:        ev.MsgID,
		DaemonID:  ev.MsgID,
		Author:    from,
		Timestamp: a.now(),
		Status:    model.StatusSuccess,
		Payload:   model.Text{Body: body},
	}
	if i.ID == "" {
		i.ID = model.NewLocalID()
	}
	ins := c.AddInteraction(i)
	if ins.Duplicate {
		a.logger.Debug("duplicate message", zap.String("conversation", c.Key()), zap.String("message", ev.MsgID))
		return
	}
	a.publishInteraction(KindInteractionAdded, c, i)
	a.markStranger(c)
	a.touch(c)
}

func (a *Account) onMessageStatus(ev ring.MessageStatusChanged) {
	key := uri.Canonical(ev.Peer)
	if ev.ConversationID != "" {
		key = uri.FromSwarmID(ev.ConversationID).RawURI()
	}
	c, ok := a.cache[key]
	if !ok {
		a.logger.Warn("status for unknown conversation", zap.String("conversation", key))
		return
	}
	member := ""
	if ev.Peer != "" && !a.contacts.IsSelf(ev.Peer) {
		member = uri.Canonical(ev.Peer)
	}
	changed, moved := c.UpdateStatus(ev.MessageID, member, model.StatusFromDaemon(ev.Status))
	if changed != nil {
		a.publishInteraction(KindInteractionUpdated, c, changed)
	}
	if moved {
		a.touch(c)
	}
}

// MarkRead marks a conversation read and, for swarms, tells the daemon
// which message was displayed.
func (a *Account) MarkRead(ctx context.Context, key string) error {
	a.mu.Lock()
	c, ok := a.cache[uri.Canonical(key)]
	if !ok {
		a.mu.Unlock()
		return errors.Wrapf(ErrUnknownConversation, "%s/%s", a.id, key)
	}
	changed, last := c.MarkAllRead()
	for _, i := range changed {
		a.publishInteraction(KindInteractionUpdated, c, i)
	}
	if last != "" {
		a.publish(KindReadMoved, ReadMoved{AccountID: a.id, ConversationID: c.Key(), MessageID: last})
	}
	if len(changed) > 0 {
		a.touch(c)
	}
	a.mu.Unlock()

	if !c.IsSwarm() || last == "" {
		return nil
	}
	return errors.Wrap(a.cmds.SetMessageDisplayed(ctx, a.id, c.SwarmID(), last), "set message displayed")
}

// AddOutgoing inserts a locally composed message into a legacy
// conversation before the daemon accepts it. Swarm messages appear when
// the daemon echoes them, so nothing is added for swarms.
func (a *Account) AddOutgoing(key, localID, body string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.cache[uri.Canonical(key)]
	if !ok {
		return errors.Wrapf(ErrUnknownConversation, "%s/%s", a.id, key)
	}
	if c.IsSwarm() {
		return nil
	}
	i := &model.Interaction{
		ID:        localID,
		Timestamp: a.now(),
		Read:      true,
		Status:    model.StatusSending,
		Payload:   model.Text{Body: body},
	}
	if ins := c.AddInteraction(i); ins.Duplicate {
		return nil
	}
	a.publishInteraction(KindInteractionAdded, c, i)
	a.touch(c)
	return nil
}

// SettleOutgoing records the daemon's answer for a message added with
// AddOutgoing.
func (a *Account) SettleOutgoing(key, localID, daemonID string, status model.Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.cache[uri.Canonical(key)]
	if !ok || c.IsSwarm() {
		return
	}
	if i, ok := c.AckOutgoing(localID, daemonID, status); ok {
		a.publishInteraction(KindInteractionUpdated, c, i)
	}
}

// RestoreHistory loads persisted interactions of a legacy conversation.
func (a *Account) RestoreHistory(key, lastRead string, items []*model.Interaction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.conversationFor(key)
	if lastRead != "" {
		c.SetLastRead(lastRead)
	}
	if c.Restore(items) > 0 {
		a.touch(c)
	}
}
