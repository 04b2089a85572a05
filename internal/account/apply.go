package account

import (
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/ring"
)

// Apply folds one daemon event into the account. It reports whether the
// event concerned accounts at all; call events are left to the call
// engine.
func (a *Account) Apply(ev ring.Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e := ev.(type) {
	case ring.MessageReceived:
		a.onMessageReceived(e)
	case ring.ConversationLoaded:
		a.onConversationLoaded(e)
	case ring.IncomingMessage:
		a.onIncomingMessage(e, "")
	case ring.MessageStatusChanged:
		a.onMessageStatus(e)
	case ring.ConversationReady:
		a.onConversationReady(e)
	case ring.ConversationRemoved:
		a.removeSwarm(e.ConversationID)
	case ring.ConversationRequestReceived:
		a.onConversationRequest(e)
	case ring.ConversationMemberEvent:
		a.onMemberEvent(e)
	case ring.ContactAdded:
		a.onContactAdded(e.URI, e.Confirmed, a.now())
	case ring.ContactRemoved:
		a.onContactRemoved(e.URI, e.Banned)
	case ring.TrustRequestReceived:
		a.onTrustRequest(e)
	case ring.RegisteredNameFound:
		a.onUsername(e)
	case ring.PresenceChanged:
		a.onPresence(e)
	case ring.ProfileReceived:
		a.onProfile(e)
	case ring.RegistrationStateChanged:
		a.onRegistration(e)
	default:
		return false
	}
	return true
}

// ApplyCallMessage folds a text message sent within a call into the
// conversation the call belongs to.
func (a *Account) ApplyCallMessage(ev ring.IncomingMessage, conversationKey string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onIncomingMessage(ev, conversationKey)
}

func (a *Account) onRegistration(ev ring.RegistrationStateChanged) {
	if a.registration == ev.State {
		return
	}
	a.logger.Info("registration changed",
		zap.String("from", a.registration),
		zap.String("to", ev.State),
		zap.Int("code", ev.Code),
		zap.String("detail", ev.Detail),
	)
	a.registration = ev.State
	a.bus.Publish(bus.NewEvent(KindRegistration, a.id, RegistrationChanged{
		AccountID: a.id,
		State:     ev.State,
		Code:      ev.Code,
	}).Retained())
}

// SetClock replaces the account's time source.
func (a *Account) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}
