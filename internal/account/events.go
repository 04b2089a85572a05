package account

import (
	"github.com/matheus3301/ringcore/internal/conversation"
	"github.com/matheus3301/ringcore/internal/model"
)

// Bus event kinds published by accounts. List, unread and registration
// events are retained per account.
const (
	KindListChanged         = "conversation.list_changed"
	KindPendingChanged      = "conversation.pending_changed"
	KindConversationUpdated = "conversation.updated"
	KindConversationRemoved = "conversation.removed"
	KindReadMoved           = "conversation.read"
	KindInteractionAdded    = "interaction.added"
	KindInteractionUpdated  = "interaction.updated"
	KindHistoryCleared      = "history.clear"
	KindContactUpdated      = "contact.updated"
	KindUnreadChanged       = "account.unread_changed"
	KindRegistration        = "account.registration_changed"
)

// ListChanged reports that a bucket's membership or order changed.
type ListChanged struct {
	AccountID string
	Count     int
}

type ConversationEvent struct {
	AccountID string
	Summary   conversation.Summary
}

// InteractionEvent carries a copy of the interaction as it is now.
type InteractionEvent struct {
	AccountID      string
	ConversationID string
	Swarm          bool
	Interaction    *model.Interaction
}

type HistoryCleared struct {
	AccountID      string
	ConversationID string
}

type ReadMoved struct {
	AccountID      string
	ConversationID string
	MessageID      string
}

type ContactUpdated struct {
	AccountID string
	Contact   *model.Contact
}

type UnreadChanged struct {
	AccountID string
	Total     int
}

type RegistrationChanged struct {
	AccountID string
	State     string
	Code      int
}
