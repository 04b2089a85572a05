package ring

import "context"

// AccountDetails describes an account configured in the daemon.
type AccountDetails struct {
	ID           string `cbor:"id"`
	URI          string `cbor:"uri"`
	Username     string `cbor:"username,omitempty"`
	DisplayName  string `cbor:"displayName,omitempty"`
	Enabled      bool   `cbor:"enabled"`
	Registration string `cbor:"registration,omitempty"`
}

// ContactDetails is a contact as the daemon persists it.
type ContactDetails struct {
	URI            string `cbor:"uri"`
	Confirmed      bool   `cbor:"confirmed"`
	Banned         bool   `cbor:"banned"`
	Added          int64  `cbor:"added"`
	ConversationID string `cbor:"conversationId,omitempty"`
}

// ConversationDetails is a joined swarm as the daemon persists it.
type ConversationDetails struct {
	ID      string   `cbor:"id"`
	Mode    int      `cbor:"mode"`
	Members []string `cbor:"members"`
}

// Commands is the set of requests the engine issues to the daemon. A
// returned error means the daemon rejected or never answered the request;
// results of accepted requests arrive later as events.
type Commands interface {
	Accounts(ctx context.Context) ([]AccountDetails, error)
	Contacts(ctx context.Context, accountID string) ([]ContactDetails, error)
	Conversations(ctx context.Context, accountID string) ([]ConversationDetails, error)
	TrustRequests(ctx context.Context, accountID string) ([]TrustRequestReceived, error)
	ConversationRequests(ctx context.Context, accountID string) ([]ConversationRequestReceived, error)

	PlaceCall(ctx context.Context, accountID, to string) (string, error)
	Accept(ctx context.Context, callID string) error
	Refuse(ctx context.Context, callID string) error
	Hold(ctx context.Context, callID string) error
	Unhold(ctx context.Context, callID string) error
	HangUp(ctx context.Context, callID string) error
	AddParticipant(ctx context.Context, callID, confID string) error
	DetachParticipant(ctx context.Context, callID string) error
	JoinConference(ctx context.Context, confID, otherConfID string) error
	MuteMedia(ctx context.Context, callID, media string, mute bool) error

	SendMessage(ctx context.Context, accountID, conversationID, text string) error
	SendTextMessage(ctx context.Context, accountID, to, text string) (string, error)
	LoadConversationMessages(ctx context.Context, accountID, conversationID, from string, count int) (uint32, error)
	SetMessageDisplayed(ctx context.Context, accountID, conversationID, messageID string) error

	AddContact(ctx context.Context, accountID, uri string) error
	RemoveContact(ctx context.Context, accountID, uri string, ban bool) error
	AcceptTrustRequest(ctx context.Context, accountID, from string) error
	DiscardTrustRequest(ctx context.Context, accountID, from string) error
	AcceptConversationRequest(ctx context.Context, accountID, conversationID string) error
	DeclineConversationRequest(ctx context.Context, accountID, conversationID string) error
	LookupAddress(ctx context.Context, accountID, address string) error
}
