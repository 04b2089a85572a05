package ring

// Event is a notification pushed by the daemon.
type Event interface {
	Kind() string
}

// Scope carries the account an event concerns.
type Scope struct {
	AccountID string `cbor:"accountId"`
}

// Account returns the account the event concerns.
func (s Scope) Account() string { return s.AccountID }

// Scoped is implemented by every event tied to one account.
type Scoped interface {
	Event
	Account() string
}

type CallStateChanged struct {
	Scope
	CallID string `cbor:"callId"`
	State  string `cbor:"state"`
	Code   int    `cbor:"code"`
}

type IncomingCall struct {
	Scope
	CallID string `cbor:"callId"`
	From   string `cbor:"from"`
}

type ConferenceCreated struct {
	Scope
	ConversationID string   `cbor:"conversationId,omitempty"`
	ConfID         string   `cbor:"confId"`
	Participants   []string `cbor:"participants"`
}

type ConferenceChanged struct {
	Scope
	ConfID       string   `cbor:"confId"`
	State        string   `cbor:"state"`
	Participants []string `cbor:"participants"`
}

type ConferenceRemoved struct {
	Scope
	ConfID string `cbor:"confId"`
}

// ParticipantInfo is the daemon's layout entry for one conference
// participant.
type ParticipantInfo struct {
	URI        string `cbor:"uri"`
	Device     string `cbor:"device,omitempty"`
	Active     bool   `cbor:"active"`
	Recording  bool   `cbor:"recording"`
	AudioMuted bool   `cbor:"audioMuted"`
	VideoMuted bool   `cbor:"videoMuted"`
	X          int    `cbor:"x"`
	Y          int    `cbor:"y"`
	W          int    `cbor:"w"`
	H          int    `cbor:"h"`
}

type ConferenceInfoUpdated struct {
	Scope
	ConfID       string            `cbor:"confId"`
	Participants []ParticipantInfo `cbor:"participants"`
}

type MediaMuted struct {
	Scope
	CallID string `cbor:"callId"`
	Media  string `cbor:"media"`
	Muted  bool   `cbor:"muted"`
}

// IncomingMessage is a legacy text message, optionally sent within a call.
// Payloads maps MIME types to bodies.
type IncomingMessage struct {
	Scope
	CallID   string            `cbor:"callId,omitempty"`
	From     string            `cbor:"from"`
	MsgID    string            `cbor:"msgId,omitempty"`
	Payloads map[string]string `cbor:"payloads"`
}

type MessageReceived struct {
	Scope
	ConversationID string            `cbor:"conversationId"`
	Message        map[string]string `cbor:"message"`
}

type ConversationLoaded struct {
	Scope
	RequestID      uint32              `cbor:"requestId"`
	ConversationID string              `cbor:"conversationId"`
	Messages       []map[string]string `cbor:"messages"`
}

type ConversationReady struct {
	Scope
	ConversationID string   `cbor:"conversationId"`
	Mode           int      `cbor:"mode"`
	Members        []string `cbor:"members"`
}

type ConversationRemoved struct {
	Scope
	ConversationID string `cbor:"conversationId"`
}

type ConversationRequestReceived struct {
	Scope
	ConversationID string `cbor:"conversationId"`
	From           string `cbor:"from"`
	Received       int64  `cbor:"received"`
	Mode           int    `cbor:"mode"`
}

// Member actions carried by ConversationMemberEvent.
const (
	MemberAdd = iota
	MemberJoin
	MemberLeave
	MemberBan
)

type ConversationMemberEvent struct {
	Scope
	ConversationID string `cbor:"conversationId"`
	Member         string `cbor:"member"`
	Action         int    `cbor:"action"`
}

type ContactAdded struct {
	Scope
	URI       string `cbor:"uri"`
	Confirmed bool   `cbor:"confirmed"`
}

type ContactRemoved struct {
	Scope
	URI    string `cbor:"uri"`
	Banned bool   `cbor:"banned"`
}

type RegistrationStateChanged struct {
	Scope
	State  string `cbor:"state"`
	Code   int    `cbor:"code"`
	Detail string `cbor:"detail,omitempty"`
}

type TrustRequestReceived struct {
	Scope
	From           string `cbor:"from"`
	ConversationID string `cbor:"conversationId,omitempty"`
	Received       int64  `cbor:"received"`
	Payload        []byte `cbor:"payload,omitempty"`
}

type RegisteredNameFound struct {
	Scope
	Address string `cbor:"address"`
	Name    string `cbor:"name"`
	State   int    `cbor:"state"`
}

type PresenceChanged struct {
	Scope
	URI    string `cbor:"uri"`
	Online bool   `cbor:"online"`
}

type ProfileReceived struct {
	Scope
	From        string `cbor:"from"`
	DisplayName string `cbor:"displayName"`
	Avatar      string `cbor:"avatar,omitempty"`
}

type MessageStatusChanged struct {
	Scope
	ConversationID string `cbor:"conversationId"`
	Peer           string `cbor:"peer"`
	MessageID      string `cbor:"messageId"`
	Status         int    `cbor:"status"`
}

// AccountsChanged means the daemon's account list changed and should be
// reloaded.
type AccountsChanged struct{}

func (CallStateChanged) Kind() string            { return "callStateChanged" }
func (IncomingCall) Kind() string                { return "incomingCall" }
func (ConferenceCreated) Kind() string           { return "conferenceCreated" }
func (ConferenceChanged) Kind() string           { return "conferenceChanged" }
func (ConferenceRemoved) Kind() string           { return "conferenceRemoved" }
func (ConferenceInfoUpdated) Kind() string       { return "conferenceInfoUpdated" }
func (MediaMuted) Kind() string                  { return "mediaMuted" }
func (IncomingMessage) Kind() string             { return "incomingMessage" }
func (MessageReceived) Kind() string             { return "messageReceived" }
func (ConversationLoaded) Kind() string          { return "conversationLoaded" }
func (ConversationReady) Kind() string           { return "conversationReady" }
func (ConversationRemoved) Kind() string         { return "conversationRemoved" }
func (ConversationRequestReceived) Kind() string { return "conversationRequestReceived" }
func (ConversationMemberEvent) Kind() string     { return "conversationMemberEvent" }
func (ContactAdded) Kind() string                { return "contactAdded" }
func (ContactRemoved) Kind() string              { return "contactRemoved" }
func (RegistrationStateChanged) Kind() string    { return "registrationStateChanged" }
func (TrustRequestReceived) Kind() string        { return "incomingTrustRequest" }
func (RegisteredNameFound) Kind() string         { return "registeredNameFound" }
func (PresenceChanged) Kind() string             { return "presenceChanged" }
func (ProfileReceived) Kind() string             { return "profileReceived" }
func (MessageStatusChanged) Kind() string        { return "accountMessageStatusChanged" }
func (AccountsChanged) Kind() string             { return "accountsChanged" }

var eventTypes = map[string]func() Event{}

func register(newEvent func() Event) {
	eventTypes[newEvent().Kind()] = newEvent
}

func init() {
	register(func() Event { return &CallStateChanged{} })
	register(func() Event { return &IncomingCall{} })
	register(func() Event { return &ConferenceCreated{} })
	register(func() Event { return &ConferenceChanged{} })
	register(func() Event { return &ConferenceRemoved{} })
	register(func() Event { return &ConferenceInfoUpdated{} })
	register(func() Event { return &MediaMuted{} })
	register(func() Event { return &IncomingMessage{} })
	register(func() Event { return &MessageReceived{} })
	register(func() Event { return &ConversationLoaded{} })
	register(func() Event { return &ConversationReady{} })
	register(func() Event { return &ConversationRemoved{} })
	register(func() Event { return &ConversationRequestReceived{} })
	register(func() Event { return &ConversationMemberEvent{} })
	register(func() Event { return &ContactAdded{} })
	register(func() Event { return &ContactRemoved{} })
	register(func() Event { return &RegistrationStateChanged{} })
	register(func() Event { return &TrustRequestReceived{} })
	register(func() Event { return &RegisteredNameFound{} })
	register(func() Event { return &PresenceChanged{} })
	register(func() Event { return &ProfileReceived{} })
	register(func() Event { return &MessageStatusChanged{} })
	register(func() Event { return &AccountsChanged{} })
}

// decodeEvent decodes an event body. Events are delivered by value.
func decodeEvent(kind string, body []byte) (Event, error) {
	newEvent, ok := eventTypes[kind]
	if !ok {
		return nil, errUnknownEvent
	}
	ptr := newEvent()
	if len(body) > 0 {
		if err := decMode.Unmarshal(body, ptr); err != nil {
			return nil, err
		}
	}
	return deref(ptr), nil
}
