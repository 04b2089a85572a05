package store

// Interaction is a stored conversation entry. Record holds the daemon's
// record for the entry, kept verbatim.
type Interaction struct {
	ID             int64
	AccountID      string
	ConversationID string
	InteractionID  string
	DaemonID       string
	Author         string
	Kind           string
	Body           string
	Status         string
	Read           bool
	Swarm          bool
	Timestamp      int64 // unix milliseconds
	Record         map[string]string
}

// Conversation summarizes the stored history of one conversation.
type Conversation struct {
	AccountID      string
	ConversationID string
	Swarm          bool
	Count          int
	Unread         int
	LastAt         int64
	LastPreview    string
}

// Peer caches what the daemon told us about a remote user.
type Peer struct {
	AccountID   string
	URI         string
	Username    string
	DisplayName string
	Avatar      string
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID             int64
	ClientMsgID    string
	AccountID      string
	ConversationID string
	Body           string
	Status         string // queued, sending, sent, failed
	ErrorMessage   string
	DaemonMsgID    string
	CreatedAt      int64
}

// SearchResult holds an interaction with a search snippet.
type SearchResult struct {
	Interaction Interaction
	Snippet     string
}
