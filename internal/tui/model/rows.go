package model

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/ringcore/internal/call"
	core "github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/tui/client"
)

// Status is the engine host summary shown in the header.
type Status struct {
	Profile             string
	State               string
	Uptime              time.Duration
	Accounts            int64
	Unread              int64
	StoredConversations int64
	StoredInteractions  int64
}

// Account is one row of ListAccounts.
type Account struct {
	ID            string
	URI           string
	Registration  string
	Unread        int64
	Conversations int64
	Pending       int64
}

// Conversation is one row of the conversation list.
type Conversation struct {
	Account     string
	Key         string
	Title       string
	Mode        string
	Swarm       bool
	Request     bool
	Members     []string
	Unread      int64
	LastEvent   time.Time
	Conferences []string
	Last        *Interaction
}

// Name returns the title, falling back to the key.
func (c Conversation) Name() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Key
}

// Preview is the one-line summary of the last interaction.
func (c Conversation) Preview() string {
	if c.Last == nil {
		return ""
	}
	return c.Last.Preview()
}

// Interaction is one entry of a thread.
type Interaction struct {
	ID        string
	Kind      string
	Author    string
	Timestamp time.Time
	Read      bool
	Status    string

	Body      string
	Edited    bool
	OnlyEmoji bool

	Direction string
	Duration  time.Duration
	Missed    bool

	Event string
	Peer  string

	FileName string
	Size     int64
	Progress int64
}

// Mine reports whether the local account authored the interaction.
func (i Interaction) Mine() bool { return i.Author == "" }

// Preview renders the interaction as a single line.
func (i Interaction) Preview() string {
	switch core.Kind(i.Kind) {
	case core.KindText:
		return i.Body
	case core.KindCall:
		switch {
		case i.Missed:
			return "Missed call"
		case core.Direction(i.Direction) == core.Outgoing:
			return fmt.Sprintf("Outgoing call (%s)", i.Duration.Round(time.Second))
		default:
			return fmt.Sprintf("Incoming call (%s)", i.Duration.Round(time.Second))
		}
	case core.KindContactEvent:
		return contactEventText(core.ContactEventType(i.Event), i.Peer)
	case core.KindDataTransfer:
		return "File: " + i.FileName
	}
	return ""
}

func contactEventText(ev core.ContactEventType, peer string) string {
	switch ev {
	case core.ContactAdded:
		return "Contact added"
	case core.ContactInvited:
		return peer + " was invited"
	case core.ContactJoined:
		return peer + " joined"
	case core.ContactLeft:
		return peer + " left"
	case core.ContactBanned:
		return peer + " was banned"
	case core.ContactIncomingReq:
		return "Invitation received"
	}
	return "Contact event"
}

// Contact is one row of ListContacts.
type Contact struct {
	URI    string
	Name   string
	Online bool
	Status string
}

// Call is one row of the call list.
type Call struct {
	ID           string
	Account      string
	Conversation string
	Peer         string
	PeerName     string
	Direction    string
	State        string
	Conference   string
	AudioMuted   bool
	VideoMuted   bool
	Created      time.Time
	Started      time.Time
}

// OnHold reports whether the call is held.
func (c Call) OnHold() bool { return call.State(c.State) == call.StateHold }

// Ringing reports whether the call waits for an answer.
func (c Call) Ringing() bool {
	switch call.State(c.State) {
	case call.StateRinging, call.StateSearching, call.StateConnecting, call.StateInactive:
		return true
	}
	return false
}

// Request is a pending trust request.
type Request struct {
	Account      string
	From         string
	Name         string
	Conversation string
	Received     time.Time
}

// SearchHit is one full-text search result.
type SearchHit struct {
	Account      string
	Conversation string
	ID           string
	Author       string
	Snippet      string
	Timestamp    time.Time
}

func millis(s *structpb.Struct, name string) time.Time {
	ms := client.Int(s, name)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func stringList(s *structpb.Struct, name string) []string {
	var out []string
	for _, v := range s.GetFields()[name].GetListValue().GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

// DecodeStatus reads a GetStatus reply.
func DecodeStatus(s *structpb.Struct) Status {
	return Status{
		Profile:             client.String(s, "profile"),
		State:               client.String(s, "status"),
		Uptime:              time.Duration(client.Int(s, "uptime_ms")) * time.Millisecond,
		Accounts:            client.Int(s, "accounts"),
		Unread:              client.Int(s, "unread"),
		StoredConversations: client.Int(s, "stored_conversations"),
		StoredInteractions:  client.Int(s, "stored_interactions"),
	}
}

func DecodeAccount(s *structpb.Struct) Account {
	return Account{
		ID:            client.String(s, "id"),
		URI:           client.String(s, "uri"),
		Registration:  client.String(s, "registration"),
		Unread:        client.Int(s, "unread"),
		Conversations: client.Int(s, "conversations"),
		Pending:       client.Int(s, "pending"),
	}
}

func DecodeConversation(s *structpb.Struct) Conversation {
	c := Conversation{
		Account:     client.String(s, "account"),
		Key:         client.String(s, "key"),
		Title:       client.String(s, "title"),
		Mode:        client.String(s, "mode"),
		Swarm:       client.Bool(s, "swarm"),
		Request:     client.Bool(s, "request"),
		Members:     stringList(s, "members"),
		Unread:      client.Int(s, "unread"),
		LastEvent:   millis(s, "last_event"),
		Conferences: stringList(s, "conferences"),
	}
	if last := client.Struct(s, "last"); last != nil {
		i := DecodeInteraction(last)
		c.Last = &i
	}
	return c
}

func DecodeInteraction(s *structpb.Struct) Interaction {
	return Interaction{
		ID:        client.String(s, "id"),
		Kind:      client.String(s, "kind"),
		Author:    client.String(s, "author"),
		Timestamp: millis(s, "timestamp"),
		Read:      client.Bool(s, "read"),
		Status:    client.String(s, "status"),
		Body:      client.String(s, "body"),
		Edited:    client.Bool(s, "edited"),
		OnlyEmoji: client.Bool(s, "only_emoji"),
		Direction: client.String(s, "direction"),
		Duration:  time.Duration(client.Int(s, "duration_ms")) * time.Millisecond,
		Missed:    client.Bool(s, "missed"),
		Event:     client.String(s, "event"),
		Peer:      client.String(s, "peer"),
		FileName:  client.String(s, "name"),
		Size:      client.Int(s, "total_size"),
		Progress:  client.Int(s, "progress"),
	}
}

func DecodeContact(s *structpb.Struct) Contact {
	return Contact{
		URI:    client.String(s, "uri"),
		Name:   client.String(s, "name"),
		Online: client.Bool(s, "online"),
		Status: client.String(s, "status"),
	}
}

func DecodeCall(s *structpb.Struct) Call {
	return Call{
		ID:           client.String(s, "id"),
		Account:      client.String(s, "account"),
		Conversation: client.String(s, "conversation"),
		Peer:         client.String(s, "peer"),
		PeerName:     client.String(s, "peer_name"),
		Direction:    client.String(s, "direction"),
		State:        client.String(s, "state"),
		Conference:   client.String(s, "conference"),
		AudioMuted:   client.Bool(s, "audio_muted"),
		VideoMuted:   client.Bool(s, "video_muted"),
		Created:      millis(s, "created"),
		Started:      millis(s, "started"),
	}
}

func DecodeRequest(s *structpb.Struct) Request {
	return Request{
		Account:      client.String(s, "account"),
		From:         client.String(s, "from"),
		Name:         client.String(s, "name"),
		Conversation: client.String(s, "conversation"),
		Received:     millis(s, "received"),
	}
}

func DecodeSearchHit(s *structpb.Struct) SearchHit {
	return SearchHit{
		Account:      client.String(s, "account"),
		Conversation: client.String(s, "conversation"),
		ID:           client.String(s, "id"),
		Author:       client.String(s, "author"),
		Snippet:      client.String(s, "snippet"),
		Timestamp:    millis(s, "timestamp"),
	}
}
