package model

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates interaction payloads.
type Kind string

const (
	KindText         Kind = "text"
	KindCall         Kind = "call"
	KindContactEvent Kind = "contact"
	KindDataTransfer Kind = "data_transfer"
)

// Status is the delivery state of an interaction.
type Status string

const (
	StatusUnknown          Status = "unknown"
	StatusSending          Status = "sending"
	StatusSuccess          Status = "success"
	StatusDisplayed        Status = "displayed"
	StatusFailure          Status = "failure"
	StatusCanceled         Status = "canceled"
	StatusTransferCreated  Status = "transfer_created"
	StatusTransferOngoing  Status = "transfer_ongoing"
	StatusTransferFinished Status = "transfer_finished"
	StatusTransferError    Status = "transfer_error"
)

// StatusFromDaemon maps the daemon's numeric message state.
func StatusFromDaemon(code int) Status {
	switch code {
	case 1:
		return StatusSending
	case 2:
		return StatusSuccess
	case 3:
		return StatusDisplayed
	case 4:
		return StatusFailure
	case 5:
		return StatusCanceled
	default:
		return StatusUnknown
	}
}

// Direction of a call.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// Payload is one of Text, CallRecord, ContactEvent or DataTransfer.
type Payload interface {
	Kind() Kind
	isPayload()
}

type Text struct {
	Body   string
	Edited bool
}

type CallRecord struct {
	Direction Direction
	Duration  time.Duration
	ConfID    string
	Missed    bool
}

// ContactEventType is what happened to a member or contact.
type ContactEventType string

const (
	ContactAdded       ContactEventType = "added"
	ContactInvited     ContactEventType = "invited"
	ContactJoined      ContactEventType = "joined"
	ContactLeft        ContactEventType = "left"
	ContactBanned      ContactEventType = "banned"
	ContactIncomingReq ContactEventType = "incoming_request"
	ContactUnknown     ContactEventType = "unknown"
)

type ContactEvent struct {
	Event ContactEventType
	Peer  string
}

type DataTransfer struct {
	FileID      string
	DisplayName string
	TotalSize   int64
	Progress    int64
}

func (Text) Kind() Kind         { return KindText }
func (CallRecord) Kind() Kind   { return KindCall }
func (ContactEvent) Kind() Kind { return KindContactEvent }
func (DataTransfer) Kind() Kind { return KindDataTransfer }

func (Text) isPayload()         {}
func (CallRecord) isPayload()   {}
func (ContactEvent) isPayload() {}
func (DataTransfer) isPayload() {}

// Interaction is a single entry in a conversation's history.
type Interaction struct {
	// ID is the local identity: the message id for swarm messages, the
	// daemon id for legacy ones, a random id for locally created entries.
	ID        string
	Author    string // canonical URI of the author, empty for the local user
	Timestamp time.Time
	Read      bool
	Status    Status
	DaemonID  string

	// Swarm only.
	MessageID      string
	ParentID       string
	Parents        []string
	ConversationID string
	Hidden         bool
	Record         map[string]string

	Payload Payload
}

// NewLocalID returns an id for interactions the daemon has not named.
func NewLocalID() string {
	return uuid.NewString()
}

func (i *Interaction) Kind() Kind {
	if i.Payload == nil {
		return KindText
	}
	return i.Payload.Kind()
}

// IsIncoming reports whether a peer authored the interaction.
func (i *Interaction) IsIncoming() bool { return i.Author != "" }

// IsSwarm reports whether the interaction belongs to a message DAG.
func (i *Interaction) IsSwarm() bool { return i.MessageID != "" }

// CountsUnread reports whether an unread copy of i adds to the unread
// counter.
func (i *Interaction) CountsUnread() bool {
	if i.Read || i.Hidden || !i.IsIncoming() {
		return false
	}
	switch i.Kind() {
	case KindText, KindDataTransfer, KindCall:
		return true
	}
	return false
}

// Text returns the body of text interactions and "" for other kinds.
func (i *Interaction) Text() string {
	if t, ok := i.Payload.(Text); ok {
		return t.Body
	}
	return ""
}

// Clone returns a deep copy safe to hand to another goroutine.
func (i *Interaction) Clone() *Interaction {
	if i == nil {
		return nil
	}
	c := *i
	if i.Parents != nil {
		c.Parents = append([]string(nil), i.Parents...)
	}
	if i.Record != nil {
		c.Record = make(map[string]string, len(i.Record))
		for k, v := range i.Record {
			c.Record[k] = v
		}
	}
	return &c
}
