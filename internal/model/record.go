package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/matheus3301/ringcore/internal/uri"
)

// Record keys and types emitted by the daemon for swarm messages.
const (
	RecordID               = "id"
	RecordType             = "type"
	RecordAuthor           = "author"
	RecordTimestamp        = "timestamp"
	RecordLinearizedParent = "linearizedParent"
	RecordParents          = "parents"
	RecordBody             = "body"
	RecordAction           = "action"
	RecordURI              = "uri"
	RecordDuration         = "duration"
	RecordConfID           = "confId"
	RecordFileID           = "fileId"
	RecordDisplayName      = "displayName"
	RecordTotalSize        = "totalSize"
	RecordEdit             = "edit"
	RecordInvited          = "invited"

	TypeText         = "text/plain"
	TypeCallHistory  = "application/call-history+json"
	TypeMember       = "member"
	TypeDataTransfer = "application/data-transfer+json"
	TypeInitial      = "initial"
	TypeMerge        = "merge"
	TypeEdited       = "application/edited-message"
)

// ErrMalformedRecord is returned for records without an id.
var ErrMalformedRecord = errors.New("malformed record")

var memberActions = map[string]ContactEventType{
	"add":    ContactInvited,
	"join":   ContactJoined,
	"remove": ContactLeft,
	"ban":    ContactBanned,
}

// FromRecord builds an interaction from a daemon record. self is the
// canonical URI of the local account; records it authored get an empty
// Author. The record is kept verbatim on the result.
func FromRecord(conversationID, self string, rec map[string]string) (*Interaction, error) {
	id := rec[RecordID]
	if id == "" {
		return nil, errors.Wrapf(ErrMalformedRecord, "conversation %s: missing %q", conversationID, RecordID)
	}

	author := ""
	if raw := rec[RecordAuthor]; raw != "" {
		author = uri.Canonical(raw)
		if author == self {
			author = ""
		}
	}

	i := &Interaction{
		ID:             id,
		MessageID:      id,
		Author:         author,
		ConversationID: conversationID,
		Status:         StatusSuccess,
		Record:         copyRecord(rec),
	}
	i.Read = !i.IsIncoming()
	if ts, err := strconv.ParseInt(rec[RecordTimestamp], 10, 64); err == nil {
		i.Timestamp = time.Unix(ts, 0)
	}
	if p := rec[RecordParents]; p != "" {
		i.Parents = strings.Split(p, ",")
	}
	i.ParentID = rec[RecordLinearizedParent]
	if i.ParentID == "" && len(i.Parents) > 0 {
		i.ParentID = i.Parents[0]
	}

	switch rec[RecordType] {
	case TypeText:
		i.Payload = Text{Body: rec[RecordBody]}
	case TypeCallHistory:
		d, _ := strconv.ParseInt(rec[RecordDuration], 10, 64)
		dir := Outgoing
		if i.IsIncoming() {
			dir = Incoming
		}
		i.Payload = CallRecord{
			Direction: dir,
			Duration:  time.Duration(d) * time.Millisecond,
			ConfID:    rec[RecordConfID],
			Missed:    d == 0,
		}
	case TypeMember:
		ev, ok := memberActions[rec[RecordAction]]
		if !ok {
			ev = localContactEvent(rec[RecordAction])
		}
		i.Payload = ContactEvent{Event: ev, Peer: uri.Canonical(rec[RecordURI])}
	case TypeDataTransfer:
		size, _ := strconv.ParseInt(rec[RecordTotalSize], 10, 64)
		i.Payload = DataTransfer{FileID: rec[RecordFileID], DisplayName: rec[RecordDisplayName], TotalSize: size}
		i.Status = StatusTransferCreated
	case TypeInitial:
		if invited := rec[RecordInvited]; invited != "" {
			i.Payload = ContactEvent{Event: ContactAdded, Peer: uri.Canonical(invited)}
		} else {
			i.Payload = Text{}
			i.Hidden = true
		}
	case TypeEdited:
		i.Payload = Text{Body: rec[RecordBody]}
		i.Hidden = true
	default:
		// merge commits and types this client does not render
		i.Payload = Text{}
		i.Hidden = true
	}
	if i.Hidden {
		i.Read = true
	}
	return i, nil
}

// EditTarget returns the id of the message an edit replaces, if any.
func (i *Interaction) EditTarget() string {
	if i.Record == nil || i.Record[RecordType] != TypeEdited {
		return ""
	}
	return i.Record[RecordEdit]
}

// ToRecord returns the record form of i. Swarm messages return the record
// they were built from; other interactions get a synthesized one that
// FromRecord reads back.
func ToRecord(i *Interaction) map[string]string {
	if i.Record != nil {
		return copyRecord(i.Record)
	}
	rec := map[string]string{
		RecordID:        i.ID,
		RecordTimestamp: strconv.FormatInt(i.Timestamp.Unix(), 10),
	}
	if i.Author != "" {
		rec[RecordAuthor] = i.Author
	}
	if i.ParentID != "" {
		rec[RecordLinearizedParent] = i.ParentID
	}
	if len(i.Parents) > 0 {
		rec[RecordParents] = strings.Join(i.Parents, ",")
	}
	switch p := i.Payload.(type) {
	case Text:
		rec[RecordType] = TypeText
		rec[RecordBody] = p.Body
	case CallRecord:
		rec[RecordType] = TypeCallHistory
		rec[RecordDuration] = strconv.FormatInt(p.Duration.Milliseconds(), 10)
		if p.ConfID != "" {
			rec[RecordConfID] = p.ConfID
		}
	case ContactEvent:
		if p.Event == ContactAdded {
			rec[RecordType] = TypeInitial
			rec[RecordInvited] = p.Peer
			break
		}
		rec[RecordType] = TypeMember
		rec[RecordURI] = p.Peer
		rec[RecordAction] = string(p.Event)
		for action, ev := range memberActions {
			if ev == p.Event {
				rec[RecordAction] = action
			}
		}
	case DataTransfer:
		rec[RecordType] = TypeDataTransfer
		rec[RecordFileID] = p.FileID
		rec[RecordDisplayName] = p.DisplayName
		rec[RecordTotalSize] = strconv.FormatInt(p.TotalSize, 10)
	}
	return rec
}

// localContactEvent decodes events this client synthesizes itself.
func localContactEvent(action string) ContactEventType {
	switch ev := ContactEventType(action); ev {
	case ContactAdded, ContactIncomingReq:
		return ev
	}
	return ContactUnknown
}

func copyRecord(rec map[string]string) map[string]string {
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
