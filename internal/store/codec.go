package store

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/matheus3301/ringcore/internal/model"
)

var (
	recordEnc cbor.EncMode
	recordDec cbor.DecMode
)

func init() {
	var err error
	if recordEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if recordDec, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

func encodeRecord(rec map[string]string) ([]byte, error) {
	if len(rec) == 0 {
		return nil, nil
	}
	b, err := recordEnc.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

func decodeRecord(b []byte) (map[string]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var rec map[string]string
	if err := recordDec.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// FromModel flattens an interaction of the given conversation for
// storage.
func FromModel(accountID, conversationID string, i *model.Interaction) *Interaction {
	return &Interaction{
		AccountID:      accountID,
		ConversationID: conversationID,
		InteractionID:  i.ID,
		DaemonID:       i.DaemonID,
		Author:         i.Author,
		Kind:           string(i.Kind()),
		Body:           i.Text(),
		Status:         string(i.Status),
		Read:           i.Read,
		Swarm:          i.IsSwarm(),
		Timestamp:      i.Timestamp.UnixMilli(),
		Record:         model.ToRecord(i),
	}
}

// Model rebuilds the interaction from its stored form.
func (s *Interaction) Model() (*model.Interaction, error) {
	rec := s.Record
	if rec == nil {
		rec = map[string]string{
			model.RecordID:   s.InteractionID,
			model.RecordType: model.TypeText,
			model.RecordBody: s.Body,
		}
		if s.Author != "" {
			rec[model.RecordAuthor] = s.Author
		}
	}
	i, err := model.FromRecord(s.ConversationID, "", rec)
	if err != nil {
		return nil, err
	}
	i.ID = s.InteractionID
	i.DaemonID = s.DaemonID
	i.Author = s.Author
	i.Timestamp = time.UnixMilli(s.Timestamp)
	i.Read = s.Read
	if s.Status != "" {
		i.Status = model.Status(s.Status)
	}
	if !s.Swarm {
		i.MessageID = ""
		i.ConversationID = ""
		i.Record = nil
	}
	return i, nil
}
