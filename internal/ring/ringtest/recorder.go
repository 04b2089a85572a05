// Package ringtest provides an in-memory ring.Commands for tests.
package ringtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/ringcore/internal/ring"
)

// Invocation is one recorded command.
type Invocation struct {
	Name string
	Args []any
}

// Recorder implements ring.Commands by recording every command. Query
// commands answer from the exported fields.
type Recorder struct {
	mu          sync.Mutex
	invocations []Invocation
	fail        map[string]error
	seq         int
	loads       []uint32

	AccountList             []ring.AccountDetails
	ContactList             map[string][]ring.ContactDetails
	ConversationList        map[string][]ring.ConversationDetails
	TrustRequestList        map[string][]ring.TrustRequestReceived
	ConversationRequestList map[string][]ring.ConversationRequestReceived
}

var _ ring.Commands = (*Recorder)(nil)

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{
		fail:                    make(map[string]error),
		ContactList:             make(map[string][]ring.ContactDetails),
		ConversationList:        make(map[string][]ring.ConversationDetails),
		TrustRequestList:        make(map[string][]ring.TrustRequestReceived),
		ConversationRequestList: make(map[string][]ring.ConversationRequestReceived),
	}
}

// Fail makes the named command return err from now on.
func (r *Recorder) Fail(name string, err error) {
	r.mu.Lock()
	r.fail[name] = err
	r.mu.Unlock()
}

// Invocations returns the recorded commands with the given name, or all
// of them for an empty name.
func (r *Recorder) Invocations(name string) []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invocation
	for _, inv := range r.invocations {
		if name == "" || inv.Name == name {
			out = append(out, inv)
		}
	}
	return out
}

func (r *Recorder) record(name string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = append(r.invocations, Invocation{Name: name, Args: args})
	return r.fail[name]
}

func (r *Recorder) nextID(prefix string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("%s%d", prefix, r.seq)
}

func (r *Recorder) Accounts(context.Context) ([]ring.AccountDetails, error) {
	return r.AccountList, r.record("Accounts")
}

func (r *Recorder) Contacts(_ context.Context, accountID string) ([]ring.ContactDetails, error) {
	return r.ContactList[accountID], r.record("Contacts", accountID)
}

func (r *Recorder) Conversations(_ context.Context, accountID string) ([]ring.ConversationDetails, error) {
	return r.ConversationList[accountID], r.record("Conversations", accountID)
}

func (r *Recorder) TrustRequests(_ context.Context, accountID string) ([]ring.TrustRequestReceived, error) {
	return r.TrustRequestList[accountID], r.record("TrustRequests", accountID)
}

func (r *Recorder) ConversationRequests(_ context.Context, accountID string) ([]ring.ConversationRequestReceived, error) {
	return r.ConversationRequestList[accountID], r.record("ConversationRequests", accountID)
}

func (r *Recorder) PlaceCall(_ context.Context, accountID, to string) (string, error) {
	if err := r.record("PlaceCall", accountID, to); err != nil {
		return "", err
	}
	return r.nextID("call"), nil
}

func (r *Recorder) Accept(_ context.Context, callID string) error {
	return r.record("Accept", callID)
}

func (r *Recorder) Refuse(_ context.Context, callID string) error {
	return r.record("Refuse", callID)
}

func (r *Recorder) Hold(_ context.Context, callID string) error {
	return r.record("Hold", callID)
}

func (r *Recorder) Unhold(_ context.Context, callID string) error {
	return r.record("Unhold", callID)
}

func (r *Recorder) HangUp(_ context.Context, callID string) error {
	return r.record("HangUp", callID)
}

func (r *Recorder) AddParticipant(_ context.Context, callID, confID string) error {
	return r.record("AddParticipant", callID, confID)
}

func (r *Recorder) DetachParticipant(_ context.Context, callID string) error {
	return r.record("DetachParticipant", callID)
}

func (r *Recorder) JoinConference(_ context.Context, confID, otherConfID string) error {
	return r.record("JoinConference", confID, otherConfID)
}

func (r *Recorder) MuteMedia(_ context.Context, callID, media string, mute bool) error {
	return r.record("MuteMedia", callID, media, mute)
}

func (r *Recorder) SendMessage(_ context.Context, accountID, conversationID, text string) error {
	return r.record("SendMessage", accountID, conversationID, text)
}

func (r *Recorder) SendTextMessage(_ context.Context, accountID, to, text string) (string, error) {
	if err := r.record("SendTextMessage", accountID, to, text); err != nil {
		return "", err
	}
	return r.nextID("msg"), nil
}

func (r *Recorder) LoadConversationMessages(_ context.Context, accountID, conversationID, from string, count int) (uint32, error) {
	if err := r.record("LoadConversationMessages", accountID, conversationID, from, count); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.loads = append(r.loads, uint32(r.seq))
	return uint32(r.seq), nil
}

// LoadRequestIDs returns the ids handed out by LoadConversationMessages
// in order.
func (r *Recorder) LoadRequestIDs() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.loads...)
}

func (r *Recorder) SetMessageDisplayed(_ context.Context, accountID, conversationID, messageID string) error {
	return r.record("SetMessageDisplayed", accountID, conversationID, messageID)
}

func (r *Recorder) AddContact(_ context.Context, accountID, uri string) error {
	return r.record("AddContact", accountID, uri)
}

func (r *Recorder) RemoveContact(_ context.Context, accountID, uri string, ban bool) error {
	return r.record("RemoveContact", accountID, uri, ban)
}

func (r *Recorder) AcceptTrustRequest(_ context.Context, accountID, from string) error {
	return r.record("AcceptTrustRequest", accountID, from)
}

func (r *Recorder) DiscardTrustRequest(_ context.Context, accountID, from string) error {
	return r.record("DiscardTrustRequest", accountID, from)
}

func (r *Recorder) AcceptConversationRequest(_ context.Context, accountID, conversationID string) error {
	return r.record("AcceptConversationRequest", accountID, conversationID)
}

func (r *Recorder) DeclineConversationRequest(_ context.Context, accountID, conversationID string) error {
	return r.record("DeclineConversationRequest", accountID, conversationID)
}

func (r *Recorder) LookupAddress(_ context.Context, accountID, address string) error {
	return r.record("LookupAddress", accountID, address)
}
