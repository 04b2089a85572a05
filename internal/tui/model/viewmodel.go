package model

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/ratelimit"

	"github.com/matheus3301/ringcore/internal/tui/client"
)

// threadPage is how many interactions a thread shows at once.
const threadPage = 100

// refreshRate caps how often event bursts trigger a reload.
const refreshRate = 4

// ViewModel caches state fetched from the engine host and signals UI
// refreshes when the host reports changes.
type ViewModel struct {
	mu sync.RWMutex

	client        *client.Client
	status        Status
	accounts      []Account
	activeAccount string
	contacts      map[string]Contact
	conversations []Conversation
	activeKey     string
	thread        []Interaction
	hasMore       bool
	calls         []Call
	requests      []Request

	limiter   ratelimit.Limiter
	refreshCh chan struct{}
}

// NewViewModel creates a new view model connected to the engine host.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{
		client:    c,
		limiter:   ratelimit.New(refreshRate),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Watch follows the host's event stream until ctx ends, signalling a
// refresh for every event. Bursts are paced so the UI reloads at most a
// few times per second.
func (vm *ViewModel) Watch(ctx context.Context) error {
	w, err := vm.client.Watch(ctx, "", "")
	if err != nil {
		return err
	}
	for {
		if _, err := w.Recv(); err != nil {
			return err
		}
		vm.limiter.Take()
		vm.signalRefresh()
	}
}

// LoadStatus fetches the host status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.Account(ctx, "GetStatus", nil)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = DecodeStatus(resp)
	vm.mu.Unlock()
	return nil
}

// LoadAccounts fetches the accounts and picks the first one when none is
// active yet.
func (vm *ViewModel) LoadAccounts(ctx context.Context) error {
	resp, err := vm.client.Account(ctx, "ListAccounts", nil)
	if err != nil {
		return err
	}
	var accounts []Account
	for _, s := range client.List(resp, "accounts") {
		accounts = append(accounts, DecodeAccount(s))
	}
	vm.mu.Lock()
	vm.accounts = accounts
	if vm.activeAccount == "" && len(accounts) > 0 {
		vm.activeAccount = accounts[0].ID
	}
	vm.mu.Unlock()
	return nil
}

// SwitchAccount makes id the active account. The id may be given by
// prefix or by URI.
func (vm *ViewModel) SwitchAccount(id string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, a := range vm.accounts {
		if a.ID == id || a.URI == id || strings.HasPrefix(a.ID, id) {
			vm.activeAccount = a.ID
			vm.activeKey = ""
			vm.thread = nil
			vm.contacts = nil
			return true
		}
	}
	return false
}

// LoadContacts fetches the active account's contacts, used to name
// thread authors.
func (vm *ViewModel) LoadContacts(ctx context.Context) error {
	acc := vm.ActiveAccount()
	if acc == "" {
		return nil
	}
	resp, err := vm.client.Account(ctx, "ListContacts", client.Args{"account": acc})
	if err != nil {
		return err
	}
	contacts := make(map[string]Contact)
	for _, s := range client.List(resp, "contacts") {
		c := DecodeContact(s)
		contacts[c.URI] = c
	}
	vm.mu.Lock()
	vm.contacts = contacts
	vm.mu.Unlock()
	return nil
}

// AddContact sends a trust request to uri from the active account.
func (vm *ViewModel) AddContact(ctx context.Context, uri string) error {
	_, err := vm.client.Account(ctx, "AddContact", client.Args{"account": vm.ActiveAccount(), "uri": uri})
	return err
}

// DisplayName returns the contact name for uri, or uri itself.
func (vm *ViewModel) DisplayName(uri string) string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if c, ok := vm.contacts[uri]; ok && c.Name != "" {
		return c.Name
	}
	return uri
}

// LoadConversations fetches the active account's conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	acc := vm.ActiveAccount()
	if acc == "" {
		return nil
	}
	resp, err := vm.client.Conversation(ctx, "ListConversations", client.Args{"account": acc})
	if err != nil {
		return err
	}
	var convs []Conversation
	for _, s := range client.List(resp, "conversations") {
		convs = append(convs, DecodeConversation(s))
	}
	vm.mu.Lock()
	vm.conversations = convs
	vm.mu.Unlock()
	return nil
}

// OpenConversation makes key the visible thread, loads its newest page
// and marks it read. The previously open thread is hidden.
func (vm *ViewModel) OpenConversation(ctx context.Context, key string) error {
	acc := vm.ActiveAccount()
	if prev := vm.ActiveKey(); prev != "" && prev != key {
		_, _ = vm.client.Conversation(ctx, "SetVisible", client.Args{"account": acc, "conversation": prev, "visible": false})
	}
	vm.mu.Lock()
	vm.activeKey = key
	vm.mu.Unlock()
	if _, err := vm.client.Conversation(ctx, "SetVisible", client.Args{"account": acc, "conversation": key, "visible": true}); err != nil {
		return err
	}
	if err := vm.LoadThread(ctx); err != nil {
		return err
	}
	_, err := vm.client.Conversation(ctx, "MarkRead", client.Args{"account": acc, "conversation": key})
	return err
}

// CloseConversation hides the open thread.
func (vm *ViewModel) CloseConversation(ctx context.Context) {
	acc, key := vm.ActiveAccount(), vm.ActiveKey()
	if key == "" {
		return
	}
	_, _ = vm.client.Conversation(ctx, "SetVisible", client.Args{"account": acc, "conversation": key, "visible": false})
	vm.mu.Lock()
	vm.activeKey = ""
	vm.thread = nil
	vm.mu.Unlock()
}

// LoadThread refreshes the open thread's newest page.
func (vm *ViewModel) LoadThread(ctx context.Context) error {
	acc, key := vm.ActiveAccount(), vm.ActiveKey()
	if key == "" {
		return nil
	}
	resp, err := vm.client.Conversation(ctx, "ListInteractions", client.Args{
		"account":      acc,
		"conversation": key,
		"limit":        threadPage,
	})
	if err != nil {
		return err
	}
	var thread []Interaction
	for _, s := range client.List(resp, "interactions") {
		thread = append(thread, DecodeInteraction(s))
	}
	vm.mu.Lock()
	vm.thread = thread
	vm.hasMore = client.Bool(resp, "has_more")
	vm.mu.Unlock()
	return nil
}

// LoadOlder asks the daemon for older history of the open swarm. The
// thread refreshes through the event stream as pages arrive.
func (vm *ViewModel) LoadOlder(ctx context.Context) error {
	acc, key := vm.ActiveAccount(), vm.ActiveKey()
	if key == "" {
		return nil
	}
	_, err := vm.client.Conversation(ctx, "LoadMore", client.Args{"account": acc, "conversation": key})
	return err
}

// SendText queues text for the open conversation.
func (vm *ViewModel) SendText(ctx context.Context, text string) error {
	acc, key := vm.ActiveAccount(), vm.ActiveKey()
	if key == "" {
		return nil
	}
	_, err := vm.client.Conversation(ctx, "SendText", client.Args{
		"account":      acc,
		"conversation": key,
		"text":         text,
	})
	return err
}

// Search runs a full-text query over stored history.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]SearchHit, error) {
	resp, err := vm.client.Conversation(ctx, "Search", client.Args{"query": query, "limit": 50})
	if err != nil {
		return nil, err
	}
	var hits []SearchHit
	for _, s := range client.List(resp, "results") {
		hits = append(hits, DecodeSearchHit(s))
	}
	return hits, nil
}

// LoadCalls fetches the live calls of every account.
func (vm *ViewModel) LoadCalls(ctx context.Context) error {
	resp, err := vm.client.Calls(ctx, "ListCalls", nil)
	if err != nil {
		return err
	}
	var calls []Call
	for _, s := range client.List(resp, "calls") {
		calls = append(calls, DecodeCall(s))
	}
	vm.mu.Lock()
	vm.calls = calls
	vm.mu.Unlock()
	return nil
}

// PlaceCall calls uri from the active account.
func (vm *ViewModel) PlaceCall(ctx context.Context, uri string) (string, error) {
	resp, err := vm.client.Calls(ctx, "PlaceCall", client.Args{"account": vm.ActiveAccount(), "uri": uri})
	if err != nil {
		return "", err
	}
	return client.String(resp, "call_id"), nil
}

// CallAction runs a single-call command such as Accept or HangUp.
func (vm *ViewModel) CallAction(ctx context.Context, method, callID string) error {
	_, err := vm.client.Calls(ctx, method, client.Args{"call": callID})
	return err
}

// Mute toggles a media stream of a call.
func (vm *ViewModel) Mute(ctx context.Context, callID, media string, mute bool) error {
	_, err := vm.client.Calls(ctx, "Mute", client.Args{"call": callID, "media": media, "mute": mute})
	return err
}

// LoadRequests fetches the active account's trust requests.
func (vm *ViewModel) LoadRequests(ctx context.Context) error {
	acc := vm.ActiveAccount()
	if acc == "" {
		return nil
	}
	resp, err := vm.client.Account(ctx, "ListRequests", client.Args{"account": acc})
	if err != nil {
		return err
	}
	var reqs []Request
	for _, s := range client.List(resp, "requests") {
		reqs = append(reqs, DecodeRequest(s))
	}
	vm.mu.Lock()
	vm.requests = reqs
	vm.mu.Unlock()
	return nil
}

// AnswerRequest accepts or discards the request from uri.
func (vm *ViewModel) AnswerRequest(ctx context.Context, from string, accept bool) error {
	method := "DiscardRequest"
	if accept {
		method = "AcceptRequest"
	}
	_, err := vm.client.Account(ctx, method, client.Args{"account": vm.ActiveAccount(), "from": from})
	return err
}

// Status returns a snapshot of the host status.
func (vm *ViewModel) Status() Status {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// ActiveAccount returns the id of the account being browsed.
func (vm *ViewModel) ActiveAccount() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activeAccount
}

// Account returns the active account's row.
func (vm *ViewModel) Account() (Account, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, a := range vm.accounts {
		if a.ID == vm.activeAccount {
			return a, true
		}
	}
	return Account{}, false
}

// ActiveKey returns the key of the open conversation.
func (vm *ViewModel) ActiveKey() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activeKey
}

// Conversations returns a snapshot of the conversation list.
func (vm *ViewModel) Conversations() []Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.conversations
}

// Conversation looks up a listed conversation by key.
func (vm *ViewModel) Conversation(key string) (Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if c.Key == key {
			return c, true
		}
	}
	return Conversation{}, false
}

// FindConversation returns the first conversation whose name contains
// needle, ignoring case.
func (vm *ViewModel) FindConversation(needle string) (Conversation, bool) {
	needle = strings.ToLower(needle)
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if strings.Contains(strings.ToLower(c.Name()), needle) {
			return c, true
		}
	}
	return Conversation{}, false
}

// Thread returns the open thread, oldest first.
func (vm *ViewModel) Thread() ([]Interaction, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.thread, vm.hasMore
}

// Calls returns a snapshot of the live calls.
func (vm *ViewModel) Calls() []Call {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.calls
}

// Requests returns a snapshot of the trust requests.
func (vm *ViewModel) Requests() []Request {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.requests
}
