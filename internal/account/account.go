// Package account holds the state of one daemon account: its contacts,
// conversations and pending trust requests. Every mutation runs under
// the account lock, so an account has a single writer at a time.
package account

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/contact"
	"github.com/matheus3301/ringcore/internal/conversation"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/uri"
)

var (
	ErrUnknownAccount      = errors.New("unknown account")
	ErrUnknownConversation = errors.New("unknown conversation")
	ErrUnknownRequest      = errors.New("unknown trust request")
	ErrNotSwarm            = errors.New("not a swarm conversation")
)

const (
	defaultBackfillPage = 32
	commandTimeout      = 10 * time.Second
)

// Config describes an account as the daemon reports it.
type Config struct {
	ID  string
	URI string
	// BackfillPage is how many messages one history request asks for.
	BackfillPage int
	// BackfillRate caps history requests per second, zero for no cap.
	BackfillRate int
}

// Account is the in-memory state of one account.
type Account struct {
	id      string
	self    string
	page    int
	cmds    ring.Commands
	bus     *bus.Bus
	logger  *zap.Logger
	limiter ratelimit.Limiter
	now     func() time.Time

	mu           sync.Mutex
	contacts     *contact.Registry
	active       map[string]*conversation.Conversation
	pending      map[string]*conversation.Conversation
	cache        map[string]*conversation.Conversation
	swarms       map[string]*conversation.Conversation
	activeView   []*conversation.Conversation
	pendingView  []*conversation.Conversation
	activeDirty  bool
	pendingDirty bool
	requests     map[string]*model.TrustRequest
	backfills    map[string]*Backfill
	registration string
	unread       int
}

// New creates an empty account.
func New(cfg Config, cmds ring.Commands, b *bus.Bus, logger *zap.Logger) *Account {
	if logger == nil {
		logger = zap.NewNop()
	}
	if b == nil {
		b = bus.New()
	}
	page := cfg.BackfillPage
	if page <= 0 {
		page = defaultBackfillPage
	}
	limiter := ratelimit.NewUnlimited()
	if cfg.BackfillRate > 0 {
		limiter = ratelimit.New(cfg.BackfillRate, ratelimit.WithoutSlack)
	}
	self := uri.Canonical(cfg.URI)
	return &Account{
		id:       cfg.ID,
		self:     self,
		page:     page,
		cmds:     cmds,
		bus:      b,
		logger:   logger.With(zap.String("account", cfg.ID)),
		limiter:  limiter,
		now:      time.Now,
		contacts: contact.NewRegistry(self),
		active:   make(map[string]*conversation.Conversation),
		pending:  make(map[string]*conversation.Conversation),
		cache:    make(map[string]*conversation.Conversation),
		swarms:   make(map[string]*conversation.Conversation),
		requests: make(map[string]*model.TrustRequest),

		backfills: make(map[string]*Backfill),
	}
}

// ID is the daemon's account id.
func (a *Account) ID() string { return a.id }

// URI is the canonical URI of the local user on this account.
func (a *Account) URI() string { return a.self }

// Contacts is the account's contact registry.
func (a *Account) Contacts() *contact.Registry { return a.contacts }

// Peer returns the contact for address, asking the daemon to resolve
// its name the first time an unresolved peer is seen.
func (a *Account) Peer(address string) *model.Contact {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.contact(address)
}

// Registration returns the last reported registration state.
func (a *Account) Registration() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registration
}

// Conversation returns a known conversation without creating it.
func (a *Account) Conversation(key string) (*conversation.Conversation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.cache[uri.Canonical(key)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownConversation, "%s/%s", a.id, key)
	}
	return c, nil
}

// ConversationWith returns the conversation representing a peer, creating
// it on first use. It is the swarm when the peer has one.
func (a *Account) ConversationWith(address string) *conversation.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	ct := a.contact(address)
	return a.conversationFor(ct.ConversationURI())
}

// Conversations returns the active conversations, most recent first.
func (a *Account) Conversations() []*conversation.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sortedView(a.active, &a.activeView, &a.activeDirty)
}

// Pending returns conversations awaiting a trust decision, most recent
// first.
func (a *Account) Pending() []*conversation.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sortedView(a.pending, &a.pendingView, &a.pendingDirty)
}

// UnreadTotal is the sum of unread interactions across active
// conversations.
func (a *Account) UnreadTotal() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unread
}

// SetVisible records whether a client displays the conversation.
func (a *Account) SetVisible(key string, visible bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.cache[uri.Canonical(key)]
	if !ok {
		return errors.Wrapf(ErrUnknownConversation, "%s/%s", a.id, key)
	}
	c.SetVisible(visible)
	return nil
}

func (a *Account) sortedView(bucket map[string]*conversation.Conversation, view *[]*conversation.Conversation, dirty *bool) []*conversation.Conversation {
	if *dirty || len(*view) != len(bucket) {
		v := make([]*conversation.Conversation, 0, len(bucket))
		for _, c := range bucket {
			v = append(v, c)
		}
		last := make(map[*conversation.Conversation]time.Time, len(v))
		for _, c := range v {
			last[c] = c.LastEventTime()
		}
		sort.Slice(v, func(i, j int) bool {
			ti, tj := last[v[i]], last[v[j]]
			if !ti.Equal(tj) {
				return ti.After(tj)
			}
			return v[i].Key() < v[j].Key()
		})
		*view = v
		*dirty = false
	}
	return append([]*conversation.Conversation(nil), *view...)
}

// contact returns the registry entry for address and requests a name
// lookup the first time an unresolved peer is seen.
func (a *Account) contact(address string) *model.Contact {
	ct, _ := a.contacts.GetOrCreate(address)
	if ct.Key() != a.self && ct.ClaimLookup() {
		key := ct.Key()
		a.async("lookup address", func(ctx context.Context) error {
			return a.cmds.LookupAddress(ctx, a.id, key)
		})
	}
	return ct
}

// conversationFor returns the conversation for a canonical key, creating
// it in the transient cache on first reference.
func (a *Account) conversationFor(key string) *conversation.Conversation {
	key = uri.Canonical(key)
	if c, ok := a.cache[key]; ok {
		return c
	}
	var c *conversation.Conversation
	if u := uri.Parse(key); u.IsSwarm() {
		c = conversation.NewSwarm(a.id, u.Host, conversation.ModeSyncing, a.logger)
		a.swarms[c.Key()] = c
	} else {
		c = conversation.NewLegacy(a.id, a.contact(key), a.logger)
	}
	a.cache[c.Key()] = c
	return c
}

// markActive moves c into the active bucket.
func (a *Account) markActive(c *conversation.Conversation) {
	key := c.Key()
	if _, ok := a.active[key]; ok {
		return
	}
	if _, ok := a.pending[key]; ok {
		delete(a.pending, key)
		a.pendingDirty = true
		a.publishPending()
	}
	a.active[key] = c
	a.activeDirty = true
	a.publishList()
	a.refreshUnread()
}

// markPending moves c into the pending bucket unless it is active.
func (a *Account) markPending(c *conversation.Conversation) {
	key := c.Key()
	if _, ok := a.active[key]; ok {
		return
	}
	if _, ok := a.pending[key]; ok {
		return
	}
	a.pending[key] = c
	a.pendingDirty = true
	a.publishPending()
}

// markStranger files a legacy conversation as pending. A peer already
// represented by a swarm keeps the legacy history cached only.
func (a *Account) markStranger(c *conversation.Conversation) {
	if p := c.Peer(); p != nil && !c.IsSwarm() && !p.HasOwnConversation() {
		return
	}
	a.markPending(c)
}

// drop takes c out of the active and pending buckets, leaving it cached.
func (a *Account) drop(c *conversation.Conversation) {
	key := c.Key()
	if _, ok := a.active[key]; ok {
		delete(a.active, key)
		a.activeDirty = true
		a.publishList()
		a.refreshUnread()
	}
	if _, ok := a.pending[key]; ok {
		delete(a.pending, key)
		a.pendingDirty = true
		a.publishPending()
	}
}

// forget removes every trace of c and fails its outstanding back-fill.
func (a *Account) forget(c *conversation.Conversation) {
	a.drop(c)
	key := c.Key()
	delete(a.cache, key)
	delete(a.swarms, key)
	if bf, ok := a.backfills[key]; ok {
		delete(a.backfills, key)
		bf.abort(errors.Wrapf(ErrUnknownConversation, "%s removed", key))
	}
	a.publish(KindConversationRemoved, HistoryCleared{AccountID: a.id, ConversationID: key})
}

// touch marks the buckets holding c for re-sorting and announces the
// conversation's new state.
func (a *Account) touch(c *conversation.Conversation) {
	key := c.Key()
	if _, ok := a.active[key]; ok {
		a.activeDirty = true
	}
	if _, ok := a.pending[key]; ok {
		a.pendingDirty = true
	}
	a.publish(KindConversationUpdated, ConversationEvent{AccountID: a.id, Summary: c.Summary()})
	a.refreshUnread()
}

func (a *Account) refreshUnread() {
	total := 0
	for _, c := range a.active {
		total += c.Unread()
	}
	if total == a.unread {
		return
	}
	a.unread = total
	a.bus.Publish(bus.NewEvent(KindUnreadChanged, a.id, UnreadChanged{AccountID: a.id, Total: total}).Retained())
}

func (a *Account) publishList() {
	a.bus.Publish(bus.NewEvent(KindListChanged, a.id, ListChanged{AccountID: a.id, Count: len(a.active)}).Retained())
}

func (a *Account) publishPending() {
	a.bus.Publish(bus.NewEvent(KindPendingChanged, a.id, ListChanged{AccountID: a.id, Count: len(a.pending)}).Retained())
}

func (a *Account) publish(kind string, payload any) {
	a.bus.Publish(bus.NewEvent(kind, a.id, payload))
}

func (a *Account) publishInteraction(kind string, c *conversation.Conversation, i *model.Interaction) {
	a.publish(kind, InteractionEvent{
		AccountID:      a.id,
		ConversationID: c.Key(),
		Swarm:          c.IsSwarm(),
		Interaction:    i.Clone(),
	})
}

// async issues a daemon command off the caller's goroutine. Failures are
// logged; results arrive as events.
func (a *Account) async(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.logger.Debug("daemon command failed", zap.String("command", what), zap.Error(err))
		}
	}()
}
