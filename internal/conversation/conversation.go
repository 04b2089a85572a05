package conversation

import (
	"slices"
	"sync"
	"time"

	"github.com/golang-collections/collections/set"
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/uri"
)

// Conversation holds the ordered history of one conversation. Legacy
// conversations are keyed by a peer and ordered by timestamp; swarm
// conversations are keyed by their id and linearize a message DAG.
//
// Mutating methods are called by the owning account while it holds its
// own lock; the conversation lock only protects readers.
type Conversation struct {
	accountID string
	key       string
	uri       uri.URI
	logger    *zap.Logger

	mu            sync.Mutex
	mode          Mode
	members       []*model.Contact
	messages      map[string]*model.Interaction
	byDaemon      map[string]*model.Interaction
	history       []*model.Interaction
	roots         *set.Set
	unattached    []*model.Interaction
	pendingEdits  map[string]*model.Interaction
	lastRead      string
	lastDisplayed map[string]string
	visible       bool
	unread        int
	conferences   []string
	request       *model.TrustRequest
}

// NewLegacy returns the conversation with a single peer.
func NewLegacy(accountID string, peer *model.Contact, logger *zap.Logger) *Conversation {
	c := newConversation(accountID, peer.URI(), ModeLegacy, logger)
	c.members = []*model.Contact{peer}
	return c
}

// NewSwarm returns a swarm conversation with no members yet.
func NewSwarm(accountID, id string, mode Mode, logger *zap.Logger) *Conversation {
	return newConversation(accountID, uri.FromSwarmID(id), mode, logger)
}

func newConversation(accountID string, u uri.URI, mode Mode, logger *zap.Logger) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := u.RawURI()
	return &Conversation{
		accountID:     accountID,
		key:           key,
		uri:           u,
		logger:        logger.With(zap.String("conversation", key)),
		mode:          mode,
		messages:      make(map[string]*model.Interaction),
		byDaemon:      make(map[string]*model.Interaction),
		roots:         set.New(),
		pendingEdits:  make(map[string]*model.Interaction),
		lastDisplayed: make(map[string]string),
	}
}

// Key is the canonical URI of the conversation.
func (c *Conversation) Key() string { return c.key }

func (c *Conversation) URI() uri.URI { return c.uri }

func (c *Conversation) AccountID() string { return c.accountID }

// IsSwarm reports whether the conversation is a message DAG.
func (c *Conversation) IsSwarm() bool { return c.uri.IsSwarm() }

// SwarmID is the bare swarm id, empty for legacy conversations.
func (c *Conversation) SwarmID() string {
	if !c.IsSwarm() {
		return ""
	}
	return c.uri.Host
}

func (c *Conversation) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Conversation) SetMode(m Mode) {
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
}

// Members returns the participants other than the local user.
func (c *Conversation) Members() []*model.Contact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*model.Contact(nil), c.members...)
}

// Peer returns the single member of a one-to-one or legacy conversation.
func (c *Conversation) Peer() *model.Contact {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.members) != 1 {
		return nil
	}
	return c.members[0]
}

// AddMember adds a participant. It reports false when already present.
func (c *Conversation) AddMember(ct *model.Contact) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.members {
		if m == ct {
			return false
		}
	}
	c.members = append(c.members, ct)
	return true
}

// RemoveMember drops the participant with the given key.
func (c *Conversation) RemoveMember(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for idx, m := range c.members {
		if m.Key() == key {
			c.members = append(c.members[:idx], c.members[idx+1:]...)
			delete(c.lastDisplayed, key)
			return true
		}
	}
	return false
}

func (c *Conversation) Request() *model.TrustRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.request
}

func (c *Conversation) SetRequest(r *model.TrustRequest) {
	c.mu.Lock()
	c.request = r
	c.mu.Unlock()
}

func (c *Conversation) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// SetVisible records whether a client currently displays the
// conversation. New leaves arriving while visible are marked read.
func (c *Conversation) SetVisible(v bool) {
	c.mu.Lock()
	c.visible = v
	c.mu.Unlock()
}

// Unread is the number of unread incoming interactions.
func (c *Conversation) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

func (c *Conversation) LastRead() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRead
}

// SetLastRead restores a persisted read pointer.
func (c *Conversation) SetLastRead(id string) {
	c.mu.Lock()
	c.lastRead = id
	c.mu.Unlock()
}

// LastDisplayed returns the last message each member has displayed.
func (c *Conversation) LastDisplayed() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.lastDisplayed))
	for k, v := range c.lastDisplayed {
		out[k] = v
	}
	return out
}

// Conferences returns the ids of live conferences attached to the
// conversation.
func (c *Conversation) Conferences() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.conferences...)
}

// SetConferences replaces the conference list. It reports whether the
// list changed.
func (c *Conversation) SetConferences(ids []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Equal(c.conferences, ids) {
		return false
	}
	c.conferences = append([]string(nil), ids...)
	return true
}

// LastEventTime is the timestamp of the newest visible interaction.
func (c *Conversation) LastEventTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last := c.lastVisible(); last != nil {
		return last.Timestamp
	}
	return time.Time{}
}

// Last returns a copy of the newest visible interaction, or nil.
func (c *Conversation) Last() *model.Interaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastVisible().Clone()
}

func (c *Conversation) lastVisible() *model.Interaction {
	for idx := len(c.history) - 1; idx >= 0; idx-- {
		if !c.history[idx].Hidden {
			return c.history[idx]
		}
	}
	return nil
}

// Len is the number of placed interactions, hidden ones included.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// History returns copies of the visible interactions in display order.
func (c *Conversation) History() []*model.Interaction {
	return c.Page("", 0)
}

// Page returns up to limit visible interactions preceding the one with id
// before, oldest first. An empty before pages from the newest; a
// non-positive limit returns everything.
func (c *Conversation) Page(before string, limit int) []*model.Interaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := len(c.history)
	if before != "" {
		for idx, i := range c.history {
			if i.ID == before {
				end = idx
				break
			}
		}
	}
	var out []*model.Interaction
	for idx := end - 1; idx >= 0; idx-- {
		if c.history[idx].Hidden {
			continue
		}
		out = append(out, c.history[idx].Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// Get returns a copy of the interaction with the given id.
func (c *Conversation) Get(id string) (*model.Interaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.messages[id]
	if !ok {
		return nil, false
	}
	return i.Clone(), true
}

// MarkAllRead marks every interaction read and moves the read pointer to
// the newest one. It returns the interactions that changed and the id of
// the new read pointer.
func (c *Conversation) MarkAllRead() ([]*model.Interaction, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var changed []*model.Interaction
	for _, i := range c.history {
		if !i.Read {
			i.Read = true
			changed = append(changed, i)
		}
	}
	c.unread = 0
	if n := len(c.history); n > 0 {
		c.lastRead = c.history[n-1].ID
	}
	return changed, c.lastRead
}

// Clear drops the whole history.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = make(map[string]*model.Interaction)
	c.byDaemon = make(map[string]*model.Interaction)
	c.history = nil
	c.roots = set.New()
	c.unattached = nil
	c.pendingEdits = make(map[string]*model.Interaction)
	c.lastRead = ""
	c.unread = 0
}

// Summary is a point-in-time view of a conversation for listings.
type Summary struct {
	AccountID   string
	Key         string
	Mode        Mode
	Swarm       bool
	Members     []string
	Title       string
	Unread      int
	Last        *model.Interaction
	LastEvent   time.Time
	Loaded      bool
	Conferences []string
	Request     bool
}

func (c *Conversation) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Summary{
		AccountID:   c.accountID,
		Key:         c.key,
		Mode:        c.mode,
		Swarm:       c.IsSwarm(),
		Unread:      c.unread,
		Loaded:      c.isLoaded(),
		Conferences: append([]string(nil), c.conferences...),
		Request:     c.request != nil,
	}
	for _, m := range c.members {
		s.Members = append(s.Members, m.Key())
		if s.Title == "" {
			s.Title = m.DisplayName()
		} else {
			s.Title += ", " + m.DisplayName()
		}
	}
	if s.Title == "" {
		s.Title = c.uri.RawID()
	}
	if last := c.lastVisible(); last != nil {
		s.Last = last.Clone()
		s.LastEvent = last.Timestamp
	}
	return s
}
