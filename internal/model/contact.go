package model

import (
	"sync"
	"time"

	"github.com/matheus3301/ringcore/internal/uri"
)

// TrustStatus is the trust relationship with a contact.
type TrustStatus string

const (
	TrustNone        TrustStatus = "none"
	TrustRequestSent TrustStatus = "request_sent"
	TrustConfirmed   TrustStatus = "confirmed"
	TrustBanned      TrustStatus = "banned"
)

// Profile is the display information a peer publishes about itself.
type Profile struct {
	DisplayName string
	Avatar      string
}

// Contact is a peer known to an account. There is at most one Contact per
// canonical URI per account; every reference to the peer shares it.
type Contact struct {
	uri uri.URI
	key string

	mu               sync.RWMutex
	username         string
	usernameResolved bool
	lookupRequested  bool
	profile          Profile
	online           bool
	status           TrustStatus
	added            time.Time
	conversationURI  string
}

// NewContact returns a contact for the given address. Non-SIP contacts
// start unresolved; SIP contacts use their address as the username.
func NewContact(address string) *Contact {
	u := uri.Parse(address)
	c := &Contact{
		uri:    u,
		key:    u.RawURI(),
		status: TrustNone,
	}
	c.conversationURI = c.key
	if u.IsSIP() {
		c.username = u.RawID()
		c.usernameResolved = true
	}
	return c
}

// Key is the canonical URI of the contact.
func (c *Contact) Key() string { return c.key }

func (c *Contact) URI() uri.URI { return c.uri }

func (c *Contact) IsSIP() bool { return c.uri.IsSIP() }

// Username returns the registered name and whether a lookup completed.
// A completed lookup may have found no name.
func (c *Contact) Username() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username, c.usernameResolved
}

// SetUsername records a lookup result. It reports whether anything changed.
func (c *Contact) SetUsername(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.usernameResolved && c.username == name {
		return false
	}
	c.username = name
	c.usernameResolved = true
	return true
}

// ClaimLookup reports whether the caller should issue a name lookup for
// this contact. It returns true at most once per unresolved contact.
func (c *Contact) ClaimLookup() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.usernameResolved || c.lookupRequested {
		return false
	}
	c.lookupRequested = true
	return true
}

func (c *Contact) Profile() Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

func (c *Contact) SetProfile(p Profile) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == p {
		return false
	}
	c.profile = p
	return true
}

func (c *Contact) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Contact) SetOnline(online bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online == online {
		return false
	}
	c.online = online
	return true
}

func (c *Contact) Status() TrustStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Contact) SetStatus(s TrustStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == s {
		return false
	}
	c.status = s
	return true
}

func (c *Contact) AddedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.added
}

func (c *Contact) SetAddedAt(t time.Time) {
	c.mu.Lock()
	c.added = t
	c.mu.Unlock()
}

// ConversationURI is the key of the conversation that represents the
// contact: its own key for legacy conversations, a swarm URI otherwise.
func (c *Contact) ConversationURI() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conversationURI
}

func (c *Contact) SetConversationURI(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conversationURI == key {
		return false
	}
	c.conversationURI = key
	return true
}

// HasOwnConversation reports whether the contact is represented by its
// legacy conversation rather than a swarm.
func (c *Contact) HasOwnConversation() bool {
	return c.ConversationURI() == c.key
}

// DisplayName picks the best human-readable name: profile, then
// registered username, then the raw id.
func (c *Contact) DisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.profile.DisplayName != "":
		return c.profile.DisplayName
	case c.username != "":
		return c.username
	default:
		return c.uri.RawID()
	}
}
