// Package contact keeps the per-account registry of known peers.
package contact

import (
	"sort"
	"sync"
	"time"

	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/uri"
)

// Registry holds at most one Contact per canonical URI. Every lookup for
// the same peer returns the same *model.Contact.
type Registry struct {
	mu       sync.RWMutex
	contacts map[string]*model.Contact
	self     string
}

// NewRegistry returns an empty registry for the account whose own
// canonical URI is self.
func NewRegistry(self string) *Registry {
	return &Registry{
		contacts: make(map[string]*model.Contact),
		self:     uri.Canonical(self),
	}
}

// Self is the canonical URI of the owning account.
func (r *Registry) Self() string { return r.self }

// IsSelf reports whether address names the owning account.
func (r *Registry) IsSelf(address string) bool {
	return uri.Canonical(address) == r.self
}

// GetOrCreate returns the contact for address, creating it on first use.
// created is true when the contact did not exist.
func (r *Registry) GetOrCreate(address string) (c *model.Contact, created bool) {
	key := uri.Canonical(address)
	r.mu.RLock()
	c, ok := r.contacts[key]
	r.mu.RUnlock()
	if ok {
		return c, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contacts[key]; ok {
		return c, false
	}
	c = model.NewContact(address)
	r.contacts[key] = c
	return c, true
}

// Find returns the contact for address without creating it.
func (r *Registry) Find(address string) (*model.Contact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contacts[uri.Canonical(address)]
	return c, ok
}

// Add marks a contact as added, confirmed or still awaiting the peer.
func (r *Registry) Add(address string, confirmed bool, at time.Time) *model.Contact {
	c, _ := r.GetOrCreate(address)
	st := model.TrustRequestSent
	if confirmed {
		st = model.TrustConfirmed
	}
	c.SetStatus(st)
	if c.AddedAt().IsZero() {
		c.SetAddedAt(at)
	}
	return c
}

// Remove drops the trust relationship. The Contact itself stays so that
// references held by conversations and calls remain valid.
func (r *Registry) Remove(address string, banned bool) (*model.Contact, bool) {
	c, ok := r.Find(address)
	if !ok {
		return nil, false
	}
	st := model.TrustNone
	if banned {
		st = model.TrustBanned
	}
	c.SetStatus(st)
	c.SetAddedAt(time.Time{})
	return c, true
}

// SetUsername records a name lookup result for address. It reports the
// contact and whether anything changed.
func (r *Registry) SetUsername(address, name string) (*model.Contact, bool) {
	c, ok := r.Find(address)
	if !ok {
		return nil, false
	}
	return c, c.SetUsername(name)
}

// Contacts returns contacts with a trust relationship, sorted by key.
func (r *Registry) Contacts() []*model.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Contact
	for _, c := range r.contacts {
		if c.Status() != model.TrustNone {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Len is the number of known peers, trusted or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contacts)
}
