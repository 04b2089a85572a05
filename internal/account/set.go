package account

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Set indexes the accounts known to the engine by id.
type Set struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

func NewSet() *Set {
	return &Set{accounts: make(map[string]*Account)}
}

// Add registers a, replacing any account with the same id. It returns the
// replaced account, if any.
func (s *Set) Add(a *Account) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.accounts[a.ID()]
	s.accounts[a.ID()] = a
	return prev
}

func (s *Set) Get(id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, errors.Wrap(ErrUnknownAccount, id)
	}
	return a, nil
}

func (s *Set) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return false
	}
	delete(s.accounts, id)
	return true
}

// List returns the accounts ordered by id.
func (s *Set) List() []*Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
