// Package memory provides an in-memory implementation of the user and token
// stores for development and tests. Records are lost when the process
// restarts.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/einlass-dev/einlass/pkg/store"
)

// Store is a mutex-guarded in-memory UserStore and TokenStore.
type Store struct {
	mu     sync.RWMutex
	users  map[string]*store.User
	tokens map[string]*store.Token

	// bysubject indexes tokens by owner for get-or-create.
	bySubject map[string]*store.Token
}

// Ensure Store implements both interfaces at compile time.
var (
	_ store.UserStore  = (*Store)(nil)
	_ store.TokenStore = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:     make(map[string]*store.User),
		tokens:    make(map[string]*store.Token),
		bySubject: make(map[string]*store.Token),
	}
}

// AddUser inserts or replaces a user record.
func (s *Store) AddUser(u store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = &u
}

// AddToken inserts or replaces a token record.
func (s *Store) AddToken(t store.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.tokens[t.Key] = &t
	s.bySubject[t.Subject] = &t
}

// GetUser returns the user with the given username.
func (s *Store) GetUser(_ context.Context, username string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}

	// Copy to avoid shared state.
	cp := *u
	return &cp, nil
}

// GetToken returns the token with the given key.
func (s *Store) GetToken(_ context.Context, key string) (*store.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[key]
	if !ok {
		return nil, store.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

// GetOrCreateToken returns the subject's token, creating one if absent.
func (s *Store) GetOrCreateToken(_ context.Context, subject, key string) (*store.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.bySubject[subject]; ok && !t.Revoked {
		cp := *t
		return &cp, nil
	}

	t := &store.Token{
		Key:       key,
		Subject:   subject,
		CreatedAt: time.Now(),
	}
	s.tokens[key] = t
	s.bySubject[subject] = t

	cp := *t
	return &cp, nil
}

// RevokeToken marks the token with the given key as revoked.
func (s *Store) RevokeToken(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[key]
	if !ok {
		return store.ErrNotFound
	}
	t.Revoked = true
	return nil
}
