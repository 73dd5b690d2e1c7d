package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// DefaultTokenTTL bounds how long a session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

type session struct {
	username  string
	expiresAt time.Time
}

// Service authenticates users against the store and hands out opaque session
// tokens (32 random bytes, hex encoded). Tokens live in memory only; a server
// restart invalidates all sessions, which matches the protocol's expectations.
type Service struct {
	store    *Store
	tokenTTL time.Duration

	mu       sync.Mutex
	sessions map[string]session

	now func() time.Time // injected in tests
}

func NewService(store *Store, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{
		store:    store,
		tokenTTL: tokenTTL,
		sessions: make(map[string]session),
		now:      time.Now,
	}
}

// Login verifies credentials and returns a fresh session token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if err := s.store.Verify(ctx, username, password); err != nil {
		return "", err
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	s.mu.Lock()
	s.sessions[token] = session{username: username, expiresAt: s.now().Add(s.tokenTTL)}
	s.mu.Unlock()
	return token, nil
}

// Validate resolves a token to its username, expiring stale sessions lazily.
func (s *Service) Validate(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return "", ErrInvalidToken
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return "", ErrInvalidToken
	}
	return sess.username, nil
}

// Logout drops a session; unknown tokens are ignored.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// ActiveSessions reports the number of unexpired sessions.
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	cutoff := s.now()
	for _, sess := range s.sessions {
		if sess.expiresAt.After(cutoff) {
			n++
		}
	}
	return n
}
