package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// HashToken returns the digest under which a refresh token is stored, so a
// leaked session table cannot be replayed.
func HashToken(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}

// MemorySessionStore keeps sessions in process memory. It backs tests and
// single-instance development runs.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewInMemorySessionStore returns an empty MemorySessionStore.
func NewInMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

// Save records the session under the hash of its refresh token.
func (s *MemorySessionStore) Save(_ context.Context, session Session) error {
	stored := session
	stored.RefreshToken = ""

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[HashToken(session.RefreshToken)] = stored
	return nil
}

// Find returns the session issued for refreshToken.
func (s *MemorySessionStore) Find(_ context.Context, refreshToken string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[HashToken(refreshToken)]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	session.RefreshToken = refreshToken
	return session, nil
}

// Delete revokes refreshToken. Unknown tokens yield ErrSessionNotFound.
func (s *MemorySessionStore) Delete(_ context.Context, refreshToken string) error {
	key := HashToken(refreshToken)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[key]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, key)
	return nil
}

// DeleteExpired drops sessions that expired before now.
func (s *MemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed, nil
}

// Has reports whether refreshToken is still active.
func (s *MemorySessionStore) Has(refreshToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[HashToken(refreshToken)]
	return ok
}
