package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"steamgate/internal/oidc/models"
	"steamgate/pkg/platform/sentinel"
)

type memoryEntry struct {
	pending  *models.PendingAuthRequest
	deadline time.Time
}

// InMemoryStore keeps pending authorization requests for the redirect round
// trip. Entries the user agent abandons are reaped by DeleteExpired.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewInMemoryStore constructs an in-memory pending request store. ttl bounds
// how long an authorize redirect may stay outstanding.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

func (s *InMemoryStore) Put(_ context.Context, sessionID string, pending *models.PendingAuthRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = memoryEntry{
		pending:  pending,
		deadline: time.Now().Add(s.ttl),
	}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID string) (*models.PendingAuthRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[sessionID]
	if !ok {
		return nil, fmt.Errorf("pending authorization request not found: %w", sentinel.ErrNotFound)
	}
	if !entry.deadline.After(time.Now()) {
		return nil, fmt.Errorf("pending authorization request expired: %w", sentinel.ErrExpired)
	}
	return entry.pending, nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// DeleteExpired removes abandoned pending requests as of the given time.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for sessionID, entry := range s.entries {
		if entry.deadline.Before(now) {
			delete(s.entries, sessionID)
			deleted++
		}
	}
	return deleted, nil
}
