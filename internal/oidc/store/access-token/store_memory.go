package accesstoken

import (
	"context"
	"fmt"
	"sync"

	"steamgate/pkg/platform/sentinel"
)

// InMemoryStore maps opaque bearer tokens to Steam subject IDs. Tokens carry
// no expiry here: the reference behavior treats an issued token as valid until
// the process stops. See DESIGN.md for why this is preserved rather than fixed.
type InMemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// New constructs an empty in-memory access token store.
func New() *InMemoryStore {
	return &InMemoryStore{
		tokens: make(map[string]string),
	}
}

func (s *InMemoryStore) Put(_ context.Context, token, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = subjectID
	return nil
}

// Resolve returns the subject the token was issued to.
func (s *InMemoryStore) Resolve(_ context.Context, token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subjectID, ok := s.tokens[token]
	if !ok {
		return "", fmt.Errorf("access token not found: %w", sentinel.ErrNotFound)
	}
	return subjectID, nil
}

func (s *InMemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}
