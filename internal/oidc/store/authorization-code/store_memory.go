package authorizationcode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"steamgate/internal/oidc/models"
	"steamgate/pkg/platform/sentinel"
)

// translateConsumeError converts domain validation errors from
// ValidateForConsume to sentinel errors per the store boundary contract.
func translateConsumeError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, models.ErrCodeExpired):
		return fmt.Errorf("%s: %w", err.Error(), sentinel.ErrExpired)
	default:
		return fmt.Errorf("%s: %w", err.Error(), sentinel.ErrInvalidState)
	}
}

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// InMemoryStore holds authorization codes for their ten-minute lifetime.
// Codes never survive a process restart, which matches their trust model.
type InMemoryStore struct {
	mu    sync.RWMutex
	codes map[string]*models.AuthorizationCode
}

// New constructs an empty in-memory authorization code store.
func New() *InMemoryStore {
	return &InMemoryStore{
		codes: make(map[string]*models.AuthorizationCode),
	}
}

func (s *InMemoryStore) Create(_ context.Context, code *models.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code.Code]; ok {
		return fmt.Errorf("authorization code already exists: %w", sentinel.ErrConflict)
	}
	s.codes[code.Code] = code
	return nil
}

// Consume atomically looks up, validates and deletes the code under a single
// lock so two concurrent exchanges of the same code cannot both succeed. The
// entry is removed as soon as it is found, before validation, so a code is
// spent on its first exchange attempt regardless of the outcome.
func (s *InMemoryStore) Consume(_ context.Context, code, clientID, redirectURI string, now time.Time) (*models.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.codes[code]
	if !ok {
		return nil, fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
	}
	delete(s.codes, code)

	if err := record.ValidateForConsume(clientID, redirectURI, now); err != nil {
		return nil, translateConsumeError(err)
	}
	return record, nil
}

// DeleteExpired removes all authorization codes that have expired as of the
// given time. The time parameter is injected for testability.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for code, record := range s.codes {
		if record.ExpiresAt.Before(now) {
			delete(s.codes, code)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports the number of resident codes. Used by the sweeper's debug log.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes)
}
