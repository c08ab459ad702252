package client

import (
	"context"
	"fmt"
	"sync"

	"steamgate/internal/oidc/models"
	"steamgate/pkg/platform/sentinel"
)

// InMemoryStore holds the registered client set. This provider serves exactly
// one client, seeded from configuration at startup; the map shape is kept so
// lookups stay uniform with the other stores.
type InMemoryStore struct {
	mu      sync.RWMutex
	clients map[string]*models.RegisteredClient
}

// New constructs a client store seeded with the given clients.
func New(clients ...*models.RegisteredClient) *InMemoryStore {
	store := &InMemoryStore{
		clients: make(map[string]*models.RegisteredClient, len(clients)),
	}
	for _, c := range clients {
		store.clients[c.ClientID] = c
	}
	return store
}

// FindByID resolves a client_id to the registered client.
func (s *InMemoryStore) FindByID(_ context.Context, clientID string) (*models.RegisteredClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client not found: %w", sentinel.ErrNotFound)
	}
	return client, nil
}
