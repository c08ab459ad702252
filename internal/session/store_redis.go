package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"steamgate/internal/oidc/models"
	"steamgate/pkg/platform/sentinel"
)

const pendingKeyPrefix = "pending:"

// RedisStore keeps pending authorization requests in Redis so the authorize
// redirect and the Steam callback may land on different instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed pending request store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, sessionID string, pending *models.PendingAuthRequest) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending request: %w", err)
	}
	if err := s.client.Set(ctx, pendingKeyPrefix+sessionID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store pending request: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*models.PendingAuthRequest, error) {
	payload, err := s.client.Get(ctx, pendingKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pending authorization request not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load pending request: %w", err)
	}
	var pending models.PendingAuthRequest
	if err := json.Unmarshal(payload, &pending); err != nil {
		return nil, fmt.Errorf("unmarshal pending request: %w", err)
	}
	return &pending, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, pendingKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete pending request: %w", err)
	}
	return nil
}
