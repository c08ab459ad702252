package accesstoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"steamgate/pkg/platform/sentinel"
)

const accessTokenKeyPrefix = "at:"

// RedisStore is a Redis-backed access token store for deployments where more
// than one instance serves the userinfo endpoint.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisStoreOption configures a RedisStore instance.
type RedisStoreOption func(*RedisStore)

// WithTTL bounds token lifetime in Redis. The default of zero means no expiry,
// matching the in-memory store's reference behavior.
func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedis constructs a Redis-backed access token store.
func NewRedis(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	store := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *RedisStore) Put(ctx context.Context, token, subjectID string) error {
	if err := s.client.Set(ctx, accessTokenKeyPrefix+token, subjectID, s.ttl).Err(); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	return nil
}

func (s *RedisStore) Resolve(ctx context.Context, token string) (string, error) {
	subjectID, err := s.client.Get(ctx, accessTokenKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("access token not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve access token: %w", err)
	}
	return subjectID, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, accessTokenKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete access token: %w", err)
	}
	return nil
}
