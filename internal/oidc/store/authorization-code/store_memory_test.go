package authorizationcode

import (
	"context"
	"sync"
	"testing"
	"time"

	"steamgate/internal/oidc/models"
	"steamgate/pkg/platform/sentinel"

	"github.com/stretchr/testify/suite"
)

type AuthCodeStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *AuthCodeStoreSuite) SetupTest() {
	s.store = New()
}

func TestAuthCodeStoreSuite(t *testing.T) {
	suite.Run(t, new(AuthCodeStoreSuite))
}

func newCode(code string, now time.Time) *models.AuthorizationCode {
	return &models.AuthorizationCode{
		Code:        code,
		SubjectID:   "76561197960287930",
		ClientID:    "steam-auth-client",
		RedirectURI: "https://app.example.com/callback",
		CreatedAt:   now,
		ExpiresAt:   now.Add(10 * time.Minute),
	}
}

// TestCodeConsumption tests the atomic consume-once semantics of authorization codes.
func (s *AuthCodeStoreSuite) TestCodeConsumption() {
	ctx := context.Background()
	now := time.Now()

	s.Run("fresh code can be consumed once", func() {
		store := New()
		record := newCode("authz_fresh", now)
		s.Require().NoError(store.Create(ctx, record))

		consumed, err := store.Consume(ctx, record.Code, record.ClientID, record.RedirectURI, now)
		s.Require().NoError(err)
		s.Equal(record.SubjectID, consumed.SubjectID)
	})

	s.Run("second consume of the same code returns ErrNotFound", func() {
		store := New()
		record := newCode("authz_reuse", now)
		s.Require().NoError(store.Create(ctx, record))

		_, err := store.Consume(ctx, record.Code, record.ClientID, record.RedirectURI, now)
		s.Require().NoError(err)

		_, err = store.Consume(ctx, record.Code, record.ClientID, record.RedirectURI, now)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("expired code returns ErrExpired and is removed", func() {
		store := New()
		record := newCode("authz_expired", now.Add(-11*time.Minute))
		s.Require().NoError(store.Create(ctx, record))

		_, err := store.Consume(ctx, record.Code, record.ClientID, record.RedirectURI, now)
		s.Require().ErrorIs(err, sentinel.ErrExpired)

		// Failed consume still spends the code.
		_, err = store.Consume(ctx, record.Code, record.ClientID, record.RedirectURI, now)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("redirect_uri mismatch returns ErrInvalidState and spends the code", func() {
		store := New()
		record := newCode("authz_redirect", now)
		s.Require().NoError(store.Create(ctx, record))

		_, err := store.Consume(ctx, record.Code, record.ClientID, "https://other.example.com/cb", now)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)

		_, err = store.Consume(ctx, record.Code, record.ClientID, record.RedirectURI, now)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("client mismatch returns ErrInvalidState", func() {
		store := New()
		record := newCode("authz_client", now)
		s.Require().NoError(store.Create(ctx, record))

		_, err := store.Consume(ctx, record.Code, "other-client", record.RedirectURI, now)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("unknown code returns ErrNotFound", func() {
		_, err := s.store.Consume(ctx, "never_issued", "steam-auth-client", "https://app.example.com/callback", now)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentConsume verifies the at-most-one-exchange invariant under
// concurrent exchanges of the same code.
func (s *AuthCodeStoreSuite) TestConcurrentConsume() {
	ctx := context.Background()
	now := time.Now()
	store := New()
	record := newCode("authz_race", now)
	s.Require().NoError(store.Create(ctx, record))

	const attempts = 32
	var wg sync.WaitGroup
	successes := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, record.Code, record.ClientID, record.RedirectURI, now); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	s.Equal(1, count)
}

func (s *AuthCodeStoreSuite) TestCreateDuplicate() {
	ctx := context.Background()
	now := time.Now()
	record := newCode("authz_dup", now)
	s.Require().NoError(s.store.Create(ctx, record))
	s.Require().ErrorIs(s.store.Create(ctx, newCode("authz_dup", now)), sentinel.ErrConflict)
}

// TestDeleteExpired tests the background sweep helper.
func (s *AuthCodeStoreSuite) TestDeleteExpired() {
	ctx := context.Background()
	now := time.Now()

	s.Require().NoError(s.store.Create(ctx, newCode("authz_live", now)))
	s.Require().NoError(s.store.Create(ctx, newCode("authz_old_1", now.Add(-20*time.Minute))))
	s.Require().NoError(s.store.Create(ctx, newCode("authz_old_2", now.Add(-15*time.Minute))))

	deleted, err := s.store.DeleteExpired(ctx, now)
	s.Require().NoError(err)
	s.Equal(2, deleted)
	s.Equal(1, s.store.Len())

	_, err = s.store.Consume(ctx, "authz_live", "steam-auth-client", "https://app.example.com/callback", now)
	s.Require().NoError(err)
}
