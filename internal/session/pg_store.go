package session

import (
	"context"
	"time"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

// PostgresStore adapts the relational store's session tables to the same
// interface as the redis backend, for deployments without redis.
type PostgresStore struct {
	store *store.PostgresStore
}

func NewPostgresStore(dataStore *store.PostgresStore) *PostgresStore {
	return &PostgresStore{store: dataStore}
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	return s.store.SaveRefreshSession(ctx, tokenHash, userID, expiresAt)
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	user, err := s.store.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return "", ErrNotFound
	}
	return user.ID, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return s.store.RevokeRefreshSession(ctx, tokenHash)
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	return s.store.RevokeAccessToken(ctx, jti, expiresAt)
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.store.IsAccessTokenRevoked(ctx, jti)
}
