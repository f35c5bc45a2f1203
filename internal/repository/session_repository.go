package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore backs the admin session gate. Tokens are opaque and live in
// redis with a sliding TTL.
type SessionStore interface {
	Create(ctx context.Context, username string, ttl time.Duration) (string, error)
	Validate(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

type sessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) SessionStore {
	return &sessionStore{client: client, ttl: ttl}
}

const sessionPrefix = "session:"

func (s *sessionStore) Create(ctx context.Context, username string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	token := uuid.New().String()

	if err := s.client.Set(ctx, sessionPrefix+token, username, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return token, nil
}

func (s *sessionStore) Validate(ctx context.Context, token string) (string, error) {
	username, err := s.client.Get(ctx, sessionPrefix+token).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to validate session: %w", err)
	}

	// Sliding expiry: an active admin stays logged in.
	s.client.Expire(ctx, sessionPrefix+token, s.ttl)

	return username, nil
}

func (s *sessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
