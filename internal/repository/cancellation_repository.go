package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CancellationStore counts cancellations per customer identifier inside a
// rolling window. Implemented with INCR + EXPIRE: the window starts at the
// first cancellation and resets once it lapses.
type CancellationStore interface {
	Increment(ctx context.Context, identifier string, window time.Duration) (int64, error)
	Count(ctx context.Context, identifier string) (int64, error)
}

type cancellationStore struct {
	client *redis.Client
}

func NewCancellationStore(client *redis.Client) CancellationStore {
	return &cancellationStore{client: client}
}

const cancelPrefix = "cancellations:"

func (s *cancellationStore) Increment(ctx context.Context, identifier string, window time.Duration) (int64, error) {
	key := cancelPrefix + identifier

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to record cancellation: %w", err)
	}
	if count == 1 {
		s.client.Expire(ctx, key, window)
	}
	return count, nil
}

func (s *cancellationStore) Count(ctx context.Context, identifier string) (int64, error) {
	value, err := s.client.Get(ctx, cancelPrefix+identifier).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get cancellation count: %w", err)
	}

	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt cancellation counter for %s: %w", identifier, err)
	}
	return count, nil
}
