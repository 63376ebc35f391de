package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"

	"assistant_server/core/domain"
	"assistant_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

// oauthStateKey is the Redis key prefix for OAuth states.
const oauthStateKey = "oauth:state:"

// RedisStateStore implements out.StateStore on Redis. GETDEL makes the
// consume atomic and the key TTL handles expiry, so there is nothing for
// CleanupExpired to do.
type RedisStateStore struct {
	client *redis.Client
}

var _ out.StateStore = (*RedisStateStore)(nil)

// NewRedisStateStore creates a new RedisStateStore.
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) Create(ctx context.Context, state *domain.OAuthState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	ttl := time.Until(state.ExpiresAt)
	if ttl <= 0 {
		return errors.New("oauth state already expired")
	}
	return s.client.Set(ctx, oauthStateKey+state.State, payload, ttl).Err()
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (*domain.OAuthState, error) {
	payload, err := s.client.GetDel(ctx, oauthStateKey+state).Result()
	if err == redis.Nil {
		return nil, out.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var record domain.OAuthState
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, err
	}
	now := time.Now()
	record.UsedAt = &now
	return &record, nil
}

func (s *RedisStateStore) CleanupExpired(ctx context.Context) (int64, error) {
	// Redis evicts expired keys on its own.
	return 0, nil
}
