package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/bloodlab-platform/internal/catalog"
	"github.com/wolfman30/bloodlab-platform/internal/records"
)

// TestSource supplies the catalog carts price against.
type TestSource interface {
	TestIndex(ctx context.Context) (map[string]records.Test, error)
}

// Store loads and saves carts keyed by browsing-session id.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, c *Cart) error
}

// RedisStore keeps cart state in Redis with a sliding TTL.
type RedisStore struct {
	redis  *redis.Client
	tests  TestSource
	promos catalog.PromoTable
	ttl    time.Duration
}

// NewRedisStore creates a cart store. ttl <= 0 keeps carts for 24 hours.
func NewRedisStore(client *redis.Client, tests TestSource, promos catalog.PromoTable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{redis: client, tests: tests, promos: promos, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

// Load returns the session's cart, or an empty one when none is stored.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Cart, error) {
	tests, err := s.tests.TestIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("cart: load catalog: %w", err)
	}
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(tests, s.promos), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart: get: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("cart: unmarshal: %w", err)
	}
	return Restore(st, tests, s.promos), nil
}

// Save writes the cart, deleting the key once the cart is empty with no promo.
func (s *RedisStore) Save(ctx context.Context, sessionID string, c *Cart) error {
	st := c.State()
	if len(st.Lines) == 0 && st.Promo == "" {
		if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
			return fmt.Errorf("cart: delete: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("cart: marshal: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cart: set: %w", err)
	}
	return nil
}
