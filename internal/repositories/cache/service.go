package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paylock/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// CacheService wraps redis for unlocked read-only lookups. Mutating writers
// invalidate; they never write through, so the database row under its lock
// stays the source of truth.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *CacheService) GetPayment(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.Get(ctx, paymentKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *CacheService) SetPayment(ctx context.Context, p *models.Payment) error {
	return s.Set(ctx, paymentKey(p.ID), p)
}

// InvalidatePayment drops the cached payment. Every state-machine mutation
// calls this after commit.
func (s *CacheService) InvalidatePayment(ctx context.Context, id uint) error {
	return s.Delete(ctx, paymentKey(id))
}

func (s *CacheService) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

func (s *CacheService) Close() error {
	return s.client.Close()
}

func paymentKey(id uint) string {
	return fmt.Sprintf("payment:%d", id)
}
