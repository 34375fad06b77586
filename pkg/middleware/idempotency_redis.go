package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"noqbot/pkg/logger"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisIdempotencyPrefix = "noqbot:idempotency:"

// RedisIdempotencyStore shares cached responses across service replicas.
// Redis failures degrade to a cache miss.
type RedisIdempotencyStore struct {
	client redis.Cmdable
	ttl    time.Duration
	log    *logger.Logger
}

func NewRedisIdempotencyStore(client redis.Cmdable, ttl time.Duration, log *logger.Logger) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl, log: log}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	raw, err := s.client.Get(ctx, redisIdempotencyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("Idempotency lookup failed", "error", err)
		}
		return nil, false
	}

	var cached CachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		s.log.Warn("Discarding corrupt idempotency entry", "error", err)
		return nil, false
	}
	return &cached, true
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, response *CachedResponse) {
	response.CreatedAt = time.Now()

	raw, err := json.Marshal(response)
	if err != nil {
		s.log.Warn("Failed to encode idempotency entry", "error", err)
		return
	}

	if err := s.client.Set(ctx, redisIdempotencyPrefix+key, raw, s.ttl).Err(); err != nil {
		s.log.Warn("Failed to store idempotency entry", "error", err)
	}
}

// Stop is a no-op; the shared Redis client is closed by the process.
func (s *RedisIdempotencyStore) Stop() {}
