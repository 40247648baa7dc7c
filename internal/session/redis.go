package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "kotae:workflow:"

// RedisStore keeps state in Redis so several server instances can resume each other's conversations.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects to redisURL (redis://...) or, if it does not parse, treats it as host:port.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(rdb, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Type returns "redis".
func (s *RedisStore) Type() string { return "redis" }

// Save stores state under workflowID with the store TTL.
func (s *RedisStore) Save(ctx context.Context, workflowID string, state []byte) error {
	return s.rdb.Set(ctx, redisKeyPrefix+workflowID, state, s.ttl).Err()
}

// Take returns and removes the state for workflowID using GETDEL.
func (s *RedisStore) Take(ctx context.Context, workflowID string) ([]byte, bool, error) {
	b, err := s.rdb.GetDel(ctx, redisKeyPrefix+workflowID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Delete removes any state for workflowID.
func (s *RedisStore) Delete(ctx context.Context, workflowID string) error {
	return s.rdb.Del(ctx, redisKeyPrefix+workflowID).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
