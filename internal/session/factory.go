package session

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
)

// NewStore creates the store selected by cfg.Type: "memory" (default), "redis" or "sqlite".
func NewStore(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(cfg.TTL), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("session type redis requires redis_url")
		}
		return NewRedisStore(ctx, cfg.RedisURL, cfg.TTL)
	case "sqlite":
		if cfg.DatabasePath == "" {
			return nil, fmt.Errorf("session type sqlite requires database_path")
		}
		return NewSQLiteStore(cfg.DatabasePath, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown session type: %s (supported: memory, redis, sqlite)", cfg.Type)
	}
}
