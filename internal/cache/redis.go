package cache

import (
	"github.com/go-redis/redis/v8"

	"github.com/daniel-mekuria/zk-server/internal/config"
)

// NewClient constructs the shared go-redis client used by both the
// options cache and the eventbus command-lifecycle stream.
func NewClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
