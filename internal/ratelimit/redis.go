package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/homeaccess/internal/config"
	"go.uber.org/fx"
)

// NewRedisClient returns nil when REDIS_ADDR is unset; callers treat a nil
// client as "limiting and locking disabled".
func NewRedisClient(cfg config.Config, lc fx.Lifecycle) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}
	return client
}
