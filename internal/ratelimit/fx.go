package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/orgkeys/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(provideVerifyLimiter),
)

func provideVerifyLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*VerifyLimiter, error) {
	var client *redis.Client
	if addr := strings.TrimSpace(cfg.RateLimit.RedisAddr); cfg.RateLimit.Enabled && addr != "" {
		client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("redis unreachable; verification limits are per instance until it recovers", zap.Error(err))
				}
				return nil
			},
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}
	limiter, err := NewVerifyLimiter(cfg, client, log)
	if err != nil {
		return nil, err
	}
	log.Info("verify rate limit configured",
		zap.Bool("enabled", limiter.Enabled()),
		zap.Bool("distributed", limiter.Distributed()),
	)
	return limiter, nil
}
